package internal

import (
	"context"
)

type ctxKey string

const ContextPrincipalKey ctxKey = "principal"

const (
	PermissionManageInvoices = "manage_invoices"
	PermissionAdmin          = "admin"
)

// Principal is the authenticated caller. CustomerID is set for customer accounts only.
type Principal struct {
	UserID      int64    `json:"user_id"`
	Email       string   `json:"email"`
	CustomerID  *int64   `json:"customer_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func (p *Principal) HasPermission(permission string) bool {
	for _, perm := range p.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}

// IsElevated reports whether the principal is staff allowed to act on any customer's invoices.
func (p *Principal) IsElevated() bool {
	return p.HasPermission(PermissionManageInvoices) || p.HasPermission(PermissionAdmin)
}

// CanAccessCustomer applies the ownership rule: elevated staff see everything,
// customers only their own records.
func (p *Principal) CanAccessCustomer(customerID int64) bool {
	if p == nil {
		return false
	}
	if p.IsElevated() {
		return true
	}
	return p.CustomerID != nil && *p.CustomerID == customerID
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(ContextPrincipalKey).(*Principal)
	return p, ok && p != nil
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}
