package invoice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/invoice-payments/internal"
	invoicedm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/invoice"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*invoicedm.Invoice, error)
	// GetByIDForUpdate row-locks the invoice for the rest of the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, id int64) (*invoicedm.Invoice, error)
	UpdateTransactionRef(ctx context.Context, id int64, reference string) error
	SaveCredit(ctx context.Context, id int64, credit Credit, method string) error
	InsertPayment(ctx context.Context, p *paymentdm.Payment) error
	ListPayments(ctx context.Context, invoiceID int64) ([]*paymentdm.Payment, error)
}

type ServiceAPI interface {
	GetInvoice(ctx context.Context, id int64, principal *internal.Principal) (*View, error)
	ListPayments(ctx context.Context, id int64, principal *internal.Principal) ([]*paymentdm.Payment, error)
}

// View is the invoice as returned to callers, with the outstanding balance computed on read.
type View struct {
	*invoicedm.Invoice
	Outstanding decimal.Decimal `json:"outstanding"`
}

func NewView(inv *invoicedm.Invoice) *View {
	return &View{Invoice: inv, Outstanding: Outstanding(inv)}
}
