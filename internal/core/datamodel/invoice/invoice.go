package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusUnpaid        PaymentStatus = "UNPAID"
	StatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	StatusPaid          PaymentStatus = "PAID"
	StatusOverdue       PaymentStatus = "OVERDUE"
	StatusRefunded      PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusRefunded:
		return true
	}
	return false
}

// Invoice is created by the billing flow. AmountPaid, PaymentStatus, PaymentMethod
// and PaidAt only change through the ledger credit transition.
type Invoice struct {
	ID             int64           `json:"id" gorm:"primaryKey"`
	InvoiceNumber  string          `json:"invoice_number" gorm:"column:invoice_number;not null;uniqueIndex"`
	CustomerID     int64           `json:"customer_id" gorm:"column:customer_id;not null;index"`
	BillingEmail   string          `json:"billing_email" gorm:"column:billing_email;not null"`
	ServiceID      *int64          `json:"service_id,omitempty" gorm:"column:service_id"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"column:subtotal;type:decimal(18,2);not null"`
	Tax            decimal.Decimal `json:"tax" gorm:"column:tax;type:decimal(18,2);not null;default:0"`
	Discount       decimal.Decimal `json:"discount" gorm:"column:discount;type:decimal(18,2);not null;default:0"`
	Total          decimal.Decimal `json:"total" gorm:"column:total;type:decimal(18,2);not null"`
	AmountPaid     decimal.Decimal `json:"amount_paid" gorm:"column:amount_paid;type:decimal(18,2);not null;default:0"`
	PaymentStatus  PaymentStatus   `json:"payment_status" gorm:"column:payment_status;type:varchar(20);not null;default:UNPAID"`
	PaymentMethod  *string         `json:"payment_method,omitempty" gorm:"column:payment_method"`
	TransactionRef *string         `json:"transaction_ref,omitempty" gorm:"column:transaction_ref"`
	DueDate        *time.Time      `json:"due_date,omitempty" gorm:"column:due_date"`
	PaidAt         *time.Time      `json:"paid_at,omitempty" gorm:"column:paid_at"`
	CreatedAt      time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// RecomputeTotal enforces total = subtotal + tax - discount.
func (i *Invoice) RecomputeTotal() {
	i.Total = i.Subtotal.Add(i.Tax).Sub(i.Discount)
}
