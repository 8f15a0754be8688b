package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	invoicedm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/invoice"
)

// Credit is the invoice state produced by applying one settled payment.
type Credit struct {
	AmountPaid decimal.Decimal
	Status     invoicedm.PaymentStatus
	PaidAt     *time.Time
}

// Outstanding is total - amountPaid floored at zero. It is always derived, never stored.
func Outstanding(inv *invoicedm.Invoice) decimal.Decimal {
	remaining := inv.Total.Sub(inv.AmountPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func DeriveStatus(amountPaid, total decimal.Decimal) invoicedm.PaymentStatus {
	switch {
	case !amountPaid.IsPositive():
		return invoicedm.StatusUnpaid
	case amountPaid.LessThan(total):
		return invoicedm.StatusPartiallyPaid
	default:
		return invoicedm.StatusPaid
	}
}

// ApplyCredit computes the invoice state after crediting amount at the given time.
// It performs no I/O; persisting the result atomically is the caller's job.
func ApplyCredit(inv *invoicedm.Invoice, amount decimal.Decimal, at time.Time) Credit {
	newAmountPaid := inv.AmountPaid.Add(amount)
	status := DeriveStatus(newAmountPaid, inv.Total)

	paidAt := inv.PaidAt
	if status == invoicedm.StatusPaid && paidAt == nil {
		t := at.UTC()
		paidAt = &t
	}

	return Credit{
		AmountPaid: newAmountPaid,
		Status:     status,
		PaidAt:     paidAt,
	}
}
