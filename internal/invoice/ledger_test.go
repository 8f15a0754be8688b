package invoice_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	invoicedm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/invoice"
	"github.com/frahmantamala/invoice-payments/internal/invoice"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var _ = Describe("Ledger", func() {
	Describe("Outstanding", func() {
		DescribeTable("derives the remaining balance",
			func(total, paid, expected string) {
				inv := &invoicedm.Invoice{Total: amount(total), AmountPaid: amount(paid)}
				Expect(invoice.Outstanding(inv).Equal(amount(expected))).To(BeTrue())
			},
			Entry("unpaid", "1000", "0", "1000"),
			Entry("partially paid", "1000", "400.50", "599.5"),
			Entry("paid", "1000", "1000", "0"),
			Entry("overpaid is floored at zero", "1000", "1200", "0"),
		)
	})

	Describe("DeriveStatus", func() {
		DescribeTable("classifies the amount paid against the total",
			func(paid, total string, expected invoicedm.PaymentStatus) {
				Expect(invoice.DeriveStatus(amount(paid), amount(total))).To(Equal(expected))
			},
			Entry("nothing paid", "0", "1000", invoicedm.StatusUnpaid),
			Entry("some paid", "0.01", "1000", invoicedm.StatusPartiallyPaid),
			Entry("exactly paid", "1000", "1000", invoicedm.StatusPaid),
			Entry("overpaid", "1000.01", "1000", invoicedm.StatusPaid),
		)
	})

	Describe("ApplyCredit", func() {
		at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

		It("moves an unpaid invoice to partially paid without a paid time", func() {
			inv := &invoicedm.Invoice{Total: amount("1000"), AmountPaid: decimal.Zero}

			credit := invoice.ApplyCredit(inv, amount("400"), at)

			Expect(credit.AmountPaid.Equal(amount("400"))).To(BeTrue())
			Expect(credit.Status).To(Equal(invoicedm.StatusPartiallyPaid))
			Expect(credit.PaidAt).To(BeNil())
		})

		It("stamps the paid time when the balance is cleared", func() {
			inv := &invoicedm.Invoice{Total: amount("1000"), AmountPaid: amount("400")}

			credit := invoice.ApplyCredit(inv, amount("600"), at)

			Expect(credit.AmountPaid.Equal(amount("1000"))).To(BeTrue())
			Expect(credit.Status).To(Equal(invoicedm.StatusPaid))
			Expect(credit.PaidAt).NotTo(BeNil())
			Expect(*credit.PaidAt).To(BeTemporally("==", at))
		})

		It("keeps an existing paid time", func() {
			earlier := at.Add(-24 * time.Hour)
			inv := &invoicedm.Invoice{Total: amount("1000"), AmountPaid: amount("1000"), PaidAt: &earlier}

			credit := invoice.ApplyCredit(inv, amount("10"), at)

			Expect(*credit.PaidAt).To(BeTemporally("==", earlier))
		})

		It("does not modify the invoice it was given", func() {
			inv := &invoicedm.Invoice{Total: amount("1000"), AmountPaid: decimal.Zero, PaymentStatus: invoicedm.StatusUnpaid}

			invoice.ApplyCredit(inv, amount("1000"), at)

			Expect(inv.AmountPaid.IsZero()).To(BeTrue())
			Expect(inv.PaymentStatus).To(Equal(invoicedm.StatusUnpaid))
		})
	})
})
