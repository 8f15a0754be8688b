package invoice_test

import (
	"context"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/invoice-payments/internal"
	invoicedm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/invoice"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	"github.com/frahmantamala/invoice-payments/internal/invoice"
)

// memoryRepository keeps invoices and ledger entries in maps.
type memoryRepository struct {
	invoice.RepositoryAPI
	invoices map[int64]*invoicedm.Invoice
	payments map[int64][]*paymentdm.Payment
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		invoices: map[int64]*invoicedm.Invoice{},
		payments: map[int64][]*paymentdm.Payment{},
	}
}

func (m *memoryRepository) GetByID(ctx context.Context, id int64) (*invoicedm.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, internal.ErrInvoiceNotFound
	}
	return inv, nil
}

func (m *memoryRepository) ListPayments(ctx context.Context, invoiceID int64) ([]*paymentdm.Payment, error) {
	return m.payments[invoiceID], nil
}

func ownerOf(customerID int64) *internal.Principal {
	return &internal.Principal{UserID: 7, CustomerID: &customerID}
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		repo    *memoryRepository
		service *invoice.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMemoryRepository()
		repo.invoices[1] = &invoicedm.Invoice{
			ID:            1,
			InvoiceNumber: "INV-001",
			CustomerID:    42,
			Total:         amount("1000"),
			AmountPaid:    amount("250"),
			PaymentStatus: invoicedm.StatusPartiallyPaid,
		}
		repo.payments[1] = []*paymentdm.Payment{{ID: 1, InvoiceID: 1, Amount: amount("250"), Reference: "MM-INV-001-1"}}
		service = invoice.NewService(repo, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	})

	Describe("GetInvoice", func() {
		It("returns the invoice with its outstanding balance to the owner", func() {
			view, err := service.GetInvoice(ctx, 1, ownerOf(42))
			Expect(err).NotTo(HaveOccurred())
			Expect(view.InvoiceNumber).To(Equal("INV-001"))
			Expect(view.Outstanding.Equal(amount("750"))).To(BeTrue())
		})

		It("lets staff read any invoice", func() {
			staff := &internal.Principal{UserID: 1, Permissions: []string{internal.PermissionAdmin}}
			_, err := service.GetInvoice(ctx, 1, staff)
			Expect(err).NotTo(HaveOccurred())
		})

		It("hides the invoice from other customers", func() {
			_, err := service.GetInvoice(ctx, 1, ownerOf(99))
			Expect(err).To(MatchError(internal.ErrForbiddenInvoice))
		})

		It("requires a principal", func() {
			_, err := service.GetInvoice(ctx, 1, nil)
			Expect(err).To(MatchError(internal.ErrUnauthenticated))
		})

		It("reports unknown invoices", func() {
			_, err := service.GetInvoice(ctx, 2, ownerOf(42))
			Expect(err).To(MatchError(internal.ErrInvoiceNotFound))
		})
	})

	Describe("ListPayments", func() {
		It("lists the ledger for the owner", func() {
			payments, err := service.ListPayments(ctx, 1, ownerOf(42))
			Expect(err).NotTo(HaveOccurred())
			Expect(payments).To(HaveLen(1))
			Expect(payments[0].Reference).To(Equal("MM-INV-001-1"))
		})

		It("applies the same ownership rule", func() {
			_, err := service.ListPayments(ctx, 1, ownerOf(99))
			Expect(err).To(MatchError(internal.ErrForbiddenInvoice))
		})
	})
})
