package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/core/database"
	invoicedm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/invoice"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	"github.com/frahmantamala/invoice-payments/internal/invoice"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *invoicedm.Invoice) error {
	if inv.PaymentStatus == "" {
		inv.PaymentStatus = invoicedm.StatusUnpaid
	}
	if !inv.PaymentStatus.Valid() {
		return fmt.Errorf("invalid invoice payment status %q", inv.PaymentStatus)
	}
	return database.Conn(ctx, r.db).Create(inv).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*invoicedm.Invoice, error) {
	return r.get(database.Conn(ctx, r.db), id)
}

func (r *InvoiceRepository) GetByIDForUpdate(ctx context.Context, id int64) (*invoicedm.Invoice, error) {
	return r.get(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *InvoiceRepository) get(db *gorm.DB, id int64) (*invoicedm.Invoice, error) {
	var inv invoicedm.Invoice
	if err := db.Where("id = ?", id).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to load invoice %d: %w", id, err)
	}
	return &inv, nil
}

// UpdateTransactionRef records the last attempted reference. It never touches balances.
func (r *InvoiceRepository) UpdateTransactionRef(ctx context.Context, id int64, reference string) error {
	result := database.Conn(ctx, r.db).Model(&invoicedm.Invoice{}).
		Where("id = ?", id).
		Update("transaction_ref", reference)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrInvoiceNotFound
	}
	return nil
}

func (r *InvoiceRepository) SaveCredit(ctx context.Context, id int64, credit invoice.Credit, method string) error {
	result := database.Conn(ctx, r.db).Model(&invoicedm.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"amount_paid":    credit.AmountPaid,
			"payment_status": credit.Status,
			"payment_method": method,
			"paid_at":        credit.PaidAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrInvoiceNotFound
	}
	return nil
}

// InsertPayment appends a ledger entry. A second entry for the same reference
// violates the unique index and is reported as ErrAlreadySettled.
func (r *InvoiceRepository) InsertPayment(ctx context.Context, p *paymentdm.Payment) error {
	if err := database.Conn(ctx, r.db).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return internal.ErrAlreadySettled.WithCause(err)
		}
		return err
	}
	return nil
}

func (r *InvoiceRepository) ListPayments(ctx context.Context, invoiceID int64) ([]*paymentdm.Payment, error) {
	var payments []*paymentdm.Payment
	err := database.Conn(ctx, r.db).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&payments).Error
	return payments, err
}
