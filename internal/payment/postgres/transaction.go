package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/core/database"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/invoice-payments/internal/payment"
)

var terminalStatuses = []string{string(paymentdm.StatusSuccess), string(paymentdm.StatusFailed)}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &TransactionRepository{
		db: db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *paymentdm.Transaction) error {
	if !txn.Status.Valid() {
		return fmt.Errorf("invalid transaction status %q", txn.Status)
	}
	if err := database.Conn(ctx, r.db).Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return internal.NewConflictError("payment reference already exists", internal.ErrCodeDuplicateReference).WithCause(err)
		}
		return err
	}
	return nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*paymentdm.Transaction, error) {
	var txn paymentdm.Transaction
	err := database.Conn(ctx, r.db).Where("reference = ?", reference).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to load transaction %s: %w", reference, err)
	}
	return &txn, nil
}

func (r *TransactionRepository) RecordGatewayResult(ctx context.Context, reference string, status paymentdm.TransactionStatus, envelope datatypes.JSON) error {
	db := database.Conn(ctx, r.db).Model(&paymentdm.Transaction{})

	// SUCCESS is only ever written by MarkSucceeded
	if status == paymentdm.StatusSuccess {
		return db.Where("reference = ?", reference).
			Update("raw_gateway_response", envelope).Error
	}

	// PENDING-like results never overwrite a terminal row
	if !status.IsTerminal() {
		return db.Where("reference = ? AND status NOT IN ?", reference, terminalStatuses).
			Updates(map[string]interface{}{
				"status":               status,
				"raw_gateway_response": envelope,
			}).Error
	}

	return db.Where("reference = ? AND status <> ?", reference, paymentdm.StatusSuccess).
		Updates(map[string]interface{}{
			"status":               status,
			"raw_gateway_response": envelope,
		}).Error
}

func (r *TransactionRepository) MarkSucceeded(ctx context.Context, reference string, paidAt time.Time, envelope datatypes.JSON) (bool, error) {
	updates := map[string]interface{}{
		"status":  paymentdm.StatusSuccess,
		"paid_at": paidAt,
	}
	if len(envelope) > 0 {
		updates["raw_gateway_response"] = envelope
	}

	result := database.Conn(ctx, r.db).Model(&paymentdm.Transaction{}).
		Where("reference = ? AND status <> ?", reference, paymentdm.StatusSuccess).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *TransactionRepository) ListUnsettled(ctx context.Context, limit int) ([]*paymentdm.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []*paymentdm.Transaction
	err := database.Conn(ctx, r.db).
		Where("status NOT IN ?", terminalStatuses).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
