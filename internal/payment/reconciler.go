package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/core/common/mobilemoney"
	"github.com/frahmantamala/invoice-payments/internal/core/database"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	"github.com/frahmantamala/invoice-payments/internal/core/events"
	"github.com/frahmantamala/invoice-payments/internal/invoice"
	"github.com/frahmantamala/invoice-payments/internal/paymentgateway"
	"github.com/frahmantamala/invoice-payments/pkg/logger"
)

type ReconcilerAPI interface {
	Reconcile(ctx context.Context, reference string, principal *internal.Principal) (*ReconciliationResult, error)
	ReconcilePending(ctx context.Context, limit int, principal *internal.Principal) (*BatchResult, error)
}

type Reconciler struct {
	transactions RepositoryAPI
	invoices     invoice.RepositoryAPI
	gateway      Gateway
	txManager    database.TransactionManager
	publisher    events.Publisher
	logger       *slog.Logger
	now          func() time.Time
}

func NewReconciler(transactions RepositoryAPI, invoices invoice.RepositoryAPI, gateway Gateway, txManager database.TransactionManager, publisher events.Publisher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		transactions: transactions,
		invoices:     invoices,
		gateway:      gateway,
		txManager:    txManager,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// Reconcile brings a transaction in line with the gateway and credits the invoice
// the first time the gateway reports success. Any later call for the same
// reference is a no-op on the ledger.
func (r *Reconciler) Reconcile(ctx context.Context, reference string, principal *internal.Principal) (*ReconciliationResult, error) {
	if principal == nil {
		return nil, internal.ErrUnauthenticated
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, internal.ErrMissingReference
	}

	txn, err := r.transactions.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if !principal.CanAccessCustomer(txn.CustomerID) {
		r.log(ctx).Warn("payment verification denied", "reference", reference, "user_id", principal.UserID)
		return nil, internal.ErrForbiddenInvoice
	}

	if txn.Status == paymentdm.StatusSuccess {
		return cachedResult(txn), nil
	}

	verified, err := r.gateway.Verify(ctx, reference)
	if err != nil {
		r.log(ctx).Error("gateway verification failed", "reference", reference, "error", err)
		return nil, gatewayError(err)
	}

	envelope, err := verified.Envelope.JSON()
	if err != nil {
		return nil, internal.NewInternalError("failed to encode gateway response", err)
	}

	if err := r.transactions.RecordGatewayResult(ctx, reference, verified.Status, envelope); err != nil {
		return nil, internal.NewInternalError("failed to record gateway response", err)
	}

	switch verified.Status {
	case paymentdm.StatusSuccess:
		return r.settle(ctx, txn, verified, envelope)
	case paymentdm.StatusFailed:
		if txn.Status != paymentdm.StatusFailed {
			r.log(ctx).Info("payment failed at gateway", "reference", reference, "gateway_status", verified.GatewayStatus)
			r.publish(ctx, events.NewPaymentFailedEvent(reference, txn.InvoiceID, verified.GatewayStatus, verified.Message))
		}
	}

	return &ReconciliationResult{
		Status:    CallerStatus(verified.Status),
		Reference: reference,
		Amount:    txn.Amount,
		Message:   verified.Message,
	}, nil
}

// settle runs the credit transition as one unit of work. The conditional status
// flip decides the single winner; the unique ledger reference backs it up.
func (r *Reconciler) settle(ctx context.Context, txn *paymentdm.Transaction, verified *paymentgateway.VerifyResult, envelope []byte) (*ReconciliationResult, error) {
	paidAt := r.now().UTC()
	if verified.PaidAt != nil {
		paidAt = verified.PaidAt.UTC()
	}

	if expected := mobilemoney.ToMinorUnits(txn.Amount); verified.AmountMinor != 0 && verified.AmountMinor != expected {
		r.log(ctx).Warn("gateway amount differs from transaction amount",
			"reference", txn.Reference,
			"expected_minor", expected,
			"gateway_minor", verified.AmountMinor,
			"gateway_amount", mobilemoney.FromMinorUnits(verified.AmountMinor).String())
	}

	var credit invoice.Credit
	err := r.txManager.RunInTx(ctx, func(ctx context.Context) error {
		won, err := r.transactions.MarkSucceeded(ctx, txn.Reference, paidAt, envelope)
		if err != nil {
			return fmt.Errorf("failed to mark transaction succeeded: %w", err)
		}
		if !won {
			return internal.ErrAlreadySettled
		}

		inv, err := r.invoices.GetByIDForUpdate(ctx, txn.InvoiceID)
		if err != nil {
			return err
		}

		credit = invoice.ApplyCredit(inv, txn.Amount, paidAt)
		if err := r.invoices.SaveCredit(ctx, inv.ID, credit, txn.PaymentMethod); err != nil {
			return fmt.Errorf("failed to credit invoice: %w", err)
		}

		notes := fmt.Sprintf("%s payment confirmed by gateway", txn.PaymentMethod)
		return r.invoices.InsertPayment(ctx, &paymentdm.Payment{
			InvoiceID: inv.ID,
			Amount:    txn.Amount,
			Method:    txn.PaymentMethod,
			Reference: txn.Reference,
			Notes:     &notes,
		})
	})

	if errors.Is(err, internal.ErrAlreadySettled) {
		r.log(ctx).Info("credit transition already applied by a concurrent call", "reference", txn.Reference)
		settled, rerr := r.transactions.GetByReference(ctx, txn.Reference)
		if rerr != nil {
			return nil, rerr
		}
		if settled.Status != paymentdm.StatusSuccess {
			// a ledger entry exists for a transaction that is not settled
			r.log(ctx).Error("ledger entry exists for unsettled transaction", "reference", txn.Reference)
			return nil, internal.ErrAlreadySettled
		}
		result := cachedResult(settled)
		result.Message = verified.Message
		return result, nil
	}
	if err != nil {
		r.log(ctx).Error("credit transition failed", "reference", txn.Reference, "error", err)
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to settle payment", err)
	}

	r.log(ctx).Info("payment settled",
		"reference", txn.Reference,
		"invoice_id", txn.InvoiceID,
		"amount", txn.Amount.String(),
		"invoice_status", credit.Status)

	r.publish(ctx, events.NewPaymentSettledEvent(txn.Reference, txn.InvoiceID, txn.Amount.String(), string(credit.Status)))

	return &ReconciliationResult{
		Status:    CallerStatusSuccess,
		Reference: txn.Reference,
		Amount:    txn.Amount,
		PaidAt:    &paidAt,
		Message:   verified.Message,
	}, nil
}

// ReconcilePending runs Reconcile for the oldest unsettled transactions. One
// failing reference does not stop the batch.
func (r *Reconciler) ReconcilePending(ctx context.Context, limit int, principal *internal.Principal) (*BatchResult, error) {
	if principal == nil {
		return nil, internal.ErrUnauthenticated
	}
	if !principal.IsElevated() {
		return nil, internal.NewForbiddenError("insufficient permissions", internal.ErrCodeUnauthorizedAccess)
	}

	txns, err := r.transactions.ListUnsettled(ctx, limit)
	if err != nil {
		return nil, internal.NewInternalError("failed to list unsettled transactions", err)
	}

	batch := &BatchResult{Results: make([]BatchItem, 0, len(txns))}
	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		batch.Checked++
		item := BatchItem{Reference: txn.Reference}

		result, err := r.Reconcile(ctx, txn.Reference, principal)
		if err != nil {
			batch.Errors++
			item.Error = err.Error()
			r.log(ctx).Warn("reconcile pending: reference failed", "reference", txn.Reference, "error", err)
			batch.Results = append(batch.Results, item)
			continue
		}

		item.Status = result.Status
		switch result.Status {
		case CallerStatusSuccess:
			batch.Settled++
		case CallerStatusFailed:
			batch.Failed++
		default:
			batch.Pending++
		}
		batch.Results = append(batch.Results, item)
	}

	r.log(ctx).Info("reconcile pending finished",
		"checked", batch.Checked,
		"settled", batch.Settled,
		"failed", batch.Failed,
		"pending", batch.Pending,
		"errors", batch.Errors)

	return batch, nil
}

func (r *Reconciler) publish(ctx context.Context, event events.Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.log(ctx).Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

// cachedResult answers from the stored settlement without calling the gateway.
// PaidAt is the recorded settlement time, not the time of this call.
func cachedResult(txn *paymentdm.Transaction) *ReconciliationResult {
	return &ReconciliationResult{
		Status:    CallerStatusSuccess,
		Reference: txn.Reference,
		Amount:    txn.Amount,
		PaidAt:    txn.PaidAt,
		Cached:    true,
	}
}

func (r *Reconciler) log(ctx context.Context) *slog.Logger {
	return logger.Scoped(ctx, r.logger)
}
