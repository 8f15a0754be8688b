package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/core/common/mobilemoney"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	"github.com/frahmantamala/invoice-payments/internal/invoice"
	"github.com/frahmantamala/invoice-payments/internal/paymentgateway"
	"github.com/frahmantamala/invoice-payments/pkg/logger"
)

type InitiatorAPI interface {
	Initiate(ctx context.Context, req InitiateRequest, principal *internal.Principal) (*InitiationResult, error)
}

type Initiator struct {
	invoices     invoice.RepositoryAPI
	transactions RepositoryAPI
	gateway      Gateway
	currency     string
	logger       *slog.Logger
	now          func() time.Time
}

func NewInitiator(invoices invoice.RepositoryAPI, transactions RepositoryAPI, gateway Gateway, currency string, logger *slog.Logger) *Initiator {
	if currency == "" {
		currency = "GHS"
	}
	return &Initiator{
		invoices:     invoices,
		transactions: transactions,
		gateway:      gateway,
		currency:     currency,
		logger:       logger,
		now:          time.Now,
	}
}

// Initiate checks every precondition before touching the gateway, charges the
// wallet and records the transaction only once the gateway accepted the charge.
func (s *Initiator) Initiate(ctx context.Context, req InitiateRequest, principal *internal.Principal) (*InitiationResult, error) {
	if principal == nil {
		return nil, internal.ErrUnauthenticated
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	provider, appErr := mobilemoney.ParseProvider(req.Provider)
	if appErr != nil {
		return nil, appErr
	}

	phone, appErr := mobilemoney.NormalizePhone(req.MobileNumber)
	if appErr != nil {
		return nil, appErr
	}

	inv, err := s.invoices.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	if !principal.CanAccessCustomer(inv.CustomerID) {
		s.log(ctx).Warn("payment initiation denied",
			"invoice_id", inv.ID,
			"user_id", principal.UserID)
		return nil, internal.ErrForbiddenInvoice
	}

	outstanding := invoice.Outstanding(inv)
	if !outstanding.IsPositive() {
		return nil, internal.ErrInvoiceAlreadyPaid
	}

	amount := outstanding
	if req.Amount != nil {
		if !req.Amount.IsPositive() || req.Amount.GreaterThan(outstanding) {
			return nil, internal.ErrInvalidAmount
		}
		amount = *req.Amount
	}
	amountMinor := mobilemoney.ToMinorUnits(amount)
	if amountMinor <= 0 {
		return nil, internal.ErrInvalidAmount
	}

	if !s.gateway.Configured() {
		s.log(ctx).Error("payment gateway credentials missing")
		return nil, internal.ErrGatewayNotConfigured
	}

	// the random tail keeps two initiations in the same millisecond apart
	reference := fmt.Sprintf("MM-%s-%d-%s", inv.InvoiceNumber, s.now().UnixMilli(), uuid.NewString()[:8])

	email := inv.BillingEmail
	if email == "" {
		email = principal.Email
	}

	charge, err := s.gateway.Charge(ctx, &paymentgateway.ChargeRequest{
		Reference:   reference,
		Email:       email,
		AmountMinor: amountMinor,
		Currency:    s.currency,
		Phone:       phone,
		Provider:    string(provider),
		Metadata: map[string]interface{}{
			"invoice_id":     inv.ID,
			"invoice_number": inv.InvoiceNumber,
			"customer_id":    inv.CustomerID,
			"initiated_by":   principal.UserID,
			"correlation_id": uuid.NewString(),
		},
	})
	if err != nil {
		s.log(ctx).Error("gateway charge failed", "reference", reference, "invoice_id", inv.ID, "error", err)
		return nil, gatewayError(err)
	}
	if charge.Status == paymentdm.StatusFailed {
		s.log(ctx).Warn("gateway declined charge",
			"reference", reference,
			"gateway_status", charge.GatewayStatus,
			"message", charge.Message)
		return nil, internal.NewGatewayError("payment gateway declined the charge: "+charge.Message, nil)
	}

	envelope, err := charge.Envelope.JSON()
	if err != nil {
		return nil, internal.NewInternalError("failed to encode gateway response", err)
	}

	providerCode := string(provider)
	txn := &paymentdm.Transaction{
		Reference:       charge.Reference,
		InvoiceID:       inv.ID,
		CustomerID:      inv.CustomerID,
		Amount:          amount,
		Currency:        s.currency,
		Channel:         paymentdm.ChannelMobileMoney,
		PaymentMethod:   string(paymentdm.ChannelMobileMoney) + "_" + provider.MethodSuffix(),
		MobileNumber:    &phone,
		ProviderCode:    &providerCode,
		Status:          charge.Status,
		GatewayResponse: envelope,
	}

	if err := s.transactions.Create(ctx, txn); err != nil {
		// the wallet may still be debited; the reference is what ops needs to reconcile by hand
		s.log(ctx).Error("failed to persist accepted charge",
			"reference", txn.Reference,
			"invoice_id", inv.ID,
			"error", err)
		return nil, internal.NewInternalError("failed to record payment transaction", err)
	}

	if err := s.invoices.UpdateTransactionRef(ctx, inv.ID, txn.Reference); err != nil {
		s.log(ctx).Warn("failed to update invoice transaction reference",
			"reference", txn.Reference,
			"invoice_id", inv.ID,
			"error", err)
	}

	s.log(ctx).Info("payment initiated",
		"reference", txn.Reference,
		"invoice_id", inv.ID,
		"amount", amount.String(),
		"status", txn.Status)

	result := &InitiationResult{
		Status:    CallerStatus(charge.Status),
		Message:   charge.Message,
		Reference: txn.Reference,
	}
	switch charge.Status {
	case paymentdm.StatusAwaitingOTP:
		result.DisplayText = charge.DisplayText
	case paymentdm.StatusAwaitingUSSD:
		result.DisplayText = charge.DisplayText
		result.USSDCode = charge.USSDCode
	default:
		result.Data = charge.Data
	}

	return result, nil
}

func gatewayError(err error) error {
	if errors.Is(err, paymentgateway.ErrNotConfigured) {
		return internal.ErrGatewayNotConfigured
	}
	return internal.NewGatewayError("payment gateway error", err)
}

func (s *Initiator) log(ctx context.Context) *slog.Logger {
	return logger.Scoped(ctx, s.logger)
}
