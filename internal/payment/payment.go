package payment

import (
	"context"
	"time"

	"gorm.io/datatypes"

	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	"github.com/frahmantamala/invoice-payments/internal/paymentgateway"
)

// RepositoryAPI persists payment transactions.
type RepositoryAPI interface {
	Create(ctx context.Context, txn *paymentdm.Transaction) error
	GetByReference(ctx context.Context, reference string) (*paymentdm.Transaction, error)
	// RecordGatewayResult stores the latest gateway envelope. Non-success statuses are
	// written too, but never over a settled transaction.
	RecordGatewayResult(ctx context.Context, reference string, status paymentdm.TransactionStatus, envelope datatypes.JSON) error
	// MarkSucceeded flips status to SUCCESS only if it is not SUCCESS yet and
	// reports whether this call performed the flip.
	MarkSucceeded(ctx context.Context, reference string, paidAt time.Time, envelope datatypes.JSON) (bool, error)
	ListUnsettled(ctx context.Context, limit int) ([]*paymentdm.Transaction, error)
}

// Gateway is the part of the gateway client the payment flows use.
type Gateway interface {
	Configured() bool
	Charge(ctx context.Context, req *paymentgateway.ChargeRequest) (*paymentgateway.ChargeResult, error)
	Verify(ctx context.Context, reference string) (*paymentgateway.VerifyResult, error)
}

// Caller-facing status vocabulary. Gateway literals never reach callers.
const (
	CallerStatusPendingOTP  = "pending_otp"
	CallerStatusPendingUSSD = "pending_ussd"
	CallerStatusPending     = "pending"
	CallerStatusSuccess     = "success"
	CallerStatusFailed      = "failed"
)

func CallerStatus(s paymentdm.TransactionStatus) string {
	switch s {
	case paymentdm.StatusAwaitingOTP:
		return CallerStatusPendingOTP
	case paymentdm.StatusAwaitingUSSD:
		return CallerStatusPendingUSSD
	case paymentdm.StatusSuccess:
		return CallerStatusSuccess
	case paymentdm.StatusFailed:
		return CallerStatusFailed
	default:
		return CallerStatusPending
	}
}
