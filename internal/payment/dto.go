package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/core/common/validation"
)

// InitiateRequest starts a mobile-money collection for an invoice. Amount is
// optional and defaults to the outstanding balance.
type InitiateRequest struct {
	InvoiceID    int64            `json:"invoice_id"`
	Provider     string           `json:"provider"`
	MobileNumber string           `json:"mobile_number"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
}

func (r *InitiateRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("invoice_id", r.InvoiceID).Required().MinInt(1, errors.ErrCodeValidationFailed)
	validator.Field("provider", r.Provider).Required()
	validator.Field("mobile_number", r.MobileNumber).Required()
	validator.Field("amount", r.Amount).
		PositiveDecimal(errors.ErrCodeInvalidAmount).
		MaxDecimalPlaces(2, errors.ErrCodeInvalidAmount)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// InitiationResult is one of pending_otp, pending_ussd or any other caller status
// carrying the gateway data object.
type InitiationResult struct {
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	Reference   string          `json:"reference"`
	DisplayText string          `json:"display_text,omitempty"`
	USSDCode    string          `json:"ussd_code,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type ReconciliationResult struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    *time.Time      `json:"paid_at"`
	Message   string          `json:"message,omitempty"`
	Cached    bool            `json:"-"`
}

type BatchItem struct {
	Reference string `json:"reference"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BatchResult struct {
	Checked int         `json:"checked"`
	Settled int         `json:"settled"`
	Failed  int         `json:"failed"`
	Pending int         `json:"pending"`
	Errors  int         `json:"errors"`
	Results []BatchItem `json:"results"`
}
