package paymentgateway

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
)

// TranslateStatus maps gateway vocabulary to the internal status. It is the only
// place gateway literals are interpreted.
func TranslateStatus(literal string) paymentdm.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(literal)) {
	case "success":
		return paymentdm.StatusSuccess
	case "failed", "abandoned", "reversed":
		return paymentdm.StatusFailed
	case "send_otp":
		return paymentdm.StatusAwaitingOTP
	case "pay_offline":
		return paymentdm.StatusAwaitingUSSD
	default:
		return paymentdm.StatusPending
	}
}

type ChargeRequest struct {
	Reference   string
	Email       string
	AmountMinor int64
	Currency    string
	Phone       string
	Provider    string
	Metadata    map[string]interface{}
}

func (r *ChargeRequest) Validate() error {
	if r.Reference == "" {
		return errors.New("reference is required")
	}
	if r.AmountMinor <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	if r.Phone == "" || r.Provider == "" {
		return errors.New("mobile money phone and provider are required")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

type ChargeResult struct {
	Reference     string
	Status        paymentdm.TransactionStatus
	GatewayStatus string
	Message       string
	DisplayText   string
	USSDCode      string
	// Data is the gateway's data object, passed back to callers for statuses
	// that need no further instruction.
	Data     json.RawMessage
	Envelope paymentdm.GatewayEnvelope
}

type VerifyResult struct {
	Reference     string
	Status        paymentdm.TransactionStatus
	GatewayStatus string
	Message       string
	AmountMinor   int64
	PaidAt        *time.Time
	Envelope      paymentdm.GatewayEnvelope
}

type mobileMoneyPayload struct {
	Phone    string `json:"phone"`
	Provider string `json:"provider"`
}

type chargePayload struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Currency    string                 `json:"currency"`
	Reference   string                 `json:"reference"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	MobileMoney mobileMoneyPayload     `json:"mobile_money"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type envelopeResponse[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type chargeData struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	DisplayText string `json:"display_text"`
	USSDCode    string `json:"ussd_code"`
}

func (chargeData) raw(body []byte) json.RawMessage {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil
	}
	return wrapper.Data
}

type verifyData struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaidAt          string `json:"paid_at"`
	Channel         string `json:"channel"`
	GatewayResponse string `json:"gateway_response"`
}

func (d verifyData) paidAt() *time.Time {
	if d.PaidAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, d.PaidAt)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
