package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentSettled = "payment.settled"
	EventTypePaymentFailed  = "payment.failed"
)

// PaymentSettledEvent is published once per reference, after the credit transition committed.
type PaymentSettledEvent struct {
	BaseEvent
	Reference     string `json:"reference"`
	InvoiceID     int64  `json:"invoice_id"`
	Amount        string `json:"amount"`
	InvoiceStatus string `json:"invoice_status"`
}

func NewPaymentSettledEvent(reference string, invoiceID int64, amount, invoiceStatus string) *PaymentSettledEvent {
	return &PaymentSettledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentSettled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference":      reference,
				"invoice_id":     invoiceID,
				"amount":         amount,
				"invoice_status": invoiceStatus,
			},
		},
		Reference:     reference,
		InvoiceID:     invoiceID,
		Amount:        amount,
		InvoiceStatus: invoiceStatus,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	Reference     string `json:"reference"`
	InvoiceID     int64  `json:"invoice_id"`
	GatewayStatus string `json:"gateway_status"`
	Message       string `json:"message"`
}

func NewPaymentFailedEvent(reference string, invoiceID int64, gatewayStatus, message string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference":      reference,
				"invoice_id":     invoiceID,
				"gateway_status": gatewayStatus,
				"message":        message,
			},
		},
		Reference:     reference,
		InvoiceID:     invoiceID,
		GatewayStatus: gatewayStatus,
		Message:       message,
	}
}
