package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionStatus is the internal, gateway-independent state of a payment attempt.
type TransactionStatus string

const (
	StatusPending      TransactionStatus = "PENDING"
	StatusAwaitingOTP  TransactionStatus = "AWAITING_OTP"
	StatusAwaitingUSSD TransactionStatus = "AWAITING_USSD"
	StatusSuccess      TransactionStatus = "SUCCESS"
	StatusFailed       TransactionStatus = "FAILED"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAwaitingOTP, StatusAwaitingUSSD, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type Channel string

const (
	ChannelMobileMoney  Channel = "MOBILE_MONEY"
	ChannelCard         Channel = "CARD"
	ChannelBankTransfer Channel = "BANK_TRANSFER"
)

// Transaction is one attempt to collect money for an invoice through the gateway.
// It is only persisted after the gateway accepted the charge.
type Transaction struct {
	ID              int64             `json:"id" gorm:"primaryKey"`
	Reference       string            `json:"reference" gorm:"column:reference;not null;uniqueIndex"`
	InvoiceID       int64             `json:"invoice_id" gorm:"column:invoice_id;not null;index"`
	CustomerID      int64             `json:"customer_id" gorm:"column:customer_id;not null;index"`
	Amount          decimal.Decimal   `json:"amount" gorm:"column:amount;type:decimal(18,2);not null"`
	Currency        string            `json:"currency" gorm:"column:currency;type:varchar(3);not null"`
	Channel         Channel           `json:"channel" gorm:"column:channel;type:varchar(20);not null"`
	PaymentMethod   string            `json:"payment_method" gorm:"column:payment_method;not null"`
	MobileNumber    *string           `json:"mobile_number,omitempty" gorm:"column:mobile_number"`
	ProviderCode    *string           `json:"provider_code,omitempty" gorm:"column:provider_code"`
	Status          TransactionStatus `json:"status" gorm:"column:status;type:varchar(20);not null;default:PENDING;index"`
	GatewayResponse datatypes.JSON    `json:"raw_gateway_response,omitempty" gorm:"column:raw_gateway_response"`
	PaidAt          *time.Time        `json:"paid_at,omitempty" gorm:"column:paid_at"`
	CreatedAt       time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (Transaction) TableName() string {
	return "payment_transactions"
}

// Payment is the append-only ledger entry written exactly once per settled
// transaction. The unique reference is what makes crediting idempotent.
type Payment struct {
	ID        int64           `json:"id" gorm:"primaryKey"`
	InvoiceID int64           `json:"invoice_id" gorm:"column:invoice_id;not null;index"`
	Amount    decimal.Decimal `json:"amount" gorm:"column:amount;type:decimal(18,2);not null"`
	Method    string          `json:"method" gorm:"column:method;not null"`
	Reference string          `json:"reference" gorm:"column:reference;not null;uniqueIndex"`
	Notes     *string         `json:"notes,omitempty" gorm:"column:notes"`
	CreatedAt time.Time       `json:"created_at" gorm:"column:created_at"`
}

func (Payment) TableName() string {
	return "payments"
}
