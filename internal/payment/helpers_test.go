package payment_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/invoice-payments/internal"
	invoicedm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/invoice"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	"github.com/frahmantamala/invoice-payments/internal/core/events"
	invoicePostgres "github.com/frahmantamala/invoice-payments/internal/invoice/postgres"
	"github.com/frahmantamala/invoice-payments/internal/paymentgateway"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestDB opens a private in-memory sqlite database. A single connection keeps
// every query on the same database and serialises writers the way row locks would.
func newTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	Expect(err).NotTo(HaveOccurred())

	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)

	Expect(db.AutoMigrate(&invoicedm.Invoice{}, &paymentdm.Transaction{}, &paymentdm.Payment{})).To(Succeed())
	return db
}

func seedInvoice(db *gorm.DB, number string, customerID int64, total, amountPaid string) *invoicedm.Invoice {
	inv := &invoicedm.Invoice{
		InvoiceNumber: number,
		CustomerID:    customerID,
		BillingEmail:  "customer@example.com",
		Subtotal:      decimal.RequireFromString(total),
		AmountPaid:    decimal.RequireFromString(amountPaid),
	}
	inv.RecomputeTotal()
	inv.PaymentStatus = invoicedm.StatusUnpaid
	if inv.AmountPaid.GreaterThanOrEqual(inv.Total) {
		inv.PaymentStatus = invoicedm.StatusPaid
	} else if inv.AmountPaid.IsPositive() {
		inv.PaymentStatus = invoicedm.StatusPartiallyPaid
	}
	Expect(invoicePostgres.NewInvoiceRepository(db).Create(context.Background(), inv)).To(Succeed())
	return inv
}

func seedTransaction(db *gorm.DB, inv *invoicedm.Invoice, reference, amount string) *paymentdm.Transaction {
	phone := "233241018947"
	provider := "mtn"
	txn := &paymentdm.Transaction{
		Reference:     reference,
		InvoiceID:     inv.ID,
		CustomerID:    inv.CustomerID,
		Amount:        decimal.RequireFromString(amount),
		Currency:      "GHS",
		Channel:       paymentdm.ChannelMobileMoney,
		PaymentMethod: "MOBILE_MONEY_MTN",
		MobileNumber:  &phone,
		ProviderCode:  &provider,
		Status:        paymentdm.StatusAwaitingOTP,
	}
	Expect(db.Create(txn).Error).To(Succeed())
	return txn
}

func reloadInvoice(db *gorm.DB, id int64) *invoicedm.Invoice {
	var inv invoicedm.Invoice
	Expect(db.First(&inv, id).Error).To(Succeed())
	return &inv
}

func reloadTransaction(db *gorm.DB, reference string) *paymentdm.Transaction {
	var txn paymentdm.Transaction
	Expect(db.Where("reference = ?", reference).First(&txn).Error).To(Succeed())
	return &txn
}

func ledgerEntries(db *gorm.DB, invoiceID int64) []paymentdm.Payment {
	var payments []paymentdm.Payment
	Expect(db.Where("invoice_id = ?", invoiceID).Find(&payments).Error).To(Succeed())
	return payments
}

func ledgerSum(db *gorm.DB, invoiceID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range ledgerEntries(db, invoiceID) {
		sum = sum.Add(p.Amount)
	}
	return sum
}

func countTransactions(db *gorm.DB) int64 {
	var n int64
	Expect(db.Model(&paymentdm.Transaction{}).Count(&n).Error).To(Succeed())
	return n
}

// fakeGateway is an in-process Gateway with canned answers.
type fakeGateway struct {
	mu           sync.Mutex
	configured   bool
	chargeResult *paymentgateway.ChargeResult
	chargeErr    error
	verifyResult *paymentgateway.VerifyResult
	verifyErr    error
	charges      []*paymentgateway.ChargeRequest
	verifyCalls  int32
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{configured: true}
}

func (g *fakeGateway) Configured() bool {
	return g.configured
}

func (g *fakeGateway) Charge(ctx context.Context, req *paymentgateway.ChargeRequest) (*paymentgateway.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	res := *g.chargeResult
	res.Reference = req.Reference
	return &res, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (*paymentgateway.VerifyResult, error) {
	atomic.AddInt32(&g.verifyCalls, 1)
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	res := *g.verifyResult
	res.Reference = reference
	return &res, nil
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

func chargeAnswer(literal, message string) *paymentgateway.ChargeResult {
	return &paymentgateway.ChargeResult{
		Status:        paymentgateway.TranslateStatus(literal),
		GatewayStatus: literal,
		Message:       message,
		Envelope: paymentdm.GatewayEnvelope{
			Provider:      "paystack",
			Operation:     paymentdm.OperationCharge,
			GatewayStatus: literal,
			RawPayload:    []byte(`{"status":true}`),
			ReceivedAt:    time.Now().UTC(),
		},
	}
}

func verifyAnswer(literal string, amountMinor int64, paidAt *time.Time) *paymentgateway.VerifyResult {
	return &paymentgateway.VerifyResult{
		Status:        paymentgateway.TranslateStatus(literal),
		GatewayStatus: literal,
		Message:       "Verification successful",
		AmountMinor:   amountMinor,
		PaidAt:        paidAt,
		Envelope: paymentdm.GatewayEnvelope{
			Provider:      "paystack",
			Operation:     paymentdm.OperationVerify,
			GatewayStatus: literal,
			RawPayload:    []byte(`{"status":true,"data":{"status":"` + literal + `"}}`),
			ReceivedAt:    time.Now().UTC(),
		},
	}
}

func customer(userID, customerID int64) *internal.Principal {
	return &internal.Principal{UserID: userID, Email: "customer@example.com", CustomerID: &customerID}
}

func staff(userID int64) *internal.Principal {
	return &internal.Principal{UserID: userID, Email: "ops@example.com", Permissions: []string{internal.PermissionManageInvoices}}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}
