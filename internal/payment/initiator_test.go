package payment_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/invoice-payments/internal"
	invoicedm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/invoice"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	invoicePostgres "github.com/frahmantamala/invoice-payments/internal/invoice/postgres"
	"github.com/frahmantamala/invoice-payments/internal/payment"
	paymentPostgres "github.com/frahmantamala/invoice-payments/internal/payment/postgres"
)

var _ = Describe("Initiator", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		gateway   *fakeGateway
		initiator *payment.Initiator
		inv       *invoicedm.Invoice
		owner     *internal.Principal
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = newTestDB()
		gateway = newFakeGateway()
		gateway.chargeResult = chargeAnswer("send_otp", "Charge attempted")
		gateway.chargeResult.DisplayText = "Please enter the OTP sent to your phone"

		initiator = payment.NewInitiator(
			invoicePostgres.NewInvoiceRepository(db),
			paymentPostgres.NewTransactionRepository(db),
			gateway,
			"GHS",
			testLogger(),
		)
		inv = seedInvoice(db, "INV-001", 42, "1000", "0")
		owner = customer(7, 42)
	})

	request := func() payment.InitiateRequest {
		return payment.InitiateRequest{
			InvoiceID:    inv.ID,
			Provider:     "mtn",
			MobileNumber: "0241018947",
		}
	}

	expectNothingSent := func() {
		Expect(gateway.chargeCount()).To(Equal(0))
		Expect(countTransactions(db)).To(BeZero())
	}

	Describe("preconditions", func() {
		It("rejects an unauthenticated caller", func() {
			_, err := initiator.Initiate(ctx, request(), nil)
			Expect(err).To(MatchError(internal.ErrUnauthenticated))
			expectNothingSent()
		})

		It("rejects an unknown provider before looking up the invoice", func() {
			req := request()
			req.InvoiceID = 9999
			req.Provider = "airtel"

			_, err := initiator.Initiate(ctx, req, owner)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidProvider))
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
			expectNothingSent()
		})

		It("rejects a malformed mobile number", func() {
			req := request()
			req.MobileNumber = "12345"

			_, err := initiator.Initiate(ctx, req, owner)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidPhone))
			expectNothingSent()
		})

		It("rejects a missing invoice id", func() {
			req := request()
			req.InvoiceID = 0

			_, err := initiator.Initiate(ctx, req, owner)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
			expectNothingSent()
		})

		It("reports an unknown invoice as not found", func() {
			req := request()
			req.InvoiceID = 9999

			_, err := initiator.Initiate(ctx, req, owner)
			Expect(err).To(MatchError(internal.ErrInvoiceNotFound))
			expectNothingSent()
		})

		It("forbids paying another customer's invoice", func() {
			_, err := initiator.Initiate(ctx, request(), customer(8, 99))
			Expect(err).To(MatchError(internal.ErrForbiddenInvoice))
			expectNothingSent()
		})

		It("refuses an invoice with nothing outstanding", func() {
			paid := seedInvoice(db, "INV-002", 42, "500", "500")
			req := request()
			req.InvoiceID = paid.ID

			_, err := initiator.Initiate(ctx, req, owner)
			Expect(err).To(MatchError(internal.ErrInvoiceAlreadyPaid))
			expectNothingSent()
		})

		It("refuses an amount above the outstanding balance", func() {
			amount := decimal.RequireFromString("1000.01")
			req := request()
			req.Amount = &amount

			_, err := initiator.Initiate(ctx, req, owner)
			Expect(err).To(MatchError(internal.ErrInvalidAmount))
			expectNothingSent()
		})

		It("refuses a non-positive amount", func() {
			amount := decimal.Zero
			req := request()
			req.Amount = &amount

			_, err := initiator.Initiate(ctx, req, owner)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidAmount))
			expectNothingSent()
		})

		It("refuses an amount finer than a pesewa", func() {
			amount := decimal.RequireFromString("400.005")
			req := request()
			req.Amount = &amount

			_, err := initiator.Initiate(ctx, req, owner)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidAmount))
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
			expectNothingSent()
		})

		It("accepts trailing zeros beyond two decimal places", func() {
			amount := decimal.RequireFromString("400.500")
			req := request()
			req.Amount = &amount

			_, err := initiator.Initiate(ctx, req, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.charges[0].AmountMinor).To(Equal(int64(40050)))
		})

		It("reports a gateway without credentials as a configuration error", func() {
			gateway.configured = false

			_, err := initiator.Initiate(ctx, request(), owner)

			Expect(err).To(MatchError(internal.ErrGatewayNotConfigured))
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.StatusCode).To(Equal(http.StatusInternalServerError))
			expectNothingSent()
		})
	})

	Describe("charging", func() {
		It("gives every initiation in the same millisecond its own reference", func() {
			frozen := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
			initiator.SetClock(func() time.Time { return frozen })
			amount := decimal.NewFromInt(1)

			references := map[string]struct{}{}
			for i := 0; i < 20; i++ {
				req := request()
				req.Amount = &amount
				result, err := initiator.Initiate(ctx, req, owner)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Reference).To(HavePrefix(fmt.Sprintf("MM-INV-001-%d-", frozen.UnixMilli())))
				references[result.Reference] = struct{}{}
			}

			Expect(references).To(HaveLen(20))
			Expect(gateway.chargeCount()).To(Equal(20))
			Expect(countTransactions(db)).To(Equal(int64(20)))
		})

		It("returns pending_otp and records the transaction", func() {
			result, err := initiator.Initiate(ctx, request(), owner)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Status).To(Equal(payment.CallerStatusPendingOTP))
			Expect(result.DisplayText).To(Equal("Please enter the OTP sent to your phone"))
			Expect(result.Reference).To(HavePrefix("MM-INV-001-"))

			Expect(gateway.charges).To(HaveLen(1))
			sent := gateway.charges[0]
			Expect(sent.AmountMinor).To(Equal(int64(100000)))
			Expect(sent.Phone).To(Equal("233241018947"))
			Expect(sent.Provider).To(Equal("mtn"))
			Expect(sent.Currency).To(Equal("GHS"))
			Expect(sent.Email).To(Equal("customer@example.com"))
			Expect(sent.Metadata).To(HaveKeyWithValue("invoice_id", inv.ID))
			Expect(sent.Metadata).To(HaveKey("correlation_id"))

			txn := reloadTransaction(db, result.Reference)
			Expect(txn.Status).To(Equal(paymentdm.StatusAwaitingOTP))
			Expect(txn.Amount.Equal(decimal.NewFromInt(1000))).To(BeTrue())
			Expect(txn.PaymentMethod).To(Equal("MOBILE_MONEY_MTN"))
			Expect(*txn.MobileNumber).To(Equal("233241018947"))
			Expect(txn.CustomerID).To(Equal(int64(42)))

			envelope, err := paymentdm.DecodeEnvelope(txn.GatewayResponse)
			Expect(err).NotTo(HaveOccurred())
			Expect(envelope.Version).To(Equal(paymentdm.EnvelopeVersion))
			Expect(envelope.Operation).To(Equal(paymentdm.OperationCharge))
			Expect(envelope.GatewayStatus).To(Equal("send_otp"))

			updated := reloadInvoice(db, inv.ID)
			Expect(updated.TransactionRef).NotTo(BeNil())
			Expect(*updated.TransactionRef).To(Equal(result.Reference))
			Expect(updated.AmountPaid.IsZero()).To(BeTrue())
			Expect(updated.PaymentStatus).To(Equal(invoicedm.StatusUnpaid))
		})

		It("returns pending_ussd with the dial code", func() {
			gateway.chargeResult = chargeAnswer("pay_offline", "Charge attempted")
			gateway.chargeResult.DisplayText = "Dial *170# to approve"
			gateway.chargeResult.USSDCode = "*170#"
			req := request()
			req.Provider = "VOD"
			req.MobileNumber = "0201234567"

			result, err := initiator.Initiate(ctx, req, owner)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Status).To(Equal(payment.CallerStatusPendingUSSD))
			Expect(result.USSDCode).To(Equal("*170#"))
			Expect(result.DisplayText).To(Equal("Dial *170# to approve"))

			txn := reloadTransaction(db, result.Reference)
			Expect(txn.Status).To(Equal(paymentdm.StatusAwaitingUSSD))
			Expect(txn.PaymentMethod).To(Equal("MOBILE_MONEY_VODAFONE"))
		})

		It("passes the gateway data through for other statuses", func() {
			gateway.chargeResult = chargeAnswer("pending", "Charge in progress")
			gateway.chargeResult.Data = []byte(`{"status":"pending"}`)

			result, err := initiator.Initiate(ctx, request(), owner)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Status).To(Equal(payment.CallerStatusPending))
			Expect(string(result.Data)).To(MatchJSON(`{"status":"pending"}`))
			Expect(reloadTransaction(db, result.Reference).Status).To(Equal(paymentdm.StatusPending))
		})

		It("charges a partial amount when one is requested", func() {
			amount := decimal.RequireFromString("400")
			req := request()
			req.Amount = &amount

			result, err := initiator.Initiate(ctx, req, owner)
			Expect(err).NotTo(HaveOccurred())

			Expect(gateway.charges[0].AmountMinor).To(Equal(int64(40000)))
			Expect(reloadTransaction(db, result.Reference).Amount.Equal(amount)).To(BeTrue())
		})

		It("lets staff pay on behalf of any customer", func() {
			result, err := initiator.Initiate(ctx, request(), staff(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(reloadTransaction(db, result.Reference).CustomerID).To(Equal(int64(42)))
		})

		It("records nothing when the gateway declines", func() {
			gateway.chargeResult = chargeAnswer("failed", "Insufficient funds")

			_, err := initiator.Initiate(ctx, request(), owner)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(countTransactions(db)).To(BeZero())
		})

		It("records nothing when the gateway call errors", func() {
			gateway.chargeErr = errors.New("connection reset by peer")

			_, err := initiator.Initiate(ctx, request(), owner)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayError))
			Expect(appErr.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(countTransactions(db)).To(BeZero())
		})
	})
})
