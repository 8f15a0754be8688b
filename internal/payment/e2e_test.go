package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/core/database"
	invoicedm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/invoice"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	invoicePostgres "github.com/frahmantamala/invoice-payments/internal/invoice/postgres"
	"github.com/frahmantamala/invoice-payments/internal/payment"
	paymentPostgres "github.com/frahmantamala/invoice-payments/internal/payment/postgres"
	"github.com/frahmantamala/invoice-payments/internal/paymentgateway"
	"github.com/frahmantamala/invoice-payments/internal/transport"
)

// stubGateway answers like the hosted gateway: a charge asks for an OTP and a
// later verification reports the charge as successful.
type stubGateway struct {
	mu            sync.Mutex
	authorization string
	charge        map[string]interface{}
	verifyStatus  string
}

func (s *stubGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorization = r.Header.Get("Authorization")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/charge":
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &s.charge)
		fmt.Fprintf(w, `{"status":true,"message":"Charge attempted","data":{"reference":%q,"status":"send_otp","display_text":"Please enter the OTP sent to your phone"}}`, s.charge["reference"])
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
		reference := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		fmt.Fprintf(w, `{"status":true,"message":"Verification successful","data":{"reference":%q,"status":%q,"amount":100000,"currency":"GHS","paid_at":"2026-01-15T10:30:00Z","channel":"mobile_money","gateway_response":"Approved"}}`, reference, s.verifyStatus)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"status":false,"message":"not found"}`)
	}
}

var _ = Describe("Mobile money payment end to end", func() {
	var (
		db     *gorm.DB
		stub   *stubGateway
		server *httptest.Server
		router chi.Router
		inv    *invoicedm.Invoice
		caller *internal.Principal
	)

	BeforeEach(func() {
		db = newTestDB()
		stub = &stubGateway{verifyStatus: "success"}
		server = httptest.NewServer(stub)
		DeferCleanup(server.Close)

		logger := testLogger()
		client := paymentgateway.NewClient(paymentgateway.Config{
			BaseURL:   server.URL,
			SecretKey: "sk_test_secret",
		}, logger)

		invoices := invoicePostgres.NewInvoiceRepository(db)
		transactions := paymentPostgres.NewTransactionRepository(db)
		handler := payment.NewHandler(
			transport.NewBaseHandler(logger),
			payment.NewInitiator(invoices, transactions, client, "GHS", logger),
			payment.NewReconciler(transactions, invoices, client, database.NewTxManager(db), nil, logger),
		)

		inv = seedInvoice(db, "INV-100", 42, "1000", "0")
		caller = customer(7, 42)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithPrincipal(r.Context(), caller)))
			})
		})
		router.Post("/payments/mobile-money", handler.InitiateMobileMoney)
		router.Get("/payments/verify", handler.VerifyPayment)
	})

	call := func(method, target string, body interface{}) (int, map[string]interface{}) {
		var reader io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, target, reader).WithContext(context.Background())
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var decoded map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &decoded)).To(Succeed())
		return rec.Code, decoded
	}

	It("takes an invoice from unpaid to paid exactly once", func() {
		code, initiated := call(http.MethodPost, "/payments/mobile-money", map[string]interface{}{
			"invoice_id":    inv.ID,
			"provider":      "mtn",
			"mobile_number": "0241018947",
		})
		Expect(code).To(Equal(http.StatusOK))
		Expect(initiated["status"]).To(Equal("pending_otp"))
		Expect(initiated["display_text"]).To(Equal("Please enter the OTP sent to your phone"))
		reference, _ := initiated["reference"].(string)
		Expect(reference).To(HavePrefix("MM-INV-100-"))

		Expect(stub.authorization).To(Equal("Bearer sk_test_secret"))
		Expect(stub.charge["amount"]).To(BeNumerically("==", 100000))
		Expect(stub.charge["currency"]).To(Equal("GHS"))
		Expect(stub.charge["mobile_money"]).To(HaveKeyWithValue("phone", "233241018947"))
		Expect(stub.charge["mobile_money"]).To(HaveKeyWithValue("provider", "mtn"))

		Expect(reloadTransaction(db, reference).Status).To(Equal(paymentdm.StatusAwaitingOTP))
		Expect(reloadInvoice(db, inv.ID).AmountPaid.IsZero()).To(BeTrue())

		code, verified := call(http.MethodGet, "/payments/verify?reference="+reference, nil)
		Expect(code).To(Equal(http.StatusOK))
		Expect(verified["status"]).To(Equal("success"))
		Expect(verified["reference"]).To(Equal(reference))
		Expect(verified["amount"]).To(Equal("1000"))
		Expect(verified["paid_at"]).To(Equal("2026-01-15T10:30:00Z"))
		Expect(verified["message"]).To(Equal("Approved"))

		Expect(reloadTransaction(db, reference).Status).To(Equal(paymentdm.StatusSuccess))
		entries := ledgerEntries(db, inv.ID)
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Amount.Equal(decimal.NewFromInt(1000))).To(BeTrue())
		paid := reloadInvoice(db, inv.ID)
		Expect(paid.AmountPaid.Equal(decimal.NewFromInt(1000))).To(BeTrue())
		Expect(paid.PaymentStatus).To(Equal(invoicedm.StatusPaid))

		code, replay := call(http.MethodGet, "/payments/verify?reference="+reference, nil)
		Expect(code).To(Equal(http.StatusOK))
		for _, key := range []string{"status", "reference", "amount"} {
			Expect(replay[key]).To(Equal(verified[key]), key)
		}
		replayedAt, err := time.Parse(time.RFC3339, replay["paid_at"].(string))
		Expect(err).NotTo(HaveOccurred())
		Expect(replayedAt).To(BeTemporally("==", time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)))

		Expect(ledgerEntries(db, inv.ID)).To(HaveLen(1))
		again := reloadInvoice(db, inv.ID)
		Expect(again.AmountPaid.Equal(paid.AmountPaid)).To(BeTrue())
		Expect(again.PaymentStatus).To(Equal(paid.PaymentStatus))
		Expect(*again.PaidAt).To(BeTemporally("==", *paid.PaidAt))
	})

	It("reports a failed charge at verification without crediting", func() {
		_, initiated := call(http.MethodPost, "/payments/mobile-money", map[string]interface{}{
			"invoice_id":    inv.ID,
			"provider":      "tgo",
			"mobile_number": "233271234567",
		})
		reference, _ := initiated["reference"].(string)
		stub.verifyStatus = "abandoned"

		code, verified := call(http.MethodGet, "/payments/verify?reference="+reference, nil)
		Expect(code).To(Equal(http.StatusOK))
		Expect(verified["status"]).To(Equal("failed"))
		Expect(reloadTransaction(db, reference).Status).To(Equal(paymentdm.StatusFailed))
		Expect(ledgerEntries(db, inv.ID)).To(BeEmpty())
	})
})
