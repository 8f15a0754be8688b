package invoice

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/invoice-payments/internal"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
	"github.com/frahmantamala/invoice-payments/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

type PaymentsResponse struct {
	InvoiceID int64                `json:"invoice_id"`
	Payments  []*paymentdm.Payment `json:"payments"`
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	principal, _ := internal.PrincipalFromContext(r.Context())
	view, err := h.Service.GetInvoice(r.Context(), id, principal)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	principal, _ := internal.PrincipalFromContext(r.Context())
	payments, err := h.Service.ListPayments(r.Context(), id, principal)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if payments == nil {
		payments = []*paymentdm.Payment{}
	}

	h.WriteJSON(w, http.StatusOK, PaymentsResponse{InvoiceID: id, Payments: payments})
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.HandleServiceError(w, internal.NewValidationFieldError("id", "invoice id must be a positive integer", internal.ErrCodeValidationFailed))
		return 0, false
	}
	return id, true
}
