package payment

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Initiator  InitiatorAPI
	Reconciler ReconcilerAPI
}

func NewHandler(baseHandler *transport.BaseHandler, initiator InitiatorAPI, reconciler ReconcilerAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Initiator:   initiator,
		Reconciler:  reconciler,
	}
}

// InitiateMobileMoney handles POST /api/v1/payments/mobile-money
func (h *Handler) InitiateMobileMoney(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrUnauthenticated)
		return
	}

	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("InitiateMobileMoney: failed to parse request body", "error", err)
		h.HandleServiceError(w, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
		return
	}

	result, err := h.Initiator.Initiate(r.Context(), req, principal)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

// VerifyPayment handles GET /api/v1/payments/verify?reference=...
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrUnauthenticated)
		return
	}

	result, err := h.Reconciler.Reconcile(r.Context(), r.URL.Query().Get("reference"), principal)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

// ReconcilePending handles POST /api/v1/payments/reconcile-pending?limit=N
func (h *Handler) ReconcilePending(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrUnauthenticated)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			h.HandleServiceError(w, internal.NewValidationFieldError("limit", "limit must be between 1 and 500", internal.ErrCodeValidationFailed))
			return
		}
		limit = parsed
	}

	batch, err := h.Reconciler.ReconcilePending(r.Context(), limit, principal)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, batch)
}
