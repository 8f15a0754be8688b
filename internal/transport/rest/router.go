package rest

import (
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/auth"
	"github.com/frahmantamala/invoice-payments/internal/invoice"
	"github.com/frahmantamala/invoice-payments/internal/payment"
	"github.com/frahmantamala/invoice-payments/internal/transport/middleware"
	"github.com/frahmantamala/invoice-payments/internal/transport/swagger"
)

type RouterDeps struct {
	DB             Pinger
	Gateway        GatewayStatus
	AuthHandler    *auth.Handler
	InvoiceHandler *invoice.Handler
	PaymentHandler *payment.Handler
	Logger         *slog.Logger
	AllowedOrigins string
	OpenAPIPath    string
	// OpenAPIDoc is nil when the document failed to load; the yml file is still served.
	OpenAPIDoc *openapi3.T
}

func RegisterAllRoutes(router *chi.Mux, deps RouterDeps) {
	healthHandler := NewHealthHandler(deps.DB, deps.Gateway)

	// Apply global middleware
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))

	// OpenAPI document and Swagger UI live outside the API prefix
	openAPIPath := deps.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = "./api/openapi.yml"
	}
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	if deps.OpenAPIDoc != nil {
		router.Get("/openapi.json", swagger.SpecHandler(deps.OpenAPIDoc))
	}
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/ping", healthHandler.Ping)

		if deps.AuthHandler == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", deps.AuthHandler.Login)
			sr.Post("/refresh", deps.AuthHandler.RefreshToken)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(deps.AuthHandler.AuthMiddleware)

			if deps.InvoiceHandler != nil {
				pr.Get("/invoices/{id}", deps.InvoiceHandler.GetInvoice)
				pr.Get("/invoices/{id}/payments", deps.InvoiceHandler.ListPayments)
			}

			if deps.PaymentHandler != nil {
				pr.Post("/payments/mobile-money", deps.PaymentHandler.InitiateMobileMoney)
				pr.Get("/payments/verify", deps.PaymentHandler.VerifyPayment)

				// staff only
				pr.Group(func(sr chi.Router) {
					sr.Use(deps.AuthHandler.RequirePermission(internal.PermissionManageInvoices, internal.PermissionAdmin))
					sr.Post("/payments/reconcile-pending", deps.PaymentHandler.ReconcilePending)
				})
			}
		})
	})
}
