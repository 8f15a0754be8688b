package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/invoice-payments/internal/auth"
	authPostgres "github.com/frahmantamala/invoice-payments/internal/auth/postgres"
	"github.com/frahmantamala/invoice-payments/internal/invoice"
	"github.com/frahmantamala/invoice-payments/internal/payment"
	"github.com/frahmantamala/invoice-payments/internal/transport"
	"github.com/frahmantamala/invoice-payments/internal/transport/rest"
	"github.com/frahmantamala/invoice-payments/internal/transport/swagger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	c, err := buildCore(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	router := chi.NewRouter()
	setupRoutes(router, c)

	cfg := c.Config.Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	c.Logger.Info("Starting HTTP server", "address", addr, "env", c.Config.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		c.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			c.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.Logger.Error("Server failed to start", "error", err)
			c.Close()
			os.Exit(1)
		}
	}

	c.Logger.Info("Server stopped")
}

func setupRoutes(router *chi.Mux, c *core) {
	base := transport.NewBaseHandler(c.Logger)

	tokens := auth.NewJWTTokenGenerator(c.Config.Security.JWTSecret, c.Config.Security.AccessTokenDuration)
	authService := auth.NewService(authPostgres.NewRepository(c.DB), tokens, c.Config.Security.BCryptCost, c.Logger)
	invoiceService := invoice.NewService(c.Invoices, c.Logger)

	openAPIPath := c.Config.Server.OpenAPIPath
	doc, err := swagger.LoadSpec(context.Background(), openAPIPath)
	if err != nil {
		c.Logger.Warn("openapi document not loaded; /openapi.json disabled", "path", openAPIPath, "error", err)
	}

	rest.RegisterAllRoutes(router, rest.RouterDeps{
		DB:             c.SQL,
		Gateway:        c.Gateway,
		AuthHandler:    auth.NewHandler(base, authService),
		InvoiceHandler: invoice.NewHandler(base, invoiceService),
		PaymentHandler: payment.NewHandler(base, c.Initiator, c.Reconciler),
		Logger:         c.Logger,
		AllowedOrigins: c.Config.Server.AllowedOrigins,
		OpenAPIPath:    openAPIPath,
		OpenAPIDoc:     doc,
	})
}
