package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/core/database"
	"github.com/frahmantamala/invoice-payments/internal/core/events"
	"github.com/frahmantamala/invoice-payments/internal/invoice"
	invoicePostgres "github.com/frahmantamala/invoice-payments/internal/invoice/postgres"
	"github.com/frahmantamala/invoice-payments/internal/payment"
	paymentPostgres "github.com/frahmantamala/invoice-payments/internal/payment/postgres"
	"github.com/frahmantamala/invoice-payments/internal/paymentgateway"
	"github.com/frahmantamala/invoice-payments/pkg/logger"
)

// core is the settlement machinery shared by the server and the reconcile command.
type core struct {
	Config       *internal.Config
	Logger       *slog.Logger
	SQL          *sqlx.DB
	DB           *gorm.DB
	Gateway      *paymentgateway.Client
	EventBus     *events.EventBus
	Invoices     invoice.RepositoryAPI
	Transactions payment.RepositoryAPI
	Initiator    *payment.Initiator
	Reconciler   *payment.Reconciler
}

func buildCore(path string) (*core, error) {
	config, err := loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := logger.Init(config.Env, config.Logging.Level, config.Logging.Format)

	sqlDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(sqlDB, config.Env)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	gateway := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:          config.Gateway.BaseURL,
		SecretKey:        config.Gateway.SecretKey,
		CallbackURL:      config.Gateway.CallbackURL,
		Timeout:          config.Gateway.Timeout,
		VerifyMaxRetries: config.Gateway.VerifyMaxRetries,
		VerifyBackoff:    config.Gateway.VerifyBackoff,
	}, lg)
	if !gateway.Configured() {
		lg.Warn("payment gateway secret key is not set; mobile money initiation will be rejected")
	}

	eventBus := events.NewEventBus(lg)
	subscribeAuditLog(eventBus, lg)

	invoices := invoicePostgres.NewInvoiceRepository(gormDB)
	transactions := paymentPostgres.NewTransactionRepository(gormDB)
	txManager := database.NewTxManager(gormDB)

	return &core{
		Config:       config,
		Logger:       lg,
		SQL:          sqlDB,
		DB:           gormDB,
		Gateway:      gateway,
		EventBus:     eventBus,
		Invoices:     invoices,
		Transactions: transactions,
		Initiator:    payment.NewInitiator(invoices, transactions, gateway, config.Gateway.Currency, lg),
		Reconciler:   payment.NewReconciler(transactions, invoices, gateway, txManager, eventBus, lg),
	}, nil
}

// Close lets settlement event handlers finish before the pool goes away.
func (c *core) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.EventBus.Drain(ctx); err != nil {
		c.Logger.Warn("event bus drain incomplete", "error", err)
	}

	if err := c.SQL.Close(); err != nil {
		c.Logger.Error("database close error", "error", err)
	}
}

// subscribeAuditLog records settlement outcomes; nothing else reacts to them yet.
func subscribeAuditLog(bus *events.EventBus, lg *slog.Logger) {
	bus.Subscribe(events.EventTypePaymentSettled, func(ctx context.Context, event events.Event) error {
		lg.Info("payment settled", "event_id", event.EventID(), "payload", event.Payload())
		return nil
	})
	bus.Subscribe(events.EventTypePaymentFailed, func(ctx context.Context, event events.Event) error {
		lg.Warn("payment failed", "event_id", event.EventID(), "payload", event.Payload())
		return nil
	})
}

// initDB opens the pgx pool through sqlx.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers gorm over the existing pool so both share one set of connections.
func initGorm(sqlDB *sqlx.DB, env string) (*gorm.DB, error) {
	level := gormlogger.Warn
	if env != "production" {
		level = gormlogger.Info
	}

	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB.DB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
}
