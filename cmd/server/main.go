package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/arverne/softsell/internal"
	"github.com/arverne/softsell/internal/billing"
	"github.com/arverne/softsell/internal/crypto"
	"github.com/arverne/softsell/internal/email"
	"github.com/arverne/softsell/internal/handler"
	"github.com/arverne/softsell/internal/handler/webhook"
	"github.com/arverne/softsell/internal/jobs"
	"github.com/arverne/softsell/internal/middleware"
	"github.com/arverne/softsell/internal/postgres"
	"github.com/arverne/softsell/internal/router"
	"github.com/arverne/softsell/internal/routes"
	"github.com/arverne/softsell/internal/service"
	"github.com/arverne/softsell/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Run migrations over database/sql, then hand the app a pgx pool
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	// PII codec for billing addresses. Dev boots without a configured key
	// on an ephemeral one; addresses stop decrypting after a restart.
	if cfg.EncryptionKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("failed to generate ephemeral encryption key: %w", err)
		}
		cfg.EncryptionKey = hex.EncodeToString(key)
		logger.Warn("PII_ENCRYPTION_KEY not set, using ephemeral key")
	}
	codec, err := crypto.NewAESCodec(cfg.EncryptionKey, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize PII codec: %w", err)
	}

	// Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:         cfg.Stripe.SecretKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		MaxRetries:     3,
		TimeoutSeconds: 30,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Email delivery
	var sender email.Sender
	switch cfg.Email.Provider {
	case "postmark":
		sender = email.NewPostmarkSender(cfg.Email.PostmarkToken)
	default:
		sender = email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
	}
	mailer, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// Business metrics
	metrics := telemetry.NewBusinessMetrics("softsell")

	// Services
	sessionService := service.NewSessionResolver(store, logger)
	addressService := service.NewAddressService(store, codec, logger)
	orderService := service.NewOrderService(store, billingProvider, logger)
	paymentService := service.NewPaymentService(store, billingProvider, logger)
	invoiceService, err := service.NewInvoiceService(addressService, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize invoice service: %w", err)
	}
	fulfillmentService := service.NewFulfillmentService(
		store, billingProvider, invoiceService, addressService, mailer, metrics, logger,
	)

	// Handlers
	checkoutHandler := handler.NewCheckoutHandler(
		sessionService, addressService, orderService, paymentService, metrics, logger,
	)
	orderHandler := handler.NewOrderHandler(orderService, invoiceService, logger)
	stripeWebhook := webhook.NewStripeHandler(billingProvider, fulfillmentService, metrics, logger)
	healthHandler := handler.NewHealthHandler(pool)

	// HTTP surface
	httpMetrics := middleware.NewMetrics("softsell")
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		middleware.WithOwner(),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
		httpMetrics.Middleware,
		middleware.Timeout(),
		middleware.MaxBodySize(middleware.SmallMaxBodySize),
	)

	routes.RegisterAPIRoutes(r.Group(rateLimiter.Middleware), routes.APIDeps{
		Checkout: checkoutHandler,
		Orders:   orderHandler,
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{Stripe: stripeWebhook})
	routes.RegisterSystemRoutes(r, routes.SystemDeps{Health: healthHandler})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.CORS(cfg.CORSOrigins)(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Background maintenance
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go jobs.NewSessionSweeper(store, jobs.DefaultSweepInterval, logger).Run(sweepCtx)

	// Serve until interrupted, then drain in-flight checkouts
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting checkout server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
