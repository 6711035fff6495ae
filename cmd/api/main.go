package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workspace-commerce/internal/archive"
	"workspace-commerce/internal/config"
	"workspace-commerce/internal/database"
	"workspace-commerce/internal/handler"
	"workspace-commerce/internal/idempotency"
	"workspace-commerce/internal/ledger"
	"workspace-commerce/internal/metrics"
	"workspace-commerce/internal/pricing"
	"workspace-commerce/internal/provisioning"
	"workspace-commerce/internal/repository"
	"workspace-commerce/internal/router"
	"workspace-commerce/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting workspace commerce API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(pool, database.DirectionUp, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(pool, logger)
	invoiceRepo := repository.NewInvoiceRepository(pool, logger)
	provisioningRepo := repository.NewProvisioningRepository(pool, logger)
	paymentRepo := repository.NewPaymentRepository(pool, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var cache idempotency.Cache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			// The database still enforces key uniqueness without the cache.
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, idempotency cache disabled")
		} else {
			cache = idempotency.NewRedisCache(rdb)
		}
	}

	calculator := pricing.NewCalculator()
	archiver := newArchiver(ctx, cfg.Archive, logger)

	// Initialize services
	fulfillmentService := service.NewFulfillmentService(
		orderRepo,
		invoiceRepo,
		calculator,
		idempotency.NewGuard(orderRepo, cache, cfg.Idempotency.TTL(), logger),
		provisioning.NewProvisioner(provisioningRepo, logger),
		archiver,
		cfg.Archive.Timeout(),
		m,
		logger,
	)
	orderService := service.NewOrderService(orderRepo, invoiceRepo, provisioningRepo, archiver, logger)
	paymentLedger := ledger.NewService(paymentRepo, ledger.NewProjector(orderRepo, invoiceRepo, logger), m, logger)

	// Initialize HTTP handlers
	orderHandler := handler.NewOrderHandler(fulfillmentService, orderService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentLedger, orderService, logger)

	// Initialize router
	mux := router.New(orderHandler, paymentHandler, m, cfg.Auth, cfg.CORS, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newArchiver prefers S3 and falls back to the local directory. With neither
// configured, invoices are not archived.
func newArchiver(ctx context.Context, cfg config.ArchiveConfig, logger zerolog.Logger) archive.Archiver {
	var local archive.Archiver
	if cfg.Dir != "" {
		local = archive.NewFileArchiver(cfg.Dir, logger)
	}

	if !cfg.S3.Enabled {
		if local == nil {
			logger.Info().Msg("invoice archiving disabled")
			return archive.Nop{}
		}
		logger.Info().Str("dir", cfg.Dir).Msg("archiving invoices to local file system (S3 disabled)")
		return local
	}

	s3Archiver, err := archive.NewS3Archiver(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 archiver, falling back to local file system only")
		if local == nil {
			return archive.Nop{}
		}
		return local
	}

	if local == nil {
		return s3Archiver
	}
	return archive.NewFallbackArchiver(s3Archiver, local, logger)
}
