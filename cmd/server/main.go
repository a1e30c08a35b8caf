package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront-checkout/internal/config"
	"storefront-checkout/internal/database"
	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/events"
	"storefront-checkout/internal/handler"
	"storefront-checkout/internal/httpclient"
	"storefront-checkout/internal/infrastructure/orderapi"
	"storefront-checkout/internal/infrastructure/payment"
	"storefront-checkout/internal/logger"
	"storefront-checkout/internal/reconcile"
	"storefront-checkout/internal/repo"
	"storefront-checkout/internal/service"
	"storefront-checkout/internal/store"
	"storefront-checkout/internal/tracing"
	"storefront-checkout/internal/worker"
)

const serviceName = "storefront-checkout"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(flushCtx)
	}()

	db, err := database.Open(ctx, cfg.PostgresDSN(), logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db.DB()); err != nil {
		return err
	}

	orderRepo := repo.NewOrderRepo(db.DB())
	paymentRepo := repo.NewPaymentRepo(db.DB())
	orderService := service.NewOrderService(db.DB(), orderRepo, logger)

	checks := map[string]handler.HealthCheck{"database": db.Health}

	var pending store.PendingOrderStore
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		redisStore := store.NewRedisStore(client, cfg.PendingOrderTTL())
		if err := redisStore.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		checks["redis"] = handler.PingCheck(redisStore.Ping)
		pending = redisStore
	default:
		logger.Warn("pending orders are kept in memory; they are lost on restart and not shared between replicas")
		pending = store.NewMemoryStore()
	}

	base := httpclient.New(httpclient.DefaultConfig())
	fastPay := payment.NewFastPayClient(
		httpclient.NewCircuitBreakerClient(base, breakerConfig(cfg, "fastpay"), logger),
		cfg.FastPayBaseURL,
	)

	var committer reconcile.OrderCommitter = orderService
	if cfg.OrderAPIURL != "" {
		committer = orderapi.NewClient(
			httpclient.NewCircuitBreakerClient(base, breakerConfig(cfg, "order-api"), logger),
			cfg.OrderAPIURL,
		)
		logger.Info("orders are committed through the remote order service", zap.String("url", cfg.OrderAPIURL))
	}

	var publisher interface {
		reconcile.Publisher
		Close() error
	} = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers), cfg.KafkaTopic, logger)
	}
	defer func() { _ = publisher.Close() }()

	reconciler := reconcile.NewReconciler(pending, fastPay, committer, logger).
		WithRecorder(paymentRepo).
		WithPublisher(publisher).
		WithTimeouts(cfg.StatusQueryTimeout(), cfg.CommitTimeout())

	checkout := service.NewCheckoutService(pending, committer, map[domain.PaymentMethod]string{
		domain.PaymentPaylink: cfg.PaylinkCheckoutURL,
		domain.PaymentFastPay: cfg.FastPayCheckoutURL,
	}, cfg.ReturnURL, logger)

	sweeper := worker.NewReconciliationWorker(
		paymentRepo, fastPay, cfg.ReconcileInterval(), cfg.ReconcileGrace(), cfg.ReconcileBatchSize, logger,
	)
	go sweeper.Run(ctx)

	router := handler.NewRouter(
		handler.RouterConfig{ServiceName: serviceName, AllowedOrigins: cfg.CORSAllowedOrigins},
		handler.NewCheckoutHandler(checkout, reconciler, logger),
		handler.NewOrderHandler(orderService, logger),
		handler.NewHealthHandler(checks),
		logger,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.StatusQueryTimeout() + cfg.CommitTimeout() + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func breakerConfig(cfg *config.Config, name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
}
