package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roombook/internal/api"
	"roombook/internal/config"
	"roombook/internal/conflict"
	"roombook/internal/database"
	"roombook/internal/domain"
	"roombook/internal/events"
	"roombook/internal/invoicing"
	"roombook/internal/logging"
	"roombook/internal/metrics"
	"roombook/internal/models"
	"roombook/internal/occupancy"
	"roombook/internal/repository"
	"roombook/internal/service"
	"roombook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.Open(cfg.Database.Path, database.Options{
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
		NumberWidth:   cfg.Booking.NumberWidth,
		NumberRetry:   cfg.Booking.NumberRetry,
	}, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if cfg.SeedPath != "" {
		if err := seedCatalogue(context.Background(), db, cfg.SeedPath, &logger); err != nil {
			return err
		}
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}
	cache := initOccupancyCache(cfg, redisClient, &logger)

	sources := db.Sources()
	checker := conflict.NewChecker(&logger, sources...)
	checker.SetObserver(func(source models.SourceKind) { metrics.IncConflict(string(source)) })

	aggregator := occupancy.NewAggregator(db, cache, cfg.Booking.MaxRangeDays, &logger, sources...)
	invoices := invoicing.NewStore(db, &logger)
	bus := events.NewEventBus(&logger)

	opts := service.Options{
		CreateTxTimeout: cfg.Booking.CreateTxTimeout,
		BatchTxTimeout:  cfg.Booking.BatchTxTimeout,
		MaxRangeDays:    cfg.Booking.MaxRangeDays,
	}
	availability := service.NewAvailabilityService(db, checker, cfg.Booking.MaxRangeDays, &logger)
	bookings := service.NewBookingService(service.Deps{
		Repo:         db,
		Availability: availability,
		Invoicing:    invoices,
		Clients:      db,
		Events:       bus,
		Invalidator:  aggregator,
	}, opts, &logger)

	if cfg.Notifications.Enabled {
		notifier, closeNotifier, err := initNotifier(cfg.Notifications)
		if err != nil {
			logger.Error().Err(err).Msg("init notifier")
			return err
		}
		defer closeNotifier()

		w := worker.NewNotificationWorker(db, notifier, redisClient, worker.RetryPolicy{
			MaxRetries:    cfg.Notifications.MaxRetries,
			InitialDelay:  cfg.Notifications.RetryBaseDelay,
			MaxDelay:      cfg.Notifications.RetryMaxDelay,
			BackoffFactor: 2,
		}, cfg.Notifications.PollInterval, &logger)
		bus.SubscribeAll(w.HandleEvent)
		go w.Start(ctx)
	}

	go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)

	svc := api.Services{
		Bookings:     bookings,
		Availability: availability,
		Invoices:     service.NewInvoiceService(db, invoices, opts, &logger),
		Occupancy:    aggregator,
		Ready:        db.PingContext,
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, svc, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}
	httpServer := api.NewHTTPServer(cfg.API, svc, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initOccupancyCache puts Redis in front when it is reachable and always
// keeps the in-process cache as the fallback.
func initOccupancyCache(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.OccupancyCache {
	memory := repository.NewMemoryOccupancyCache(cfg.Booking.OccupancyCacheTTL)
	if client == nil {
		return memory
	}
	return repository.NewFailoverOccupancyCache(
		repository.NewRedisOccupancyCache(client, cfg.Booking.OccupancyCacheTTL),
		memory,
		logger,
	)
}

func initNotifier(cfg config.NotificationConfig) (domain.Notifier, func(), error) {
	var notifiers worker.Notifiers
	closeFn := func() {}

	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, worker.NewWebhookNotifier(cfg.WebhookURL, &http.Client{Timeout: 10 * time.Second}))
	}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := worker.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			return nil, nil, fmt.Errorf("connect amqp: %w", err)
		}
		notifiers = append(notifiers, amqpNotifier)
		closeFn = func() { _ = amqpNotifier.Close() }
	}
	return notifiers, closeFn, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
