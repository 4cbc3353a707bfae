package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salontime/internal/api"
	"salontime/internal/config"
	"salontime/internal/database"
	"salontime/internal/domain"
	"salontime/internal/events"
	"salontime/internal/logging"
	"salontime/internal/metrics"
	"salontime/internal/repository"
	"salontime/internal/service"
	"salontime/internal/worker"
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

	db, err := initDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	cache, locker := initSlotStore(cfg, redisClient, logger)

	eventBus := events.NewEventBus()
	subscribeEventLog(eventBus, logging.Component(logger, "events"))

	notifier := service.NewLogNotifier(logging.Component(logger, "notifier"))
	bookingService := service.NewBookingService(db, cache, locker, eventBus, notifier,
		cfg.Booking, cfg.Waitlist.TTL, logging.Component(logger, "booking"))
	salonService := service.NewSalonService(db, cache, logging.Component(logger, "salon"))

	if cfg.Reminders.Enabled {
		retryPolicy := worker.RetryPolicy{MaxRetries: 3, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2}
		reminders := worker.NewReminderWorker(db, notifier, eventBus, retryPolicy,
			cfg.Reminders.Interval, cfg.Reminders.LeadTime, logging.Component(logger, "reminders"))
		go reminders.Start(ctx)
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Database.Path, cfg.Backup, logging.Component(logger, "backup"))
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Exports.Path, db, bookingService, salonService, logging.Component(logger, "http"))
	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	seedPath := cfg.Database.SeedFile
	if env := os.Getenv("SEED_PATH"); env != "" {
		seedPath = env
	}
	if seedPath == "" {
		return db, nil
	}

	seed, err := loadSeed(seedPath)
	if err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read seed")
		db.Close()
		return nil, err
	}
	if err := applySeed(context.Background(), db, seed, logger); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("apply seed")
		db.Close()
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		logger.Info().Msg("redis not configured, using in-memory slot cache and locks")
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(client)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initSlotStore prefers redis for the slot cache and day locks and falls back
// to process memory whenever redis is absent or failing.
func initSlotStore(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) (domain.SlotCache, domain.DayLocker) {
	memCache := repository.NewMemorySlotCache(cfg.Booking.SlotCacheTTL)
	memLocker := repository.NewMemoryDayLocker(cfg.Booking.LockWait)
	if client == nil {
		return memCache, memLocker
	}

	storeLogger := logging.Component(logger, "slot-store")
	cache := repository.NewFailoverSlotCache(repository.NewRedisSlotCache(client, cfg.Booking.SlotCacheTTL), memCache, storeLogger)
	locker := repository.NewFailoverDayLocker(
		repository.NewRedisDayLocker(client, cfg.Booking.LockTTL, cfg.Booking.LockWait), memLocker, storeLogger)
	return cache, locker
}

func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.AllEvents, func(e *events.Event) error {
		logger.Debug().
			Str("event_id", e.ID).
			Str("event_type", e.Type).
			RawJSON("payload", e.Payload).
			Msg("domain event")
		return nil
	})
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

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return serveErr
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
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
