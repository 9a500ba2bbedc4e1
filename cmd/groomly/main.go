package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/api"
	"github.com/groomly/groomly/internal/availability"
	"github.com/groomly/groomly/internal/circuitbreaker"
	"github.com/groomly/groomly/internal/config"
	"github.com/groomly/groomly/internal/db"
	"github.com/groomly/groomly/internal/notify"
	"github.com/groomly/groomly/internal/observ"
	"github.com/groomly/groomly/internal/redis"
	"github.com/groomly/groomly/internal/settings"
	"github.com/groomly/groomly/internal/sqs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting groomly",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.Bool("mock_providers", cfg.UseMockProviders),
	)

	ctx := context.Background()

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	repo := db.NewRepository(database, logger)

	// Redis is optional: without it bookings lose idempotency and rate
	// limiting but the salon stays open.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, idempotency and rate limiting disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
	}

	var idempotencyService *redis.IdempotencyService
	var rateLimiter *redis.RateLimiter
	if redisClient != nil {
		idempotencyService = redis.NewIdempotencyService(redisClient, logger)
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  100,
			Window: 1 * time.Minute,
		})
		defer redisClient.Close()
	}

	producer, err := sqs.NewProducer(ctx, sqs.Config{
		Region:   cfg.SQSRegion,
		QueueURL: cfg.SQSQueueURL,
	}, logger)
	if err != nil {
		logger.Warn("sqs producer unavailable, appointment events disabled",
			zap.Error(err),
		)
		producer = nil
	}

	transports := notify.NewTransports(cfg.UseMockProviders, buildTransport(ctx, cfg, logger), logger)

	retryCfg := notify.RetryConfig{
		MaxRetries:   cfg.RetryMaxRetries,
		BaseDelay:    cfg.RetryBaseDelay(),
		MaxDelay:     cfg.RetryMaxDelay(),
		JitterFactor: cfg.RetryJitter,
	}

	dispatcher := notify.NewDispatcher(repo, transports, retryCfg, logger)
	processor := notify.NewProcessor(repo, transports, retryCfg, logger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go notify.NewWorker(processor, cfg.RetryInterval(), logger).Start(workerCtx)

	engine := availability.New(availability.Policy{
		SlotInterval: cfg.SlotInterval(),
		LeadTime:     cfg.LeadTime(),
	})
	hoursCache := settings.NewHoursCache(repo, cfg.HoursCacheTTL(), logger)

	handler := api.NewHandler(logger, repo, engine, hoursCache).
		WithIdempotency(idempotencyService).
		WithProducer(producer).
		WithNotifier(dispatcher).
		WithRetryRunner(processor)

	router := api.NewRouter(handler, rateLimiter, database, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		workerCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}

// buildTransport constructs the production transport for a channel,
// wrapped in a per-provider circuit breaker.
func buildTransport(ctx context.Context, cfg *config.Config, logger *zap.Logger) func(channel string) (notify.Transport, error) {
	return func(channel string) (notify.Transport, error) {
		switch channel {
		case db.ChannelEmail:
			ses, err := notify.NewSESTransport(ctx, notify.SESConfig{
				Region:    cfg.AWSRegion,
				FromEmail: cfg.SESFromEmail,
			}, logger)
			if err != nil {
				return nil, err
			}
			breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("email"), logger)
			return notify.NewProtectedTransport(ses, breaker, logger), nil
		case db.ChannelSMS:
			sns, err := notify.NewSNSTransport(ctx, notify.SNSConfig{
				Region: cfg.SNSRegion,
			}, logger)
			if err != nil {
				return nil, err
			}
			breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("sms"), logger)
			return notify.NewProtectedTransport(sns, breaker, logger), nil
		default:
			return nil, fmt.Errorf("unsupported channel: %s", channel)
		}
	}
}
