/**
 * @description
 * Entry point for the freight billing service. Wires Postgres, the optional
 * Redis cache and sweep lock, RabbitMQ events, the HTTP API and the dunning
 * scheduler.
 *
 * @dependencies
 * - pgxpool for database connections, go-redis for caching and locking,
 *   godotenv for local config, and rabbitmq for events.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/transfa/freight-billing-service/internal/api"
	"github.com/transfa/freight-billing-service/internal/app"
	"github.com/transfa/freight-billing-service/internal/config"
	"github.com/transfa/freight-billing-service/internal/store"
	billingrabbit "github.com/transfa/freight-billing-service/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	pgConfig.MaxConns = 20
	pgConfig.MinConns = 2
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewRepository(dbpool)

	var cache app.ConfigCache
	var locker app.Locker
	if redisClient := connectRedis(logger, cfg.RedisURL); redisClient != nil {
		defer redisClient.Close()
		cache = store.NewRedisConfigCache(redisClient, cfg.RedisKeyPrefix, time.Duration(cfg.ConfigCacheTTLSeconds)*time.Second)
		locker = store.NewRedisLocker(redisClient, cfg.RedisKeyPrefix)
	} else {
		locker = store.NewLocalLocker()
	}

	var publisher billingrabbit.Publisher = &billingrabbit.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		if producer, err := billingrabbit.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
			logger.Info("connected to RabbitMQ", "exchange", cfg.EventsExchange)
		} else {
			logger.Warn("failed to connect to RabbitMQ, using fallback publisher", "error", err)
		}
	}
	defer publisher.Close()

	service := app.NewService(repository, cache, locker, publisher, cfg)

	scheduler := app.NewScheduler(app.NewJobs(service, logger), logger, cfg)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(service)
	router := api.NewRouter(handler, api.AuthConfig{
		JWKSURL:        cfg.ClerkJWKSURL,
		Audience:       cfg.ClerkAudience,
		Issuer:         cfg.ClerkIssuer,
		InternalAPIKey: cfg.InternalAPIKey,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	stopCtx := scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	select {
	case <-stopCtx.Done():
	case <-shutdownCtx.Done():
		logger.Warn("dunning sweep still running at shutdown")
	}

	logger.Info("server stopped")
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// service then runs without a config cache and with an in-process sweep lock.
func connectRedis(logger *slog.Logger, redisURL string) *redis.Client {
	if redisURL == "" {
		logger.Warn("redis url missing; configuration cache disabled", "env", "REDIS_URL")
		return nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis url parse failed; configuration cache disabled", "error", err)
		return nil
	}

	client := redis.NewClient(options)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; configuration cache disabled", "error", err)
		client.Close()
		return nil
	}

	logger.Info("redis connected")
	return client
}
