package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/outage-verify-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/outage-verify-service/internal/adapter/kafka"
	"github.com/couchcryptid/outage-verify-service/internal/adapter/memory"
	mongoadapter "github.com/couchcryptid/outage-verify-service/internal/adapter/mongo"
	redisadapter "github.com/couchcryptid/outage-verify-service/internal/adapter/redis"
	"github.com/couchcryptid/outage-verify-service/internal/config"
	"github.com/couchcryptid/outage-verify-service/internal/lifecycle"
	"github.com/couchcryptid/outage-verify-service/internal/observability"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func(context.Context) error

	var store lifecycle.Store
	switch cfg.StoreBackend {
	case config.StoreMongo:
		ms, err := mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Error("failed to connect to mongo", "error", err)
			os.Exit(1)
		}
		if err := ms.EnsureIndexes(ctx); err != nil {
			logger.Error("failed to ensure mongo indexes", "error", err)
			os.Exit(1)
		}
		closers = append(closers, ms.Close)
		store = ms
		logger.Info("using mongo store", "database", cfg.MongoDatabase)
	default:
		store = memory.NewStore()
		logger.Warn("using in-memory store; data is lost on restart")
	}

	var locker lifecycle.Locker
	if cfg.LockBackend == config.LockRedis {
		rdb, err := redisadapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		closers = append(closers, func(context.Context) error { return rdb.Close() })
		locker = redisadapter.NewLocker(rdb, cfg.LockTTL, logger)
	}

	var publisher lifecycle.Publisher
	if cfg.KafkaEnabled {
		p := kafkaadapter.NewPublisher(cfg, logger)
		closers = append(closers, func(context.Context) error { return p.Close() })
		publisher = p
		logger.Info("publishing report events", "topic", cfg.KafkaEventsTopic)
	}

	svc := lifecycle.New(store, locker, publisher, lifecycle.PolicyFromConfig(cfg), clockwork.NewRealClock(), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, svc, httpadapter.Options{
		JWTSecret:      []byte(cfg.JWTSecret),
		RateLimitRPS:   cfg.HTTPRateLimitRPS,
		RateLimitBurst: cfg.HTTPRateLimitBurst,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](shutdownCtx); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
