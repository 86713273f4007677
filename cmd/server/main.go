// Package main runs the engagement HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nybble-vibe/backend/config"
	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/events"
	"github.com/nybble-vibe/backend/internal/leaderboard"
	"github.com/nybble-vibe/backend/internal/realtime"
	"github.com/nybble-vibe/backend/internal/server"
	"github.com/nybble-vibe/backend/internal/store"
	"github.com/nybble-vibe/backend/internal/worker"
	"github.com/nybble-vibe/backend/pkg/database"
	"github.com/nybble-vibe/backend/pkg/queue"
	"github.com/nybble-vibe/backend/pkg/redis"
	"github.com/nybble-vibe/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	st, pool := openStore(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	coord := engagement.NewCoordinator(st, logger)

	board, err := leaderboard.New(st, cfg.Leaderboard.CacheSize, time.Duration(cfg.Leaderboard.CacheTTLSec)*time.Second)
	if err != nil {
		logger.Fatal("leaderboard cache", zap.Error(err))
	}
	coord.OnCommit(board.Hook())

	// Redis: event notifications and report jobs
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		coord.OnCommit(realtime.NewRedisPubSub(rdb.Client, logger).Hook())
		coord.OnCommit(worker.EnqueueOnClose(queue.NewQueue(rdb.Client, logger)))
	} else {
		logger.Warn("REDIS_ADDR not set: notifications and report jobs disabled")
	}

	var reports events.ReportLocator
	if cfg.AWS.ReportsBucket != "" {
		s3Client, err := storage.NewS3(ctx, s3Config(cfg), logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			reports = s3Client
		}
	}

	router := server.NewRouter(server.Deps{
		Coordinator: coord,
		Reader:      st,
		Leaderboard: board,
		Reports:     reports,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openStore returns the configured store. The pool is nil for the memory driver.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engagement.Store, *pgxpool.Pool) {
	if cfg.Database.Driver == config.StoreDriverMemory {
		logger.Warn("using in-memory store: data is lost on restart")
		return store.NewMemory(), nil
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	return store.NewPostgres(pool), pool
}

func s3Config(cfg *config.Config) storage.S3Config {
	return storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ReportsBucket:        cfg.AWS.ReportsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
