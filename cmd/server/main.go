package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"account_backend/internal/app/di"
	"account_backend/internal/app/router"
	"account_backend/internal/config"
	authhandler "account_backend/internal/feature/auth/transport/handler"
	"account_backend/internal/platform/logger"
	platformredis "account_backend/internal/platform/redis"
)

func main() {
	// .env は任意（本番では環境変数を直接渡す）
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.Init(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set. Set a strong secret in production.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	store, err := di.NewStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open account store", zap.Error(err))
	}
	defer store.Close()

	// Redis
	var rdb *redisv9.Client
	if cfg.RedisAddr != "" {
		if tmp, err := platformredis.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, log); err != nil {
			log.Warn("Redis unavailable. Rate limiting falls back to process memory and account caching is off.")
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Error("failed to close Redis client", zap.Error(err))
				}
			}()
		}
	}

	notifier, closeNotifier := di.NewNotifier(cfg, log)
	defer closeNotifier()

	// Usecase / Handler
	accounts := di.NewAccountCache(rdb, cfg, store.Accounts)
	authUC := di.NewAuthUsecase(cfg, accounts, notifier, log)
	authH := authhandler.NewAuthHandler(authUC, log, !cfg.IsProduction())

	engine := router.NewRouter(authH, router.Options{
		JWTSecret:   cfg.JWTSecret,
		ResetPolicy: cfg.Policy.ResetPolicy,
		Limiter:     di.NewLimiter(rdb, cfg),
		StorePing:   store.Ping,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
