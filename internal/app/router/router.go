// Package router builds the gin engine and registers every route.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authhandler "account_backend/internal/feature/auth/transport/handler"
	"account_backend/internal/feature/auth/usecase"
	platformhandler "account_backend/internal/platform/http/handler"
	jwtmw "account_backend/internal/platform/jwt"
	"account_backend/internal/shared/ratelimiter"
)

// Options carries what the router needs beyond the handlers.
type Options struct {
	JWTSecret   string
	ResetPolicy usecase.ResetPolicy
	Limiter     ratelimiter.Limiter
	// StorePing is checked by GET /healthz when set.
	StorePing platformhandler.Pinger
	Logger    *zap.Logger
}

// NewRouter registers the health check and the /api/v1/auth routes.
func NewRouter(authHandler *authhandler.AuthHandler, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Logger))

	// 導通確認用
	health := platformhandler.Health(opts.StorePing)
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	r.OPTIONS("/healthz", health)

	api := r.Group("/api/v1/auth")
	if opts.Limiter != nil {
		api.Use(ratelimiter.Middleware(opts.Limiter, opts.Logger))
	}
	{
		// 認証不要
		api.POST("/register", authHandler.Register)
		api.POST("/verify", authHandler.Verify)
		api.POST("/resend-code", authHandler.ResendCode)
		api.POST("/login", authHandler.Login)
		api.PATCH("/update-password", authHandler.UpdatePassword)
		api.POST("/telegram-login", authHandler.TelegramLogin)
		// リセットコードはコード必須ポリシーの時だけ公開する
		if opts.ResetPolicy == usecase.ResetWithCode {
			api.POST("/password-reset/code", authHandler.RequestResetCode)
		}
	}

	// 認証必須のルート
	authed := api.Group("/")
	authed.Use(jwtmw.AuthRequired(opts.JWTSecret))
	{
		authed.GET("/me", authHandler.Me)
	}

	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("remote_addr", c.ClientIP()))
	}
}
