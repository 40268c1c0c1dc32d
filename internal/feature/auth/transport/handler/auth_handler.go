// Package handler はauthフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"account_backend/internal/feature/auth/domain/entity"
	"account_backend/internal/feature/auth/transport/http/dto"
	"account_backend/internal/feature/auth/usecase"
	jwtmw "account_backend/internal/platform/jwt"
)

// AuthUsecase は認証操作のユースケースを定義します。
// Goの慣例に従い、インターフェースはプロバイダー（usecase）ではなくコンシューマー（handler）が定義します。
type AuthUsecase interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.RegisterResult, error)
	Verify(ctx context.Context, accountID, code string) (*usecase.AuthResult, error)
	ResendCode(ctx context.Context, accountID string) (time.Duration, error)
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.AuthResult, error)
	UpdatePassword(ctx context.Context, in usecase.UpdatePasswordInput) error
	RequestPasswordResetCode(ctx context.Context, phone string) (time.Duration, error)
	FederatedLogin(ctx context.Context, payload map[string]string) (*usecase.AuthResult, error)
	Account(ctx context.Context, id string) (*entity.Account, error)
}

// AuthHandler は認証操作のHTTPリクエストを処理します。
// AuthUsecaseインターフェースに依存し、JSONリクエスト/レスポンスを処理します。
type AuthHandler struct {
	auth   AuthUsecase
	logger *zap.Logger
	// exposeErrors adds the underlying error text to 500 responses (non-production only).
	exposeErrors bool
}

// NewAuthHandler はAuthHandlerの新しいインスタンスを生成します。
func NewAuthHandler(auth AuthUsecase, logger *zap.Logger, exposeErrors bool) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, logger: logger, exposeErrors: exposeErrors}
}

// Register はユーザー登録APIエンドポイントを処理します。
// - 成功時は201とアカウント、次のステップ（verify）を返却
// - バリデーションエラー時は400、重複時は409を返却
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterReq
	if !h.bind(c, &req) {
		return
	}
	res, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		AuthMethod: req.AuthMethod,
	})
	if err != nil {
		h.writeError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, dto.RegisterRes{
		Account:     dto.NewAccountRes(res.Account),
		NextStep:    res.NextStep,
		ResendAfter: dto.Seconds(res.ResendAfter),
	})
}

// Verify は確認コードの検証APIエンドポイントを処理します。
// 成功時はトークン付きで200を返却します。
func (h *AuthHandler) Verify(c *gin.Context) {
	var req dto.VerifyReq
	if !h.bind(c, &req) {
		return
	}
	res, err := h.auth.Verify(c.Request.Context(), req.AccountID, req.Code)
	if err != nil {
		h.writeError(c, "verify", err)
		return
	}
	c.JSON(http.StatusOK, authRes(res))
}

// ResendCode は確認コードの再送APIエンドポイントを処理します。
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req dto.ResendReq
	if !h.bind(c, &req) {
		return
	}
	cooldown, err := h.auth.ResendCode(c.Request.Context(), req.AccountID)
	if err != nil {
		h.writeError(c, "resend code", err)
		return
	}
	c.JSON(http.StatusOK, dto.CooldownRes{Message: "verification code sent", CooldownSeconds: dto.Seconds(cooldown)})
}

// Login はユーザーログインAPIエンドポイントを処理します。
// - 認証成功時はトークン付きで200を返却
// - 未確認アカウントは403とアカウントIDを返却
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginReq
	if !h.bind(c, &req) {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, authRes(res))
}

// UpdatePassword はパスワード更新APIエンドポイントを処理します。
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req dto.UpdatePasswordReq
	if !h.bind(c, &req) {
		return
	}
	err := h.auth.UpdatePassword(c.Request.Context(), usecase.UpdatePasswordInput{
		Phone:       req.Phone,
		NewPassword: req.NewPassword,
		Code:        req.Code,
	})
	if err != nil {
		h.writeError(c, "update password", err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageRes{Message: "password updated"})
}

// RequestResetCode sends a password reset code to the phone.
func (h *AuthHandler) RequestResetCode(c *gin.Context) {
	var req dto.ResetCodeReq
	if !h.bind(c, &req) {
		return
	}
	cooldown, err := h.auth.RequestPasswordResetCode(c.Request.Context(), req.Phone)
	if err != nil {
		h.writeError(c, "request reset code", err)
		return
	}
	c.JSON(http.StatusOK, dto.CooldownRes{Message: "reset code sent", CooldownSeconds: dto.Seconds(cooldown)})
}

// TelegramLogin は外部ID連携ログインAPIエンドポイントを処理します。
func (h *AuthHandler) TelegramLogin(c *gin.Context) {
	var req dto.TelegramLoginReq
	if !h.bind(c, &req) {
		return
	}
	res, err := h.auth.FederatedLogin(c.Request.Context(), req.Fields())
	if err != nil {
		h.writeError(c, "telegram login", err)
		return
	}
	c.JSON(http.StatusOK, authRes(res))
}

// Me returns the account named by the bearer token.
func (h *AuthHandler) Me(c *gin.Context) {
	id := c.GetString(jwtmw.ContextAccountID)
	if id == "" {
		c.JSON(http.StatusUnauthorized, dto.ErrorRes{Error: "unauthorized"})
		return
	}
	acc, err := h.auth.Account(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": dto.NewAccountRes(acc)})
}

func authRes(res *usecase.AuthResult) dto.AuthRes {
	return dto.AuthRes{Account: dto.NewAccountRes(res.Account), Token: res.Token}
}

// bind decodes the JSON body. A malformed body is a 400 before the usecase runs.
func (h *AuthHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid request body", zap.String("path", c.FullPath()),
			zap.String("remote_addr", c.ClientIP()), zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorRes{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps usecase errors to status codes and response bodies.
func (h *AuthHandler) writeError(c *gin.Context, op string, err error) {
	var (
		verr     *usecase.ValidationError
		conflict *usecase.ConflictError
		unver    *usecase.UnverifiedError
		limited  *usecase.RateLimitedError
		cfgErr   *usecase.ConfigurationError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, dto.ErrorRes{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &conflict):
		h.logger.Info(op+" conflict", zap.String("field", conflict.Field), zap.String("remote_addr", c.ClientIP()))
		c.JSON(http.StatusConflict, dto.ErrorRes{Error: conflict.Error(), Field: conflict.Field})
	case errors.Is(err, usecase.ErrConcurrentUpdate):
		h.logger.Warn(op+" lost a concurrent update", zap.String("remote_addr", c.ClientIP()))
		c.JSON(http.StatusConflict, dto.ErrorRes{Error: err.Error()})
	case errors.Is(err, usecase.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorRes{Error: err.Error()})
	case errors.As(err, &unver):
		c.JSON(http.StatusForbidden, dto.ErrorRes{
			Error:     unver.Error(),
			AccountID: unver.AccountID,
			NextStep:  usecase.NextStepVerify,
		})
	case errors.As(err, &limited):
		secs := dto.Seconds(limited.RetryAfter)
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, dto.ErrorRes{Error: "too many requests", RetryAfter: secs})
	case errors.Is(err, usecase.ErrInvalidCredentials),
		errors.Is(err, usecase.ErrAlreadyVerified),
		errors.Is(err, usecase.ErrInvalidCode),
		errors.Is(err, usecase.ErrCodeExpired),
		errors.Is(err, usecase.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, dto.ErrorRes{Error: err.Error()})
	case errors.As(err, &cfgErr):
		h.logger.Error(op+" failed: server misconfigured", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorRes{Error: "server misconfigured"})
	case errors.Is(err, usecase.ErrStoreUnavailable):
		h.logger.Error(op+" failed: store unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, dto.ErrorRes{Error: "service unavailable"})
	default:
		h.logger.Error(op+" failed", zap.Error(err), zap.String("remote_addr", c.ClientIP()))
		res := dto.ErrorRes{Error: "internal server error"}
		if h.exposeErrors {
			res.Error += ": " + err.Error()
		}
		c.JSON(http.StatusInternalServerError, res)
	}
}
