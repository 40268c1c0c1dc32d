package di

import (
	"go.uber.org/zap"

	"account_backend/internal/config"
	authhandler "account_backend/internal/feature/auth/transport/handler"
	"account_backend/internal/feature/auth/usecase"
	"account_backend/internal/platform/hasher"
	jwtmw "account_backend/internal/platform/jwt"
	"account_backend/internal/platform/telegram"
	"account_backend/internal/platform/verification"
)

// NewAuthUsecase assembles the auth usecase from its platform collaborators.
func NewAuthUsecase(cfg config.Config, accounts usecase.AccountRepository, notifier usecase.Notifier, logger *zap.Logger) authhandler.AuthUsecase {
	mode, err := telegram.ParseMode(string(cfg.SignatureMode))
	if err != nil {
		mode = telegram.ModeStrict
	}
	return usecase.NewAuthUsecase(usecase.Deps{
		Accounts:  accounts,
		Hasher:    hasher.NewBcryptHasher(hasher.DefaultCost),
		Codes:     verification.NewIssuer(nil),
		Notifier:  notifier,
		Tokens:    jwtmw.NewGenerator(cfg.JWTSecret, cfg.JWTExpiration),
		Federated: telegram.NewVerifier(cfg.TelegramBotToken, mode, logger),
		Logger:    logger,
	}, cfg.Policy)
}
