package di

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"account_backend/internal/config"
	authadapters "account_backend/internal/feature/auth/adapters"
	"account_backend/internal/feature/auth/usecase"
	"account_backend/internal/platform/db"
	mongoclient "account_backend/internal/platform/mongo"
)

// Store is the opened Identity Record Store.
type Store struct {
	Accounts usecase.AccountRepository
	// Ping checks that the store answers; used by /healthz.
	Ping func(ctx context.Context) error
	// Close releases the connection.
	Close func()
}

// NewStore opens the store named by cfg.StoreDriver and returns the
// matching AccountRepository.
func NewStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Store, error) {
	if cfg.StoreDriver == config.StoreMongo {
		return newMongoStore(ctx, cfg, logger)
	}

	gdb, err := db.OpenDB(cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return &Store{
		Accounts: authadapters.NewAccountGorm(gdb, cfg.StoreTimeout),
		Ping:     sqlDB.PingContext,
		Close: func() {
			if err := sqlDB.Close(); err != nil {
				logger.Error("failed to close database", zap.Error(err))
			}
		},
	}, nil
}

func newMongoStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Store, error) {
	client, err := mongoclient.NewMongoClient(ctx, cfg.MongoURI, cfg.StoreTimeout, logger)
	if err != nil {
		return nil, err
	}
	closer := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("failed to disconnect mongo", zap.Error(err))
		}
	}
	repo := authadapters.NewAccountMongo(client.Database(cfg.MongoDB), cfg.StoreTimeout)
	if err := repo.EnsureIndexes(ctx); err != nil {
		closer()
		return nil, err
	}
	return &Store{
		Accounts: repo,
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		Close: closer,
	}, nil
}
