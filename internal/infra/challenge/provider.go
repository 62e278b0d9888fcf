package challenge

import (
	"context"
	"log/slog"

	"archer/config"
	"archer/internal/domain/lifecycle"
	"archer/internal/domain/repository"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Store providers selectable through challenge.provider.
const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
)

// StoreParams holds dependencies for the ChallengeStore, injected by Fx
type StoreParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewChallengeStore creates a ChallengeStore based on configuration
func NewChallengeStore(params StoreParams) (repository.ChallengeStore, error) {
	cfg := params.Config.Challenge
	logger := params.Logger

	if cfg == nil || cfg.Provider == "" || cfg.Provider == ProviderMemory {
		logger.Info("Using in-process challenge store")

		return NewMemoryStore(), nil
	}
	if cfg.Provider != ProviderRedis {
		return nil, errors.Errorf("unknown challenge provider: %s", cfg.Provider)
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("redis addr is required for redis provider")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Info("Using Redis challenge store", slog.String("addr", cfg.Redis.Addr))

	params.Lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			return errors.Wrap(client.Ping(ctx).Err(), "failed to ping Redis")
		},
		OnStop: func(_ context.Context) error {
			logger.Info("Closing Redis client")

			return client.Close()
		},
	})

	return NewRedisStore(client, cfg.Redis.KeyPrefix), nil
}

// Module provides the challenge store FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewChallengeStore),
)
