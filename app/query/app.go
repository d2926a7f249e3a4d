package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/app/query/types"
	"github.com/canopy-network/rewardx/pkg/config"
	"github.com/canopy-network/rewardx/pkg/db/reward"
	"github.com/canopy-network/rewardx/pkg/logging"
	"github.com/canopy-network/rewardx/pkg/redis"
	"github.com/canopy-network/rewardx/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	store, err := reward.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize reward database", zap.Error(err))
	}
	if err := store.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize reward tables", zap.Error(err))
	}

	// Redis feeds the /ws live event bridge (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - WebSocket real-time events will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for WebSocket real-time events")
		}
	} else {
		logger.Info("Redis disabled - WebSocket real-time events will not be available")
	}

	return &types.App{
		Store:       store,
		Cfg:         cfg,
		RedisClient: redisClient,
		Logger:      logger,
	}
}
