package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/pkg/config"
	"github.com/canopy-network/rewardx/pkg/db/reward"
	"github.com/canopy-network/rewardx/pkg/redis"
)

type App struct {
	Store reward.Store
	Cfg   config.Config
	// RedisClient feeds the /ws live event bridge; nil disables it.
	RedisClient *redis.Client
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
