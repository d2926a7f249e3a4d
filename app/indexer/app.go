package indexer

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/app/indexer/activity"
	"github.com/canopy-network/rewardx/app/indexer/types"
	"github.com/canopy-network/rewardx/app/indexer/workflow"
	"github.com/canopy-network/rewardx/pkg/classifier"
	"github.com/canopy-network/rewardx/pkg/config"
	"github.com/canopy-network/rewardx/pkg/db/reward"
	"github.com/canopy-network/rewardx/pkg/distribution"
	"github.com/canopy-network/rewardx/pkg/ledger"
	"github.com/canopy-network/rewardx/pkg/logging"
	"github.com/canopy-network/rewardx/pkg/redis"
	"github.com/canopy-network/rewardx/pkg/rpc"
	"github.com/canopy-network/rewardx/pkg/temporal"
	"github.com/canopy-network/rewardx/pkg/utils"
)

// App is the indexer worker: it hosts the checkpoint workflow plus its
// activities and makes sure the singleton workflow is actually running.
type App struct {
	Worker         worker.Worker
	TemporalClient *temporal.Client
	Cron           *cron.Cron
	RedisClient    *redis.Client
	Logger         *zap.Logger
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
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

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	chain := rpc.NewHTTPWithOpts(rpc.Opts{
		Endpoints:       cfg.RPCEndpoints,
		RPS:             50,
		Burst:           100,
		BreakerFailures: 5,
		BreakerCooldown: 15 * time.Second,
	})

	var redisClient *redis.Client
	var publisher distribution.Publisher
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Fatal("Unable to connect to Redis", zap.Error(err))
		}
		publisher = redisClient
	}

	lg := ledger.New(store, chain, cfg, logger)
	engine := distribution.New(store, lg, cfg, publisher, logger)

	activityContext := &activity.Context{
		Logger:     logger,
		Cfg:        cfg,
		Store:      store,
		Chain:      chain,
		Classifier: classifier.New(cfg),
		Ledger:     lg,
		Engine:     engine,
	}
	workflowContext := &workflow.Context{
		ActivityContext: activityContext,
		Cfg:             cfg,
	}

	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.IndexerQueue,
		worker.Options{
			// One sequential workflow; modest limits are plenty.
			MaxConcurrentWorkflowTaskPollers: 5,
			MaxConcurrentActivityTaskPollers: 5,
			WorkerStopTimeout:                1 * time.Minute,
		},
	)

	wkr.RegisterWorkflow(workflowContext.CheckpointWorkflow)
	wkr.RegisterActivity(activityContext.GetChainHead)
	wkr.RegisterActivity(activityContext.GetCheckpoint)
	wkr.RegisterActivity(activityContext.VerifyHeight)
	wkr.RegisterActivity(activityContext.RunDistribution)
	wkr.RegisterActivity(activityContext.CommitCheckpoint)

	app := &App{
		Worker:         wkr,
		TemporalClient: temporalClient,
		RedisClient:    redisClient,
		Logger:         logger,
	}

	app.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := app.Cron.AddFunc("*/15 * * * * *", func() {
		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		app.ensureCheckpointWorkflow(rctx, workflowContext)
	}); err != nil {
		logger.Fatal("Unable to schedule workflow keeper", zap.Error(err))
	}

	return app
}

// ensureCheckpointWorkflow starts the singleton checkpoint workflow if it is
// not already running. Starting an already-running workflow ID is a no-op.
func (a *App) ensureCheckpointWorkflow(ctx context.Context, wc *workflow.Context) {
	options := client.StartWorkflowOptions{
		ID:                    a.TemporalClient.CheckpointWorkflowID,
		TaskQueue:             a.TemporalClient.IndexerQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	_, err := a.TemporalClient.TClient.ExecuteWorkflow(ctx, options, wc.CheckpointWorkflow, types.CheckpointWorkflowInput{})
	if err != nil {
		a.Logger.Warn("Unable to ensure checkpoint workflow", zap.Error(err))
	}
}

// Start starts the worker and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}
	a.Cron.Start()
	<-ctx.Done()
	a.Stop()
}

// Stop stops the worker.
func (a *App) Stop() {
	<-a.Cron.Stop().Done()
	a.Worker.Stop()
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
