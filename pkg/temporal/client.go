package temporal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/canopy-network/rewardx/pkg/utils"
)

type Client struct {
	TClient   client.Client
	Namespace string

	// IndexerQueue is the single task queue; one sequential checkpoint
	// workflow is all the indexer runs.
	IndexerQueue string

	// CheckpointWorkflowID identifies the singleton checkpoint workflow.
	CheckpointWorkflowID string
}

type Health struct {
	ConnectionOK bool                      `json:"connection_ok"`
	IndexerQueue []*taskqueuepb.PollerInfo `json:"indexer_queue"`
}

func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", "rewardx")
	loggerWrapper := NewZapAdapter(logger)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, loggerWrapper)
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		return nil, err
	}

	return &Client{
		TClient:              tClient,
		Namespace:            ns,
		IndexerQueue:         "rewardx-indexer",
		CheckpointWorkflowID: "rewardx:checkpoint",
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// Health returns the health of the Temporal client.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	svc := c.TClient.WorkflowService()
	if svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.IndexerQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.IndexerQueue = rep.GetPollers()
		}
	}
	return h, nil
}
