package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/canopy-network/rewardx/app/indexer/types"
)

// CheckpointWorkflow is the sequential indexing loop. Each pass processes
// exactly one height: verify its transactions, run the distribution, then
// advance the checkpoint. The checkpoint only moves after everything else for
// that height is persisted, so a crash anywhere replays the height against
// idempotent writes.
//
// The workflow completes once the distribution window is past and the carried
// leftover is exhausted; until then it continues-as-new periodically to keep
// history bounded.
func (wc *Context) CheckpointWorkflow(ctx workflow.Context, in types.CheckpointWorkflowInput) error {
	logger := workflow.GetLogger(ctx)

	retry := &temporal.RetryPolicy{
		InitialInterval:    500 * time.Millisecond,
		BackoffCoefficient: 1.5,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    0, // keep retrying; the chain node may be down for a while
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         retry,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var checkpoint types.CheckpointOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.GetCheckpoint).Get(ctx, &checkpoint); err != nil {
		return err
	}

	for i := 0; i < wc.maxIterations(); i++ {
		height := checkpoint.Height + 1

		var head types.ChainHeadOutput
		if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.GetChainHead).Get(ctx, &head); err != nil {
			return err
		}
		// Stay one block behind the head; the target height is only touched
		// once a later block confirms it.
		if head.Height <= height {
			if err := workflow.Sleep(ctx, wc.Cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		if height >= wc.Cfg.MagicTxStartHeight && height <= wc.Cfg.DistributionStopHeight {
			var verified types.VerifyHeightOutput
			if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.VerifyHeight, types.HeightInput{Height: height}).Get(ctx, &verified); err != nil {
				return err
			}
		}

		var dist types.DistributeOutput
		ran := false
		if height >= wc.Cfg.DistributionStartHeight {
			if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.RunDistribution, types.HeightInput{Height: height}).Get(ctx, &dist); err != nil {
				return err
			}
			ran = true
		}

		if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.CommitCheckpoint, types.HeightInput{Height: height}).Get(ctx, nil); err != nil {
			return err
		}
		checkpoint.Height = height

		// Past the window with nothing left to carry: the program is done.
		// The stop height itself always gets one more run beyond it, even
		// when its leftover is already zero.
		if ran && height > wc.Cfg.DistributionStopHeight && dist.LeftOver == 0 {
			logger.Info("Distribution window closed and leftover exhausted, stopping", "height", height)
			return nil
		}
	}

	return workflow.NewContinueAsNewError(ctx, wc.CheckpointWorkflow, types.CheckpointWorkflowInput{})
}
