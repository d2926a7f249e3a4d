package activity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/app/indexer/types"
)

// GetChainHead returns the node's latest committed height.
func (ac *Context) GetChainHead(ctx context.Context) (types.ChainHeadOutput, error) {
	head, err := ac.Chain.Head(ctx)
	if err != nil {
		return types.ChainHeadOutput{}, fmt.Errorf("fetch chain head: %w", err)
	}
	return types.ChainHeadOutput{Height: head}, nil
}

// GetCheckpoint returns the durable checkpoint, the last fully processed
// height. Processing resumes at the next height.
func (ac *Context) GetCheckpoint(ctx context.Context) (types.CheckpointOutput, error) {
	h, err := ac.Store.GetCheckpoint(ctx)
	if err != nil {
		return types.CheckpointOutput{}, fmt.Errorf("read checkpoint: %w", err)
	}
	return types.CheckpointOutput{Height: h}, nil
}

// CommitCheckpoint advances the checkpoint to the given height. This is the
// last step of a height's processing; everything before it must already be
// persisted.
func (ac *Context) CommitCheckpoint(ctx context.Context, in types.HeightInput) error {
	if err := ac.Store.CommitCheckpoint(ctx, in.Height); err != nil {
		return fmt.Errorf("commit checkpoint %d: %w", in.Height, err)
	}
	ac.Logger.Debug("Checkpoint committed", zap.Uint64("height", in.Height))
	return nil
}
