package activity

import (
	"context"
	"fmt"

	"github.com/canopy-network/rewardx/app/indexer/types"
)

// RunDistribution executes the distribution engine for one height. The engine
// is idempotent per height, so at-least-once activity semantics are safe.
func (ac *Context) RunDistribution(ctx context.Context, in types.HeightInput) (types.DistributeOutput, error) {
	res, err := ac.Engine.Run(ctx, in.Height)
	if err != nil {
		return types.DistributeOutput{}, fmt.Errorf("distribution at height %d: %w", in.Height, err)
	}
	return types.DistributeOutput{
		Distributed: res.Distributed,
		LeftOver:    res.LeftOver,
		Paid:        res.Paid,
		Skipped:     res.Skipped,
	}, nil
}
