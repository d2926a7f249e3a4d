package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/app/indexer/types"
	"github.com/canopy-network/rewardx/pkg/rpc"
)

// VerifyHeight processes one block: fetch its transaction hashes, fetch every
// transaction, classify them and apply the resulting events to the ledger.
//
// Transactions are fetched in parallel on the shared pool but applied
// strictly in block order, so re-running the same height replays the exact
// same mutation sequence.
func (ac *Context) VerifyHeight(ctx context.Context, in types.HeightInput) (types.VerifyHeightOutput, error) {
	start := time.Now()

	hashes, err := ac.Chain.TxHashesByHeight(ctx, in.Height)
	if err != nil {
		return types.VerifyHeightOutput{}, fmt.Errorf("fetch tx hashes at height %d: %w", in.Height, err)
	}

	out := types.VerifyHeightOutput{TxCount: len(hashes)}
	if len(hashes) == 0 {
		out.DurationMs = float64(time.Since(start).Milliseconds())
		return out, nil
	}

	txs := make([]*rpc.Tx, len(hashes))
	errs := make([]error, len(hashes))

	group := ac.txFetchPool().NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, hash := range hashes {
		i, hash := i, hash
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			txs[i], errs[i] = ac.Chain.TxByHash(groupCtx, hash)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		ac.Logger.Warn("parallel tx fetch encountered error",
			zap.Uint64("height", in.Height),
			zap.Error(err))
	}
	for i, err := range errs {
		if err != nil {
			return types.VerifyHeightOutput{}, fmt.Errorf("fetch tx %s at height %d: %w", hashes[i], in.Height, err)
		}
	}

	for _, tx := range txs {
		for _, ev := range ac.Classifier.Classify(tx) {
			if err := ac.Ledger.ApplyEvent(ctx, ev, in.Height); err != nil {
				return types.VerifyHeightOutput{}, fmt.Errorf("apply event at height %d: %w", in.Height, err)
			}
			out.EventCount++
		}
	}

	out.DurationMs = float64(time.Since(start).Milliseconds())
	if out.EventCount > 0 {
		ac.Logger.Info("Height verified",
			zap.Uint64("height", in.Height),
			zap.Int("txs", out.TxCount),
			zap.Int("events", out.EventCount))
	}
	return out, nil
}
