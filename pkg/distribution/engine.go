package distribution

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/pkg/config"
	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
	"github.com/canopy-network/rewardx/pkg/db/reward"
	"github.com/canopy-network/rewardx/pkg/ledger"
)

// Publisher receives the result of a committed distribution run.
// Nil publishers are allowed; publication is fire-and-forget.
type Publisher interface {
	PublishDistribution(ctx context.Context, height uint64, distributed, leftOver float64) error
}

// Result summarizes one distribution run.
type Result struct {
	Height      uint64
	BlockReward float64
	Distributed float64
	LeftOver    float64
	Paid        int
	Completed   int

	// Skipped is true when the run was a no-op because the status singleton
	// already records this (or a later) height.
	Skipped bool
}

// Engine computes the per-block reward split. For a triggering height it
// takes the nominal emission plus the carried leftover, splits it across the
// audit and global pools by stake weight, applies the per-address lifetime
// cap, and persists the payments plus the leftover for the next run.
//
// Denominators are recomputed from the currently-eligible delegator subset on
// every run; the delegation-status singleton is never used here because it
// can lag ledger mutations within the same height.
type Engine struct {
	store     reward.Store
	ledger    *ledger.Ledger
	cfg       config.Config
	pool      pond.Pool
	publisher Publisher
	logger    *zap.Logger

	// addrLocks serializes the cap-check-and-write per delegator address so a
	// future concurrent caller cannot lose an update.
	addrLocks *xsync.Map[string, *sync.Mutex]
}

// New builds an Engine. publisher may be nil.
func New(store reward.Store, lg *ledger.Ledger, cfg config.Config, publisher Publisher, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		ledger:    lg,
		cfg:       cfg,
		pool:      pond.NewPool(8),
		publisher: publisher,
		logger:    logger,
		addrLocks: xsync.NewMap[string, *sync.Mutex](),
	}
}

// nominalReward is the emission curve: zero below the window, the flat
// average inside it, zero above it (leftover only).
func (e *Engine) nominalReward(height uint64) float64 {
	if height < e.cfg.DistributionStartHeight || height > e.cfg.DistributionStopHeight {
		return 0
	}
	return e.cfg.AverageRewardPerBlock()
}

// Run executes one distribution for the given height. Safe to re-run for the
// same height: a committed run short-circuits via the status singleton, and a
// partially applied run converges by reusing the recorded payout rows.
func (e *Engine) Run(ctx context.Context, height uint64) (*Result, error) {
	status, err := e.store.GetDistributionStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status.LastHeight >= height && status.LastHeight != 0 {
		return &Result{Height: height, LeftOver: status.LeftOver, Skipped: true}, nil
	}

	blockReward := e.nominalReward(height) + status.LeftOver

	candidates, prior, err := e.loadCandidates(ctx, height)
	if err != nil {
		return nil, err
	}

	res := &Result{Height: height, BlockReward: blockReward}

	if blockReward > 0 && len(candidates) > 0 {
		shares := e.computeShares(ctx, candidates, blockReward)
		for i, d := range candidates {
			if shares[i] <= 0 && prior[d.Address] == nil {
				continue
			}
			rewarded, completed, err := e.pay(ctx, d, height, shares[i], prior[d.Address])
			if err != nil {
				return nil, err
			}
			res.Distributed += rewarded
			if rewarded > 0 {
				res.Paid++
			}
			if completed {
				res.Completed++
			}
		}
	}

	leftOver := blockReward - res.Distributed
	if leftOver < e.cfg.AccuracyThreshold {
		leftOver = 0
	}
	res.LeftOver = leftOver

	if err := e.store.InsertRewardBlock(ctx, &rewardmodels.RewardBlock{
		Height:      height,
		Distributed: res.Distributed,
		LeftOver:    leftOver,
	}); err != nil {
		return nil, err
	}

	status.LastHeight = height
	status.TotalDistributed += res.Distributed
	status.LeftOver = leftOver
	if err := e.store.UpsertDistributionStatus(ctx, status); err != nil {
		return nil, err
	}

	e.logger.Info("Distribution run committed",
		zap.Uint64("height", height),
		zap.Float64("blockReward", blockReward),
		zap.Float64("distributed", res.Distributed),
		zap.Float64("leftOver", leftOver),
		zap.Int("paid", res.Paid),
		zap.Int("completed", res.Completed))

	if e.publisher != nil {
		if err := e.publisher.PublishDistribution(ctx, height, res.Distributed, leftOver); err != nil {
			e.logger.Warn("Distribution event publish failed", zap.Uint64("height", height), zap.Error(err))
		}
	}

	return res, nil
}

// loadCandidates returns the delegators participating in this run: everyone
// still eligible, plus anyone already paid at this height by an earlier
// partial run (they may have been capped and marked complete mid-run, and
// their weights must stay in the denominators for the replay to reproduce the
// original split).
func (e *Engine) loadCandidates(ctx context.Context, height uint64) ([]*rewardmodels.Delegator, map[string]*rewardmodels.Payout, error) {
	eligible, err := e.store.ListEligibleDelegators(ctx)
	if err != nil {
		return nil, nil, err
	}

	payouts, err := e.store.ListPayoutsAtHeight(ctx, height)
	if err != nil {
		return nil, nil, err
	}
	prior := make(map[string]*rewardmodels.Payout, len(payouts))
	for _, p := range payouts {
		prior[p.DelegatorAddress] = p
	}

	seen := make(map[string]bool, len(eligible))
	for _, d := range eligible {
		seen[d.Address] = true
	}
	for addr := range prior {
		if seen[addr] {
			continue
		}
		d, err := e.store.GetDelegator(ctx, addr)
		if err != nil {
			return nil, nil, err
		}
		if d == nil {
			// A payout without a ledger record breaks the upsert discipline.
			return nil, nil, fmt.Errorf("invariant violation: payout at height %d for unknown delegator %s", height, addr)
		}
		eligible = append(eligible, d)
	}

	return eligible, prior, nil
}

// computeShares computes every candidate's share of the block reward from
// pre-loop snapshots of the candidate totals. Shares are independent per
// delegator, so the computation fans out on the worker pool.
func (e *Engine) computeShares(ctx context.Context, candidates []*rewardmodels.Delegator, blockReward float64) []float64 {
	var auditDen, globalDen float64
	for _, d := range candidates {
		auditDen += d.AuditDelegation
		globalDen += d.GlobalDelegation
	}

	auditBudget := blockReward * e.cfg.AuditPoolFactor
	globalBudget := blockReward * (1 - e.cfg.AuditPoolFactor)

	shares := make([]float64, len(candidates))
	group := e.pool.NewGroupContext(ctx)
	for i, d := range candidates {
		i, d := i, d
		group.Submit(func() {
			var s float64
			if auditDen > 0 {
				s += d.AuditDelegation * auditBudget / auditDen
			}
			if globalDen > 0 {
				s += d.GlobalDelegation * globalBudget / globalDen
			}
			shares[i] = s
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		e.logger.Warn("share computation group error", zap.Error(err))
	}
	return shares
}

// pay applies one delegator's payment for one height. When a prior payout row
// exists the recorded amounts are reused verbatim; otherwise the share is
// capped against the per-address lifetime cap and the payout, distribution
// record and (on capping) the ledger completion flag are persisted, in that
// order.
func (e *Engine) pay(ctx context.Context, d *rewardmodels.Delegator, height uint64, share float64, prior *rewardmodels.Payout) (float64, bool, error) {
	mu, _ := e.addrLocks.LoadOrStore(d.Address, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	dist, err := e.store.GetDistribution(ctx, d.Address)
	if err != nil {
		return 0, false, err
	}
	if dist == nil {
		dist = &rewardmodels.Distribution{DelegatorAddress: d.Address, StartHeight: height}
	}

	var rewarded, after float64
	if prior != nil {
		rewarded, after = prior.Rewarded, prior.CumulativeAfter
	} else {
		rewarded = share
		if dist.Amount+share >= e.cfg.PerAddressCap {
			rewarded = e.cfg.PerAddressCap - dist.Amount
		}
		if rewarded <= 0 {
			return 0, false, nil
		}
		after = dist.Amount + rewarded
		if err := e.store.UpsertPayout(ctx, &rewardmodels.Payout{
			DelegatorAddress: d.Address,
			Height:           height,
			Rewarded:         rewarded,
			CumulativeAfter:  after,
		}); err != nil {
			return 0, false, err
		}
	}

	dist.Amount = after
	dist.LastHeight = height
	if err := e.store.UpsertDistribution(ctx, dist); err != nil {
		return 0, false, err
	}

	completed := after >= e.cfg.PerAddressCap
	if completed {
		if err := e.ledger.MarkComplete(ctx, d.Address); err != nil {
			return 0, false, err
		}
	}
	return rewarded, completed, nil
}
