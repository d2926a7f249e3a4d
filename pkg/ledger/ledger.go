package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/pkg/classifier"
	"github.com/canopy-network/rewardx/pkg/config"
	"github.com/canopy-network/rewardx/pkg/db/reward"
	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
	"github.com/canopy-network/rewardx/pkg/rpc"
)

// ChainQuerier is the single chain read the ledger needs: a fresh delegation
// snapshot for one address.
type ChainQuerier interface {
	DelegationsByAddress(ctx context.Context, address string, height uint64) ([]rpc.Delegation, error)
}

// Ledger maintains the per-delegator stake records and the two world-total
// singletons. The delegator table is the source of truth; after every applied
// event the singletons are reconciled from it with an aggregate query, so a
// crash between the row write and the singleton write heals on replay.
//
// All operations are idempotent: replaying the same event against the same
// post-state rewrites the same values, which is what lets the checkpoint
// controller re-run a whole height after a crash.
type Ledger struct {
	store  reward.Store
	chain  ChainQuerier
	cfg    config.Config
	logger *zap.Logger
}

// New builds a Ledger.
func New(store reward.Store, chain ChainQuerier, cfg config.Config, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, chain: chain, cfg: cfg, logger: logger}
}

// ApplyEvent routes a classified event to the matching mutation, then
// reconciles the world totals. The reconcile runs even when the mutation was
// a replay no-op: a crash may have persisted the delegator row without the
// matching singleton write, and this is where that gap closes.
func (l *Ledger) ApplyEvent(ctx context.Context, ev classifier.Event, height uint64) error {
	var err error
	switch {
	case ev.Kind == classifier.KindSendCoin:
		err = l.applySend(ctx, ev, height)
	case ev.Kind.IsDelegationChange():
		err = l.applyDelegationChange(ctx, ev.Delegator, height)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return l.refreshWorldTotals(ctx)
}

// applySend handles a tracked send to the pool deposit address. A first-time
// sender is seeded from a fresh on-chain delegation snapshot; a known sender
// only refreshes its last-observed height (stake is refreshed exclusively on
// delegation-change events).
func (l *Ledger) applySend(ctx context.Context, ev classifier.Event, height uint64) error {
	existing, err := l.store.GetDelegator(ctx, ev.From)
	if err != nil {
		return err
	}

	if existing == nil {
		audit, global, err := l.fetchWeights(ctx, ev.From, height)
		if err != nil {
			return fmt.Errorf("seed delegator %s: %w", ev.From, err)
		}
		d := &rewardmodels.Delegator{
			Address:          ev.From,
			AuditDelegation:  audit,
			GlobalDelegation: global,
			LastHeight:       height,
		}
		if err := l.store.UpsertDelegator(ctx, d); err != nil {
			return err
		}
		l.logger.Info("Delegator created from tracked send",
			zap.String("address", ev.From),
			zap.Uint64("height", height),
			zap.Float64("audit", audit),
			zap.Float64("global", global))
		return nil
	}

	if existing.DistributionComplete {
		return nil
	}

	if existing.LastHeight == height {
		// Already applied at this height; the replay changes nothing.
		return nil
	}
	existing.LastHeight = height
	return l.store.UpsertDelegator(ctx, existing)
}

// applyDelegationChange re-seeds a delegator's weights from a fresh chain
// snapshot. Unseen delegators are only admitted inside the activation window.
func (l *Ledger) applyDelegationChange(ctx context.Context, delegator string, height uint64) error {
	existing, err := l.store.GetDelegator(ctx, delegator)
	if err != nil {
		return err
	}

	if existing == nil {
		if !l.cfg.InVerifyWindow(height) {
			return nil
		}
		audit, global, err := l.fetchWeights(ctx, delegator, height)
		if err != nil {
			return fmt.Errorf("seed delegator %s: %w", delegator, err)
		}
		d := &rewardmodels.Delegator{
			Address:          delegator,
			AuditDelegation:  audit,
			GlobalDelegation: global,
			LastHeight:       height,
		}
		return l.store.UpsertDelegator(ctx, d)
	}

	if existing.DistributionComplete {
		return nil
	}

	audit, global, err := l.fetchWeights(ctx, delegator, height)
	if err != nil {
		return fmt.Errorf("refresh delegator %s: %w", delegator, err)
	}

	existing.AuditDelegation = audit
	existing.GlobalDelegation = global
	existing.LastHeight = height
	return l.store.UpsertDelegator(ctx, existing)
}

// MarkComplete flags a delegator as fully distributed and removes its weights
// from the world totals. Called by the distribution engine when the lifetime
// cap is reached. Idempotent: re-marking rewrites the same state, and the
// totals are reconciled even then in case an earlier run died between the
// flag write and the singleton write.
func (l *Ledger) MarkComplete(ctx context.Context, address string) error {
	d, err := l.store.GetDelegator(ctx, address)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("mark complete: delegator %s missing", address)
	}

	if !d.DistributionComplete {
		d.DistributionComplete = true
		if err := l.store.UpsertDelegator(ctx, d); err != nil {
			return err
		}
	}
	return l.refreshWorldTotals(ctx)
}

// fetchWeights queries the chain for an address's delegations and folds them
// into the audit weight (shares delegated to the designated audit validator)
// and the global weight (shares across all validators).
func (l *Ledger) fetchWeights(ctx context.Context, address string, height uint64) (audit, global float64, err error) {
	delegations, err := l.chain.DelegationsByAddress(ctx, address, height)
	if err != nil {
		return 0, 0, err
	}
	for _, d := range delegations {
		shares := d.SharesFloat()
		global += shares
		if d.ValidatorAddress == l.cfg.AuditValidator {
			audit += shares
		}
	}
	return audit, global, nil
}

// refreshWorldTotals rewrites the world-total singleton from an aggregate
// over the delegator table. Recomputing instead of applying a delta keeps the
// singleton recoverable: whatever state a crash left behind, the next applied
// event writes the correct totals.
func (l *Ledger) refreshWorldTotals(ctx context.Context) error {
	audit, global, err := l.store.SumDelegatorWeights(ctx)
	if err != nil {
		return err
	}
	status, err := l.store.GetDelegationStatus(ctx)
	if err != nil {
		return err
	}
	status.WorldAudit = audit
	status.WorldGlobal = global
	return l.store.UpsertDelegationStatus(ctx, status)
}
