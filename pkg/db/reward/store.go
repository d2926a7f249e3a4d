package reward

import (
	"context"

	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
)

// Store exposes the subset of reward database operations used by the ledger,
// the distribution engine, the checkpoint activities and the status API.
// Tests substitute an in-memory fake.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// Delegator ledger
	GetDelegator(ctx context.Context, address string) (*rewardmodels.Delegator, error)
	UpsertDelegator(ctx context.Context, d *rewardmodels.Delegator) error
	ListEligibleDelegators(ctx context.Context) ([]*rewardmodels.Delegator, error)
	CountDelegators(ctx context.Context) (total, eligible uint64, err error)
	SumDelegatorWeights(ctx context.Context) (audit, global float64, err error)

	// Distribution ledger
	GetDistribution(ctx context.Context, address string) (*rewardmodels.Distribution, error)
	UpsertDistribution(ctx context.Context, d *rewardmodels.Distribution) error
	SumDistributions(ctx context.Context) (float64, error)
	UpsertPayout(ctx context.Context, p *rewardmodels.Payout) error
	ListPayoutsAtHeight(ctx context.Context, height uint64) ([]*rewardmodels.Payout, error)
	InsertRewardBlock(ctx context.Context, rb *rewardmodels.RewardBlock) error
	ListRewardBlocks(ctx context.Context, limit int) ([]*rewardmodels.RewardBlock, error)

	// Singletons
	GetDelegationStatus(ctx context.Context) (*rewardmodels.DelegationStatus, error)
	UpsertDelegationStatus(ctx context.Context, s *rewardmodels.DelegationStatus) error
	GetDistributionStatus(ctx context.Context) (*rewardmodels.DistributionStatus, error)
	UpsertDistributionStatus(ctx context.Context, s *rewardmodels.DistributionStatus) error

	// Checkpoint
	GetCheckpoint(ctx context.Context) (uint64, error)
	CommitCheckpoint(ctx context.Context, height uint64) error
}

var _ Store = (*DB)(nil)
