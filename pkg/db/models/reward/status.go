package reward

import "time"

// singletonID is the fixed key shared by the single-row status tables.
// ReplacingMergeTree collapses every write to one surviving row per id.
const SingletonID uint8 = 1

// DelegationStatus is the world-total singleton: the sum, over all delegators
// with distribution_complete = false, of their global and audit weights.
// It is maintained incrementally (old contribution subtracted, new added) so
// each height's work stays proportional to events-in-block, not ledger size.
type DelegationStatus struct {
	ID          uint8     `ch:"id"`
	WorldGlobal float64   `ch:"world_global_delegation"`
	WorldAudit  float64   `ch:"world_audit_delegation"`
	UpdatedAt   time.Time `ch:"updated_at"`
}

// DistributionStatus is the distribution-progress singleton.
type DistributionStatus struct {
	ID uint8 `ch:"id"`

	// LastHeight is the last height for which a distribution run committed.
	LastHeight uint64 `ch:"last_height"`

	// TotalDistributed is the cumulative amount paid across all delegators.
	TotalDistributed float64 `ch:"total_distributed"`

	// LeftOver is the budget computed but not yet assigned, carried to the
	// next eligible block.
	LeftOver  float64   `ch:"left_over"`
	UpdatedAt time.Time `ch:"updated_at"`
}

// Checkpoint is the sole recovery anchor: the last height whose processing is
// fully committed. On restart, processing resumes at Height + 1.
type Checkpoint struct {
	ID        uint8     `ch:"id"`
	Height    uint64    `ch:"height"`
	UpdatedAt time.Time `ch:"updated_at"`
}
