package reward

import "time"

// Delegator is the ledger record for one address ever observed as a tracked
// sender or delegator.
//
// Rows live in a ReplacingMergeTree keyed by address and versioned by
// updated_at, so re-writing the same address after a replayed height collapses
// to the latest state. Reads go through FINAL to see the collapsed row.
type Delegator struct {
	Address string `ch:"address"`

	// AuditDelegation is the stake weight delegated to the designated audit
	// validator; GlobalDelegation is the total across all validators and is
	// always a superset of the audit weight.
	AuditDelegation  float64 `ch:"audit_delegation"`
	GlobalDelegation float64 `ch:"global_delegation"`

	// DistributionComplete flips to true once the lifetime cap is reached;
	// the delegator is then permanently excluded from share calculations.
	DistributionComplete bool `ch:"distribution_complete"`

	// LastHeight is the height of the most recent qualifying transaction.
	LastHeight uint64    `ch:"last_height"`
	UpdatedAt  time.Time `ch:"updated_at"`
}
