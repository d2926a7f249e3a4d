package reward

import "time"

// Distribution is the cumulative reward ledger for one delegator.
// Amount is monotonically non-decreasing and never exceeds the configured
// per-address cap.
type Distribution struct {
	DelegatorAddress string `ch:"delegator_address"`

	// Amount is the cumulative reward distributed so far.
	Amount float64 `ch:"amount"`

	// StartHeight is the height of the first payment; LastHeight the most
	// recent one. LastHeight doubles as the replay guard: a distribution run
	// for height h skips delegators whose record already carries last_height = h.
	StartHeight uint64    `ch:"start_height"`
	LastHeight  uint64    `ch:"last_height"`
	UpdatedAt   time.Time `ch:"updated_at"`
}

// RewardBlock is the per-run audit row written by the distribution engine.
type RewardBlock struct {
	Height      uint64    `ch:"height"`
	Distributed float64   `ch:"distributed"`
	LeftOver    float64   `ch:"left_over"`
	CreatedAt   time.Time `ch:"created_at"`
}
