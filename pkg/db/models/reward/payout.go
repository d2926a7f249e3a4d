package reward

import "time"

// Payout is one delegator's payment at one height, keyed by
// (delegator_address, height). It is the record that makes a distribution run
// replayable: a re-run for the same height finds the existing row and reuses
// its amounts instead of computing (and applying) the payment twice.
type Payout struct {
	DelegatorAddress string  `ch:"delegator_address"`
	Height           uint64  `ch:"height"`
	Rewarded         float64 `ch:"rewarded"`

	// CumulativeAfter is the delegator's cumulative distribution after this
	// payment; the Distribution record is rewritten to this value on replay.
	CumulativeAfter float64   `ch:"cumulative_after"`
	UpdatedAt       time.Time `ch:"updated_at"`
}
