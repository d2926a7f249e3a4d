package classifier

import (
	"encoding/json"
	"regexp"

	"github.com/canopy-network/rewardx/pkg/config"
	"github.com/canopy-network/rewardx/pkg/rpc"
)

// Event is a classified transaction message. Kind selects which field group
// is populated: SendCoin events carry From/To/Amount/Memo, delegation-change
// events carry Delegator.
type Event struct {
	Kind Kind

	// SendCoin
	From   string
	To     string
	Amount float64
	Memo   string

	// DelegationChange
	Delegator string
}

// pegMemoRe matches a peg destination: a 0x-prefixed 40-hex-digit address.
var pegMemoRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValidPegMemo reports whether a memo is a usable peg destination.
func IsValidPegMemo(memo string) bool {
	return pegMemoRe.MatchString(memo)
}

// Classifier inspects decoded transactions and emits tracked events.
// It is a pure function over its input; malformed messages are skipped
// per-message, never failing the enclosing transaction or block.
type Classifier struct {
	poolAddress   string
	stakeDenom    string
	minSendAmount float64
}

// New builds a Classifier from the runtime configuration.
func New(cfg config.Config) *Classifier {
	return &Classifier{
		poolAddress:   cfg.PoolAddress,
		stakeDenom:    cfg.StakeDenom,
		minSendAmount: cfg.MinSendAmount,
	}
}

// sendValue is the dialect-shared body of a send message.
type sendValue struct {
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	Amount      []rpc.Coin `json:"amount"`
}

// stakingValue is the dialect-shared body of a delegation-change message.
// Redelegations carry validator_src/dst addresses instead of a single
// validator, but the delegator field is all the ledger needs.
type stakingValue struct {
	DelegatorAddress string `json:"delegator_address"`
}

// Classify returns the tracked events found in a decoded transaction, in
// message order. Untracked and malformed messages produce no events.
func (c *Classifier) Classify(tx *rpc.Tx) []Event {
	if tx == nil {
		return nil
	}

	var events []Event
	for _, msg := range tx.Tx.Value.Msgs {
		kind := KindOf(msg.Type)
		switch {
		case kind == KindSendCoin:
			if ev, ok := c.classifySend(msg, tx.Tx.Value.Memo); ok {
				events = append(events, ev)
			}
		case kind.IsDelegationChange():
			var val stakingValue
			if err := json.Unmarshal(msg.Value, &val); err != nil || val.DelegatorAddress == "" {
				continue
			}
			events = append(events, Event{Kind: kind, Delegator: val.DelegatorAddress})
		}
	}
	return events
}

// classifySend applies the tracked-send rule: destination must be the pool
// deposit address, the memo must be a valid peg destination, and the summed
// amount of the stake denom must meet the configured minimum.
func (c *Classifier) classifySend(msg rpc.Msg, memo string) (Event, bool) {
	var val sendValue
	if err := json.Unmarshal(msg.Value, &val); err != nil {
		return Event{}, false
	}
	if val.ToAddress != c.poolAddress {
		return Event{}, false
	}
	if !IsValidPegMemo(memo) {
		return Event{}, false
	}

	var amount float64
	for _, coin := range val.Amount {
		if coin.Denom == c.stakeDenom {
			amount += coin.Float()
		}
	}
	if amount <= 0 {
		return Event{}, false
	}
	if c.minSendAmount > 0 && amount < c.minSendAmount {
		return Event{}, false
	}

	return Event{
		Kind:   KindSendCoin,
		From:   val.FromAddress,
		To:     val.ToAddress,
		Amount: amount,
		Memo:   memo,
	}, true
}
