package rpc

import (
	"encoding/json"
	"strconv"
)

// statusResponse is the /status payload; only the sync info height is consumed.
type statusResponse struct {
	Result struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
		} `json:"sync_info"`
	} `json:"result"`
}

// txSearchResponse is the /tx_search payload.
type txSearchResponse struct {
	Result struct {
		Txs []struct {
			Hash   string `json:"hash"`
			Height string `json:"height"`
		} `json:"txs"`
		TotalCount string `json:"total_count"`
	} `json:"result"`
}

// Coin is a single denominated amount inside a send message.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Float returns the coin amount as a float, 0 when unparsable.
func (c Coin) Float() float64 {
	f, err := strconv.ParseFloat(c.Amount, 64)
	if err != nil {
		return 0
	}
	return f
}

// Msg is one message inside a transaction, with its dialect-specific type tag
// and an opaque value decoded lazily by the classifier.
type Msg struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// TxValue is the decoded body of a StdTx envelope.
type TxValue struct {
	Msgs []Msg  `json:"msg"`
	Memo string `json:"memo"`
}

// TxEnvelope wraps the tx body with its envelope type tag.
type TxEnvelope struct {
	Type  string  `json:"type"`
	Value TxValue `json:"value"`
}

// Tx is a fully decoded transaction as returned by /txs/{hash}.
type Tx struct {
	Height string     `json:"height"`
	TxHash string     `json:"txhash"`
	Tx     TxEnvelope `json:"tx"`
}

// HeightUint returns the tx height as an integer, 0 when unparsable.
func (t *Tx) HeightUint() uint64 {
	h, err := strconv.ParseUint(t.Height, 10, 64)
	if err != nil {
		return 0
	}
	return h
}

// Delegation is one delegator/validator pair with its share weight.
type Delegation struct {
	DelegatorAddress string `json:"delegator_address"`
	ValidatorAddress string `json:"validator_address"`
	Shares           string `json:"shares"`
}

// SharesFloat returns the share weight as a float, 0 when unparsable.
func (d Delegation) SharesFloat() float64 {
	f, err := strconv.ParseFloat(d.Shares, 64)
	if err != nil {
		return 0
	}
	return f
}

// delegationsResponse is the /staking/delegators/{address}/delegations payload.
type delegationsResponse struct {
	Height string       `json:"height"`
	Result []Delegation `json:"result"`
}
