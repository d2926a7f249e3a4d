package classifier

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/canopy-network/rewardx/pkg/config"
	"github.com/canopy-network/rewardx/pkg/rpc"
)

const (
	poolAddr  = "terra1pool000000000000000000000000000000000000"
	validMemo = "0x00112233445566778899aabbccddeeff00112233"
)

func testClassifier(minSend float64) *Classifier {
	return New(config.Config{
		PoolAddress:   poolAddr,
		StakeDenom:    "uluna",
		MinSendAmount: minSend,
	})
}

func sendTx(t *testing.T, msgType, from, to, memo string, coins ...rpc.Coin) *rpc.Tx {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"from_address": from,
		"to_address":   to,
		"amount":       coins,
	})
	require.NoError(t, err)
	return &rpc.Tx{
		Tx: rpc.TxEnvelope{
			Type: "core/StdTx",
			Value: rpc.TxValue{
				Msgs: []rpc.Msg{{Type: msgType, Value: raw}},
				Memo: memo,
			},
		},
	}
}

func TestIsValidPegMemo(t *testing.T) {
	cases := []struct {
		memo  string
		valid bool
	}{
		{validMemo, true},
		{"0x00112233445566778899AABBCCDDEEFF00112233", true},
		{"", false},
		{"not a memo", false},
		{"0x0011", false},
		{"0x00112233445566778899aabbccddeeff001122334", false},
		{"00112233445566778899aabbccddeeff00112233", false},
		{"0x00112233445566778899aabbccddeeff0011223g", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.valid, IsValidPegMemo(tc.memo), "memo %q", tc.memo)
	}
}

func TestKindOfCoversBothDialects(t *testing.T) {
	require.Equal(t, KindSendCoin, KindOf("cosmos-sdk/MsgSend"))
	require.Equal(t, KindSendCoin, KindOf("bank/MsgSend"))
	require.Equal(t, KindDelegate, KindOf("staking/MsgDelegate"))
	require.Equal(t, KindRedelegate, KindOf("cosmos-sdk/MsgBeginRedelegate"))
	require.Equal(t, KindUndelegate, KindOf("staking/MsgUndelegate"))
	require.Equal(t, KindUnknown, KindOf("gov/MsgVote"))
	require.Equal(t, KindUnknown, KindOf(""))
}

func TestClassifyTrackedSend(t *testing.T) {
	c := testClassifier(0)
	tx := sendTx(t, "bank/MsgSend", "terra1sender", poolAddr, validMemo,
		rpc.Coin{Denom: "uluna", Amount: "2500000"})

	events := c.Classify(tx)
	require.Len(t, events, 1)
	require.Equal(t, KindSendCoin, events[0].Kind)
	require.Equal(t, "terra1sender", events[0].From)
	require.Equal(t, poolAddr, events[0].To)
	require.Equal(t, validMemo, events[0].Memo)
	require.InDelta(t, 2500000, events[0].Amount, 1e-9)
}

func TestClassifySendRejections(t *testing.T) {
	c := testClassifier(100)

	cases := map[string]*rpc.Tx{
		"wrong destination": sendTx(t, "bank/MsgSend", "terra1sender", "terra1other", validMemo,
			rpc.Coin{Denom: "uluna", Amount: "500"}),
		"invalid memo": sendTx(t, "bank/MsgSend", "terra1sender", poolAddr, "hello",
			rpc.Coin{Denom: "uluna", Amount: "500"}),
		"wrong denom only": sendTx(t, "bank/MsgSend", "terra1sender", poolAddr, validMemo,
			rpc.Coin{Denom: "ukrw", Amount: "500"}),
		"below minimum": sendTx(t, "bank/MsgSend", "terra1sender", poolAddr, validMemo,
			rpc.Coin{Denom: "uluna", Amount: "99"}),
		"zero amount": sendTx(t, "bank/MsgSend", "terra1sender", poolAddr, validMemo,
			rpc.Coin{Denom: "uluna", Amount: "0"}),
	}
	for name, tx := range cases {
		require.Empty(t, c.Classify(tx), name)
	}
}

func TestClassifySumsStakeDenomAcrossCoins(t *testing.T) {
	c := testClassifier(0)
	tx := sendTx(t, "cosmos-sdk/MsgSend", "terra1sender", poolAddr, validMemo,
		rpc.Coin{Denom: "uluna", Amount: "100"},
		rpc.Coin{Denom: "ukrw", Amount: "999"},
		rpc.Coin{Denom: "uluna", Amount: "50"})

	events := c.Classify(tx)
	require.Len(t, events, 1)
	require.InDelta(t, 150, events[0].Amount, 1e-9)
}

func TestClassifyDelegationChanges(t *testing.T) {
	c := testClassifier(0)

	for _, msgType := range []string{
		"cosmos-sdk/MsgDelegate",
		"staking/MsgBeginRedelegate",
		"staking/MsgUndelegate",
	} {
		raw := json.RawMessage(fmt.Sprintf(`{"delegator_address":%q,"validator_address":"terravaloper1x"}`, "terra1delegator"))
		tx := &rpc.Tx{Tx: rpc.TxEnvelope{Value: rpc.TxValue{Msgs: []rpc.Msg{{Type: msgType, Value: raw}}}}}

		events := c.Classify(tx)
		require.Len(t, events, 1, msgType)
		require.True(t, events[0].Kind.IsDelegationChange(), msgType)
		require.Equal(t, "terra1delegator", events[0].Delegator, msgType)
	}
}

func TestClassifySkipsMalformedMessages(t *testing.T) {
	c := testClassifier(0)
	tx := &rpc.Tx{Tx: rpc.TxEnvelope{Value: rpc.TxValue{
		Memo: validMemo,
		Msgs: []rpc.Msg{
			{Type: "bank/MsgSend", Value: json.RawMessage(`{broken`)},
			{Type: "staking/MsgDelegate", Value: json.RawMessage(`{"delegator_address":""}`)},
			{Type: "gov/MsgVote", Value: json.RawMessage(`{}`)},
			{Type: "bank/MsgSend", Value: mustMarshal(t, map[string]interface{}{
				"from_address": "terra1sender",
				"to_address":   poolAddr,
				"amount":       []rpc.Coin{{Denom: "uluna", Amount: "77"}},
			})},
		},
	}}}

	events := c.Classify(tx)
	require.Len(t, events, 1)
	require.InDelta(t, 77, events[0].Amount, 1e-9)
}

func TestClassifyPreservesMessageOrder(t *testing.T) {
	c := testClassifier(0)
	tx := &rpc.Tx{Tx: rpc.TxEnvelope{Value: rpc.TxValue{
		Memo: validMemo,
		Msgs: []rpc.Msg{
			{Type: "staking/MsgDelegate", Value: json.RawMessage(`{"delegator_address":"terra1a"}`)},
			{Type: "bank/MsgSend", Value: mustMarshal(t, map[string]interface{}{
				"from_address": "terra1b",
				"to_address":   poolAddr,
				"amount":       []rpc.Coin{{Denom: "uluna", Amount: "10"}},
			})},
			{Type: "staking/MsgUndelegate", Value: json.RawMessage(`{"delegator_address":"terra1c"}`)},
		},
	}}}

	events := c.Classify(tx)
	require.Len(t, events, 3)
	require.Equal(t, "terra1a", events[0].Delegator)
	require.Equal(t, "terra1b", events[1].From)
	require.Equal(t, "terra1c", events[2].Delegator)
}

func TestClassifyNilTx(t *testing.T) {
	require.Nil(t, testClassifier(0).Classify(nil))
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
