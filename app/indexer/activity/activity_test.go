package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/canopy-network/rewardx/app/indexer/types"
	"github.com/canopy-network/rewardx/pkg/classifier"
	"github.com/canopy-network/rewardx/pkg/config"
	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
	"github.com/canopy-network/rewardx/pkg/db/reward"
	"github.com/canopy-network/rewardx/pkg/ledger"
	"github.com/canopy-network/rewardx/pkg/rpc"
)

const (
	poolAddr       = "terra1pool000000000000000000000000000000000000"
	auditValidator = "terravaloper1audit"
	validMemo      = "0x00112233445566778899aabbccddeeff00112233"
)

// fakeReader serves canned chain data.
type fakeReader struct {
	head        uint64
	txsByHeight map[uint64][]*rpc.Tx
	txErr       error
	delegations map[string][]rpc.Delegation
}

func (f *fakeReader) Head(context.Context) (uint64, error) { return f.head, nil }

func (f *fakeReader) TxHashesByHeight(_ context.Context, height uint64) ([]string, error) {
	var hashes []string
	for _, tx := range f.txsByHeight[height] {
		hashes = append(hashes, tx.TxHash)
	}
	return hashes, nil
}

func (f *fakeReader) TxByHash(_ context.Context, hash string) (*rpc.Tx, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	for _, txs := range f.txsByHeight {
		for _, tx := range txs {
			if tx.TxHash == hash {
				return tx, nil
			}
		}
	}
	return nil, fmt.Errorf("tx %s not found", hash)
}

func (f *fakeReader) DelegationsByAddress(_ context.Context, address string, _ uint64) ([]rpc.Delegation, error) {
	return f.delegations[address], nil
}

// fakeStore covers the slice of reward.Store the activities reach.
type fakeStore struct {
	reward.Store
	delegators map[string]*rewardmodels.Delegator
	delStatus  rewardmodels.DelegationStatus
	checkpoint uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		delegators: map[string]*rewardmodels.Delegator{},
		delStatus:  rewardmodels.DelegationStatus{ID: rewardmodels.SingletonID},
	}
}

func (f *fakeStore) GetDelegator(_ context.Context, address string) (*rewardmodels.Delegator, error) {
	d, ok := f.delegators[address]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) UpsertDelegator(_ context.Context, d *rewardmodels.Delegator) error {
	cp := *d
	f.delegators[d.Address] = &cp
	return nil
}

func (f *fakeStore) SumDelegatorWeights(context.Context) (audit, global float64, err error) {
	for _, d := range f.delegators {
		if d.DistributionComplete {
			continue
		}
		audit += d.AuditDelegation
		global += d.GlobalDelegation
	}
	return audit, global, nil
}

func (f *fakeStore) GetDelegationStatus(context.Context) (*rewardmodels.DelegationStatus, error) {
	cp := f.delStatus
	return &cp, nil
}

func (f *fakeStore) UpsertDelegationStatus(_ context.Context, s *rewardmodels.DelegationStatus) error {
	f.delStatus = *s
	return nil
}

func (f *fakeStore) GetCheckpoint(context.Context) (uint64, error) { return f.checkpoint, nil }

func (f *fakeStore) CommitCheckpoint(_ context.Context, height uint64) error {
	if height > f.checkpoint {
		f.checkpoint = height
	}
	return nil
}

func testContext(t *testing.T, store *fakeStore, chain *fakeReader) *Context {
	t.Helper()
	cfg := config.Config{
		PoolAddress:             poolAddr,
		AuditValidator:          auditValidator,
		StakeDenom:              "uluna",
		MagicTxStartHeight:      1,
		DistributionStartHeight: 100,
		DistributionStopHeight:  199,
	}
	logger := zaptest.NewLogger(t)
	return &Context{
		Logger:     logger,
		Cfg:        cfg,
		Store:      store,
		Chain:      chain,
		Classifier: classifier.New(cfg),
		Ledger:     ledger.New(store, chain, cfg, logger),
	}
}

func sendTx(t *testing.T, hash, from string) *rpc.Tx {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"from_address": from,
		"to_address":   poolAddr,
		"amount":       []rpc.Coin{{Denom: "uluna", Amount: "1000"}},
	})
	require.NoError(t, err)
	return &rpc.Tx{
		TxHash: hash,
		Tx: rpc.TxEnvelope{Value: rpc.TxValue{
			Memo: validMemo,
			Msgs: []rpc.Msg{{Type: "bank/MsgSend", Value: raw}},
		}},
	}
}

func TestVerifyHeightAppliesEvents(t *testing.T) {
	store := newFakeStore()
	chain := &fakeReader{
		txsByHeight: map[uint64][]*rpc.Tx{
			50: {sendTx(t, "AAA", "terra1a"), sendTx(t, "BBB", "terra1b")},
		},
		delegations: map[string][]rpc.Delegation{
			"terra1a": {{DelegatorAddress: "terra1a", ValidatorAddress: auditValidator, Shares: "60"}},
			"terra1b": {{DelegatorAddress: "terra1b", ValidatorAddress: "terravaloper1x", Shares: "40"}},
		},
	}
	ac := testContext(t, store, chain)

	out, err := ac.VerifyHeight(context.Background(), types.HeightInput{Height: 50})
	require.NoError(t, err)
	require.Equal(t, 2, out.TxCount)
	require.Equal(t, 2, out.EventCount)

	require.Len(t, store.delegators, 2)
	require.InDelta(t, 60, store.delStatus.WorldAudit, 1e-9)
	require.InDelta(t, 100, store.delStatus.WorldGlobal, 1e-9)
}

func TestVerifyHeightEmptyBlock(t *testing.T) {
	ac := testContext(t, newFakeStore(), &fakeReader{txsByHeight: map[uint64][]*rpc.Tx{}})

	out, err := ac.VerifyHeight(context.Background(), types.HeightInput{Height: 50})
	require.NoError(t, err)
	require.Zero(t, out.TxCount)
	require.Zero(t, out.EventCount)
}

func TestVerifyHeightFetchErrorFailsActivity(t *testing.T) {
	chain := &fakeReader{
		txsByHeight: map[uint64][]*rpc.Tx{50: {sendTx(t, "AAA", "terra1a")}},
		txErr:       fmt.Errorf("node unavailable"),
	}
	ac := testContext(t, newFakeStore(), chain)

	_, err := ac.VerifyHeight(context.Background(), types.HeightInput{Height: 50})
	require.Error(t, err)
}

func TestCheckpointActivities(t *testing.T) {
	store := newFakeStore()
	ac := testContext(t, store, &fakeReader{head: 500})

	head, err := ac.GetChainHead(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(500), head.Height)

	cp, err := ac.GetCheckpoint(context.Background())
	require.NoError(t, err)
	require.Zero(t, cp.Height)

	require.NoError(t, ac.CommitCheckpoint(context.Background(), types.HeightInput{Height: 42}))
	cp, err = ac.GetCheckpoint(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), cp.Height)

	// Stale commits never move the checkpoint backwards.
	require.NoError(t, ac.CommitCheckpoint(context.Background(), types.HeightInput{Height: 41}))
	cp, err = ac.GetCheckpoint(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), cp.Height)
}
