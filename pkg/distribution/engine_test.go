package distribution

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/canopy-network/rewardx/pkg/config"
	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
	"github.com/canopy-network/rewardx/pkg/ledger"
	"github.com/canopy-network/rewardx/pkg/rpc"
)

// fakeStore is an in-memory reward.Store for engine tests.
type fakeStore struct {
	delegators   map[string]*rewardmodels.Delegator
	dists        map[string]*rewardmodels.Distribution
	payouts      map[string]*rewardmodels.Payout // addr@height
	rewardBlocks []*rewardmodels.RewardBlock
	delStatus    rewardmodels.DelegationStatus
	distStatus   rewardmodels.DistributionStatus
	checkpoint   uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		delegators: map[string]*rewardmodels.Delegator{},
		dists:      map[string]*rewardmodels.Distribution{},
		payouts:    map[string]*rewardmodels.Payout{},
		delStatus:  rewardmodels.DelegationStatus{ID: rewardmodels.SingletonID},
		distStatus: rewardmodels.DistributionStatus{ID: rewardmodels.SingletonID},
	}
}

func payoutKey(addr string, height uint64) string {
	return fmt.Sprintf("%s@%d", addr, height)
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

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

func (f *fakeStore) ListEligibleDelegators(context.Context) ([]*rewardmodels.Delegator, error) {
	var out []*rewardmodels.Delegator
	for _, d := range f.delegators {
		if !d.DistributionComplete {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
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

func (f *fakeStore) CountDelegators(context.Context) (uint64, uint64, error) {
	var total, eligible uint64
	for _, d := range f.delegators {
		total++
		if !d.DistributionComplete {
			eligible++
		}
	}
	return total, eligible, nil
}

func (f *fakeStore) GetDistribution(_ context.Context, address string) (*rewardmodels.Distribution, error) {
	d, ok := f.dists[address]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) UpsertDistribution(_ context.Context, d *rewardmodels.Distribution) error {
	cp := *d
	f.dists[d.DelegatorAddress] = &cp
	return nil
}

func (f *fakeStore) SumDistributions(context.Context) (float64, error) {
	var sum float64
	for _, d := range f.dists {
		sum += d.Amount
	}
	return sum, nil
}

func (f *fakeStore) UpsertPayout(_ context.Context, p *rewardmodels.Payout) error {
	cp := *p
	f.payouts[payoutKey(p.DelegatorAddress, p.Height)] = &cp
	return nil
}

func (f *fakeStore) ListPayoutsAtHeight(_ context.Context, height uint64) ([]*rewardmodels.Payout, error) {
	var out []*rewardmodels.Payout
	for _, p := range f.payouts {
		if p.Height == height {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertRewardBlock(_ context.Context, rb *rewardmodels.RewardBlock) error {
	cp := *rb
	f.rewardBlocks = append(f.rewardBlocks, &cp)
	return nil
}

func (f *fakeStore) ListRewardBlocks(_ context.Context, limit int) ([]*rewardmodels.RewardBlock, error) {
	n := len(f.rewardBlocks)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*rewardmodels.RewardBlock, 0, n)
	for i := len(f.rewardBlocks) - 1; i >= 0 && len(out) < n; i-- {
		cp := *f.rewardBlocks[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) GetDelegationStatus(context.Context) (*rewardmodels.DelegationStatus, error) {
	cp := f.delStatus
	return &cp, nil
}

func (f *fakeStore) UpsertDelegationStatus(_ context.Context, s *rewardmodels.DelegationStatus) error {
	f.delStatus = *s
	return nil
}

func (f *fakeStore) GetDistributionStatus(context.Context) (*rewardmodels.DistributionStatus, error) {
	cp := f.distStatus
	return &cp, nil
}

func (f *fakeStore) UpsertDistributionStatus(_ context.Context, s *rewardmodels.DistributionStatus) error {
	f.distStatus = *s
	return nil
}

func (f *fakeStore) GetCheckpoint(context.Context) (uint64, error) { return f.checkpoint, nil }

func (f *fakeStore) CommitCheckpoint(_ context.Context, height uint64) error {
	if height > f.checkpoint {
		f.checkpoint = height
	}
	return nil
}

type fakeChain struct{}

func (fakeChain) DelegationsByAddress(context.Context, string, uint64) ([]rpc.Delegation, error) {
	return nil, nil
}

func testConfig() config.Config {
	return config.Config{
		RPCEndpoints:            []string{"http://localhost:1317"},
		PoolAddress:             "pool1xyz",
		AuditValidator:          "valoper1audit",
		StakeDenom:              "uluna",
		DistributionStartHeight: 100,
		DistributionStopHeight:  109,
		TotalBudget:             1000, // 100 per block
		AuditPoolFactor:         0.5,
		PerAddressCap:           10_000,
		AccuracyThreshold:       1e-6,
	}
}

func newTestEngine(t *testing.T, store *fakeStore, cfg config.Config) *Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	lg := ledger.New(store, fakeChain{}, cfg, logger)
	return New(store, lg, cfg, nil, logger)
}

func addDelegator(store *fakeStore, addr string, audit, global float64) {
	store.delegators[addr] = &rewardmodels.Delegator{
		Address:          addr,
		AuditDelegation:  audit,
		GlobalDelegation: global,
	}
	store.delStatus.WorldAudit += audit
	store.delStatus.WorldGlobal += global
}

func TestRunSingleDelegatorTakesWholeReward(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	addDelegator(store, "addr1", 500, 500)

	res, err := newTestEngine(t, store, cfg).Run(context.Background(), 100)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.InDelta(t, 100, res.Distributed, 1e-9)
	require.Zero(t, res.LeftOver)
	require.Equal(t, 1, res.Paid)

	dist := store.dists["addr1"]
	require.NotNil(t, dist)
	require.InDelta(t, 100, dist.Amount, 1e-9)
	require.Equal(t, uint64(100), dist.LastHeight)
	require.Equal(t, uint64(100), store.distStatus.LastHeight)
}

func TestRunOutsideWindowDistributesNothing(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	addDelegator(store, "addr1", 10, 10)

	res, err := newTestEngine(t, store, cfg).Run(context.Background(), 99)
	require.NoError(t, err)
	require.Zero(t, res.BlockReward)
	require.Zero(t, res.Distributed)
	require.Zero(t, res.LeftOver)
}

func TestRunZeroAuditDenominatorCarriesAuditBudget(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.AuditPoolFactor = 0.3
	addDelegator(store, "addr1", 0, 50)
	addDelegator(store, "addr2", 0, 50)
	engine := newTestEngine(t, store, cfg)

	res, err := engine.Run(context.Background(), 100)
	require.NoError(t, err)
	require.InDelta(t, 70, res.Distributed, 1e-9)
	require.InDelta(t, 30, res.LeftOver, 1e-9)
	require.InDelta(t, 35, store.dists["addr1"].Amount, 1e-9)
	require.InDelta(t, 35, store.dists["addr2"].Amount, 1e-9)

	// The carried leftover tops up the next block's reward.
	res, err = engine.Run(context.Background(), 101)
	require.NoError(t, err)
	require.InDelta(t, 130, res.BlockReward, 1e-9)
}

func TestRunNoEligibleDelegatorsCarriesEverything(t *testing.T) {
	store := newFakeStore()
	res, err := newTestEngine(t, store, testConfig()).Run(context.Background(), 100)
	require.NoError(t, err)
	require.Zero(t, res.Distributed)
	require.InDelta(t, 100, res.LeftOver, 1e-9)
}

func TestRunCapPaysExactRemainderAndExcludes(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.PerAddressCap = 150
	addDelegator(store, "addr1", 100, 100)
	engine := newTestEngine(t, store, cfg)

	res, err := engine.Run(context.Background(), 100)
	require.NoError(t, err)
	require.InDelta(t, 100, res.Distributed, 1e-9)
	require.Zero(t, res.Completed)

	// Second block: only 50 remains under the cap.
	res, err = engine.Run(context.Background(), 101)
	require.NoError(t, err)
	require.InDelta(t, 50, res.Distributed, 1e-9)
	require.Equal(t, 1, res.Completed)
	require.InDelta(t, 50, res.LeftOver, 1e-9)
	require.True(t, store.delegators["addr1"].DistributionComplete)
	require.InDelta(t, 150, store.dists["addr1"].Amount, 1e-9)
	require.Zero(t, store.delStatus.WorldAudit)
	require.Zero(t, store.delStatus.WorldGlobal)

	// Third block: nobody left, the whole reward carries forward.
	res, err = engine.Run(context.Background(), 102)
	require.NoError(t, err)
	require.Zero(t, res.Distributed)
	require.InDelta(t, 150, res.LeftOver, 1e-9)
}

func TestRunSkipsAlreadyCommittedHeight(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	addDelegator(store, "addr1", 100, 100)
	engine := newTestEngine(t, store, cfg)

	res, err := engine.Run(context.Background(), 100)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	// Re-running the same height is a no-op and changes nothing.
	before := store.dists["addr1"].Amount
	res, err = engine.Run(context.Background(), 100)
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Equal(t, before, store.dists["addr1"].Amount)
	require.Len(t, store.rewardBlocks, 1)
}

func TestRunReplayAfterPartialCrashConverges(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.AuditPoolFactor = 0
	addDelegator(store, "addr1", 0, 60)
	addDelegator(store, "addr2", 0, 40)

	// Simulate a crash after addr1's payment landed but before the run
	// committed: payout and distribution rows exist, the status does not.
	store.payouts[payoutKey("addr1", 100)] = &rewardmodels.Payout{
		DelegatorAddress: "addr1", Height: 100, Rewarded: 60, CumulativeAfter: 60,
	}
	store.dists["addr1"] = &rewardmodels.Distribution{
		DelegatorAddress: "addr1", Amount: 60, StartHeight: 100, LastHeight: 100,
	}

	res, err := newTestEngine(t, store, cfg).Run(context.Background(), 100)
	require.NoError(t, err)
	require.InDelta(t, 100, res.Distributed, 1e-9)
	require.Zero(t, res.LeftOver)
	require.InDelta(t, 60, store.dists["addr1"].Amount, 1e-9)
	require.InDelta(t, 40, store.dists["addr2"].Amount, 1e-9)
}

func TestRunReplayAfterCapMidRunKeepsDenominators(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.AuditPoolFactor = 0
	cfg.PerAddressCap = 60
	addDelegator(store, "addr1", 0, 60)
	addDelegator(store, "addr2", 0, 40)

	// addr1 hit the cap mid-run and was marked complete before the crash. Its
	// weights were already removed from the world totals.
	store.payouts[payoutKey("addr1", 100)] = &rewardmodels.Payout{
		DelegatorAddress: "addr1", Height: 100, Rewarded: 60, CumulativeAfter: 60,
	}
	store.dists["addr1"] = &rewardmodels.Distribution{
		DelegatorAddress: "addr1", Amount: 60, StartHeight: 100, LastHeight: 100,
	}
	store.delegators["addr1"].DistributionComplete = true
	store.delStatus.WorldGlobal -= 60

	res, err := newTestEngine(t, store, cfg).Run(context.Background(), 100)
	require.NoError(t, err)

	// addr2's share is computed against the original denominator of 100, not
	// a shrunken post-cap one, so the replay reproduces the first run.
	require.InDelta(t, 100, res.Distributed, 1e-9)
	require.InDelta(t, 40, store.dists["addr2"].Amount, 1e-9)
	require.True(t, store.delegators["addr1"].DistributionComplete)
}

func TestRunConservesRewardMass(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.AuditPoolFactor = 0.3
	addDelegator(store, "addr1", 10, 25)
	addDelegator(store, "addr2", 0, 35)
	addDelegator(store, "addr3", 5, 40)
	engine := newTestEngine(t, store, cfg)

	var distributed float64
	for h := uint64(100); h <= 104; h++ {
		res, err := engine.Run(context.Background(), h)
		require.NoError(t, err)
		distributed += res.Distributed

		// Every block: paid plus carried equals emitted plus previously carried.
		require.InDelta(t, res.BlockReward, res.Distributed+res.LeftOver, 1e-9)
	}

	sum, err := store.SumDistributions(context.Background())
	require.NoError(t, err)
	require.InDelta(t, distributed, sum, 1e-9)
	require.InDelta(t, 500, distributed+store.distStatus.LeftOver, 1e-6)
}

func TestRunDustLeftoverClampsToZero(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.AccuracyThreshold = 0.5
	cfg.AuditPoolFactor = 0.001 // audit sliver with nobody to take it
	addDelegator(store, "addr1", 0, 100)

	res, err := newTestEngine(t, store, cfg).Run(context.Background(), 100)
	require.NoError(t, err)
	require.InDelta(t, 99.9, res.Distributed, 1e-9)
	require.Zero(t, res.LeftOver)
	require.Zero(t, store.distStatus.LeftOver)
}
