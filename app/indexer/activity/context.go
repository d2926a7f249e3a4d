package activity

import (
	"sync"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/pkg/classifier"
	"github.com/canopy-network/rewardx/pkg/config"
	"github.com/canopy-network/rewardx/pkg/db/reward"
	"github.com/canopy-network/rewardx/pkg/distribution"
	"github.com/canopy-network/rewardx/pkg/ledger"
	"github.com/canopy-network/rewardx/pkg/rpc"
)

// Context carries the dependencies shared by every activity. One instance is
// built at worker startup and registered with the Temporal worker.
type Context struct {
	Logger *zap.Logger
	Cfg    config.Config

	Store      reward.Store
	Chain      rpc.Reader
	Classifier *classifier.Classifier
	Ledger     *ledger.Ledger
	Engine     *distribution.Engine

	// MaxFetchParallelism overrides the default tx-fetch pool size.
	MaxFetchParallelism int
	fetchPoolOnce       sync.Once
	fetchPool           pond.Pool
}

const defaultFetchParallelism = 8

// txFetchPool returns the shared worker pool for parallel transaction
// fetches. Ordering is restored after the fetch, so pool size only affects
// throughput.
func (ac *Context) txFetchPool() pond.Pool {
	ac.fetchPoolOnce.Do(func() {
		size := ac.MaxFetchParallelism
		if size <= 0 {
			size = defaultFetchParallelism
		}
		ac.fetchPool = pond.NewPool(size)
	})
	return ac.fetchPool
}
