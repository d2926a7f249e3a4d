package workflow

import (
	"github.com/canopy-network/rewardx/app/indexer/activity"
	"github.com/canopy-network/rewardx/pkg/config"
)

// Context holds the workflow context.
type Context struct {
	ActivityContext *activity.Context
	Cfg             config.Config

	// MaxIterations bounds the heights processed in one workflow run before
	// it continues-as-new to keep history small. Zero uses the default.
	MaxIterations int
}

const defaultMaxIterations = 250

func (wc *Context) maxIterations() int {
	if wc.MaxIterations > 0 {
		return wc.MaxIterations
	}
	return defaultMaxIterations
}
