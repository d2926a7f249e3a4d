package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/canopy-network/rewardx/pkg/utils"
)

// Config is the immutable runtime configuration shared by every component.
// It is assembled once at startup and passed into constructors; nothing reads
// the environment after that.
type Config struct {
	// RPCEndpoints are the chain node REST endpoints, tried in order.
	RPCEndpoints []string

	// PoolAddress is the deposit address watched for tracked sends.
	PoolAddress string
	// AuditValidator is the validator whose delegations count toward the audit pool.
	AuditValidator string
	// StakeDenom is the native coin denomination counted in tracked sends.
	StakeDenom string

	// MagicTxStartHeight is the first height at which transactions are verified.
	MagicTxStartHeight uint64
	// DistributionStartHeight..DistributionStopHeight is the inclusive reward window.
	DistributionStartHeight uint64
	DistributionStopHeight  uint64

	// TotalBudget is the full reward budget spread evenly over the window.
	TotalBudget float64
	// AuditPoolFactor is the fraction of each block reward assigned to the audit pool.
	AuditPoolFactor float64
	// PerAddressCap is the lifetime distribution cap per delegator.
	PerAddressCap float64
	// MinSendAmount is the minimum tracked send; zero disables the check.
	MinSendAmount float64
	// AccuracyThreshold is the dust limit below which leftovers are clamped to zero.
	AccuracyThreshold float64

	// PollInterval is the delay between checkpoint loop iterations when the
	// chain head has not advanced.
	PollInterval time.Duration
}

// FromEnv builds a Config from the environment, applying defaults and
// validating the pieces the engine cannot run without.
func FromEnv() (Config, error) {
	cfg := Config{
		RPCEndpoints:            utils.Dedup(strings.Split(utils.Env("RPC_ENDPOINTS", ""), ",")),
		PoolAddress:             utils.Env("POOL_ADDRESS", ""),
		AuditValidator:          utils.Env("AUDIT_VALIDATOR", ""),
		StakeDenom:              utils.Env("STAKE_DENOM", "uluna"),
		MagicTxStartHeight:      utils.EnvUint64("MAGIC_TX_START_HEIGHT", 0),
		DistributionStartHeight: utils.EnvUint64("DISTRIBUTION_START_HEIGHT", 0),
		DistributionStopHeight:  utils.EnvUint64("DISTRIBUTION_STOP_HEIGHT", 0),
		TotalBudget:             utils.EnvFloat("TOTAL_BUDGET", 0),
		AuditPoolFactor:         utils.EnvFloat("AUDIT_POOL_FACTOR", 0.5),
		PerAddressCap:           utils.EnvFloat("PER_ADDRESS_CAP", 0),
		MinSendAmount:           utils.EnvFloat("MIN_SEND_AMOUNT", 0),
		AccuracyThreshold:       utils.EnvFloat("ACCURACY_THRESHOLD", 1e-6),
		PollInterval:            time.Duration(utils.EnvInt("POLL_INTERVAL_SECONDS", 5)) * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants between fields.
func (c Config) Validate() error {
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("config: RPC_ENDPOINTS is required")
	}
	if c.PoolAddress == "" {
		return fmt.Errorf("config: POOL_ADDRESS is required")
	}
	if c.AuditValidator == "" {
		return fmt.Errorf("config: AUDIT_VALIDATOR is required")
	}
	if c.DistributionStopHeight < c.DistributionStartHeight {
		return fmt.Errorf("config: distribution stop height %d below start height %d",
			c.DistributionStopHeight, c.DistributionStartHeight)
	}
	if c.MagicTxStartHeight > c.DistributionStartHeight {
		return fmt.Errorf("config: magic tx start height %d above distribution start height %d",
			c.MagicTxStartHeight, c.DistributionStartHeight)
	}
	if c.TotalBudget <= 0 {
		return fmt.Errorf("config: TOTAL_BUDGET must be positive")
	}
	if c.AuditPoolFactor < 0 || c.AuditPoolFactor > 1 {
		return fmt.Errorf("config: AUDIT_POOL_FACTOR must be within [0, 1]")
	}
	if c.PerAddressCap <= 0 {
		return fmt.Errorf("config: PER_ADDRESS_CAP must be positive")
	}
	return nil
}

// AverageRewardPerBlock is the fixed nominal reward for every height inside
// the distribution window.
func (c Config) AverageRewardPerBlock() float64 {
	blocks := c.DistributionStopHeight - c.DistributionStartHeight + 1
	return c.TotalBudget / float64(blocks)
}

// InVerifyWindow reports whether transactions at height h must be verified.
func (c Config) InVerifyWindow(h uint64) bool {
	return h >= c.MagicTxStartHeight && h <= c.DistributionStopHeight
}

// InDistributionWindow reports whether the nominal reward at height h is nonzero.
func (c Config) InDistributionWindow(h uint64) bool {
	return h >= c.DistributionStartHeight && h <= c.DistributionStopHeight
}
