package reward

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/pkg/db/clickhouse"
	"github.com/canopy-network/rewardx/pkg/utils"
)

// DB is the reward store: the delegator ledger, the per-delegator
// distribution ledger, the per-run audit rows and the three status
// singletons. Every write is an insert into a ReplacingMergeTree keyed by the
// record's identity, which is what makes replaying a height converge to the
// same final state.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects to ClickHouse and ensures the reward tables exist.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	name := utils.Env("CLICKHOUSE_DATABASE", "rewardx")
	client, err := clickhouse.New(ctx, logger.With(zap.String("db", name)), name)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: name}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// InitializeDB creates the reward tables when missing.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing reward database", zap.String("database", db.Name))

	for _, init := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"delegators", db.initDelegators},
		{"distributions", db.initDistributions},
		{"payouts", db.initPayouts},
		{"reward_blocks", db.initRewardBlocks},
		{"delegation_status", db.initDelegationStatus},
		{"distribution_status", db.initDistributionStatus},
		{"checkpoint", db.initCheckpoint},
	} {
		if err := init.fn(ctx); err != nil {
			return fmt.Errorf("init %s: %w", init.name, err)
		}
	}
	return nil
}

func (db *DB) initDelegators(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."delegators" (
			address String,
			audit_delegation Float64,
			global_delegation Float64,
			distribution_complete Bool,
			last_height UInt64 CODEC(DoubleDelta, LZ4),
			updated_at DateTime64(6)
		) ENGINE = %s(updated_at)
		ORDER BY address
	`, db.Name, clickhouse.ReplacingMergeTree)
	return db.Db.Exec(ctx, query)
}

func (db *DB) initDistributions(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."distributions" (
			delegator_address String,
			amount Float64,
			start_height UInt64 CODEC(DoubleDelta, LZ4),
			last_height UInt64 CODEC(DoubleDelta, LZ4),
			updated_at DateTime64(6)
		) ENGINE = %s(updated_at)
		ORDER BY delegator_address
	`, db.Name, clickhouse.ReplacingMergeTree)
	return db.Db.Exec(ctx, query)
}

func (db *DB) initRewardBlocks(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."reward_blocks" (
			height UInt64 CODEC(DoubleDelta, LZ4),
			distributed Float64,
			left_over Float64,
			created_at DateTime64(6)
		) ENGINE = %s(created_at)
		ORDER BY height
	`, db.Name, clickhouse.ReplacingMergeTree)
	return db.Db.Exec(ctx, query)
}

func (db *DB) initDelegationStatus(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."delegation_status" (
			id UInt8,
			world_global_delegation Float64,
			world_audit_delegation Float64,
			updated_at DateTime64(6)
		) ENGINE = %s(updated_at)
		ORDER BY id
	`, db.Name, clickhouse.ReplacingMergeTree)
	return db.Db.Exec(ctx, query)
}

func (db *DB) initDistributionStatus(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."distribution_status" (
			id UInt8,
			last_height UInt64,
			total_distributed Float64,
			left_over Float64,
			updated_at DateTime64(6)
		) ENGINE = %s(updated_at)
		ORDER BY id
	`, db.Name, clickhouse.ReplacingMergeTree)
	return db.Db.Exec(ctx, query)
}

func (db *DB) initCheckpoint(ctx context.Context) error {
	// Versioned by height so a stale re-write can never move the anchor back.
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."checkpoint" (
			id UInt8,
			height UInt64,
			updated_at DateTime64(6)
		) ENGINE = %s(height)
		ORDER BY id
	`, db.Name, clickhouse.ReplacingMergeTree)
	return db.Db.Exec(ctx, query)
}
