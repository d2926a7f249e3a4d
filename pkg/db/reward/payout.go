package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/rewardx/pkg/db/clickhouse"
	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
)

func (db *DB) initPayouts(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."payouts" (
			delegator_address String,
			height UInt64 CODEC(DoubleDelta, LZ4),
			rewarded Float64,
			cumulative_after Float64,
			updated_at DateTime64(6)
		) ENGINE = %s(updated_at)
		ORDER BY (delegator_address, height)
	`, db.Name, clickhouse.ReplacingMergeTree)
	return db.Db.Exec(ctx, query)
}

// UpsertPayout writes one delegator payment for one height.
func (db *DB) UpsertPayout(ctx context.Context, p *rewardmodels.Payout) error {
	p.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO "%s"."payouts" (delegator_address, height, rewarded, cumulative_after, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, db.Name)
	if err := db.Db.Exec(ctx, query,
		p.DelegatorAddress, p.Height, p.Rewarded, p.CumulativeAfter, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert payout %s@%d: %w", p.DelegatorAddress, p.Height, err)
	}
	return nil
}

// ListPayoutsAtHeight returns all payments recorded for one height; used by
// the distribution engine to detect a partially applied earlier run.
func (db *DB) ListPayoutsAtHeight(ctx context.Context, height uint64) ([]*rewardmodels.Payout, error) {
	query := fmt.Sprintf(`
		SELECT delegator_address, height, rewarded, cumulative_after, updated_at
		FROM "%s"."payouts" FINAL
		WHERE height = ?
	`, db.Name)

	rows, err := db.Db.Query(ctx, query, height)
	if err != nil {
		return nil, fmt.Errorf("list payouts at %d: %w", height, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*rewardmodels.Payout
	for rows.Next() {
		var p rewardmodels.Payout
		if err := rows.Scan(&p.DelegatorAddress, &p.Height, &p.Rewarded, &p.CumulativeAfter, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
