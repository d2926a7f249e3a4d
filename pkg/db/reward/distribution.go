package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
)

// GetDistribution returns the cumulative reward record for an address,
// nil when the delegator has never been paid.
func (db *DB) GetDistribution(ctx context.Context, address string) (*rewardmodels.Distribution, error) {
	query := fmt.Sprintf(`
		SELECT delegator_address, amount, start_height, last_height, updated_at
		FROM "%s"."distributions" FINAL
		WHERE delegator_address = ?
	`, db.Name)

	var d rewardmodels.Distribution
	err := db.Db.QueryRow(ctx, query, address).Scan(
		&d.DelegatorAddress,
		&d.Amount,
		&d.StartHeight,
		&d.LastHeight,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get distribution %s: %w", address, err)
	}
	return &d, nil
}

// UpsertDistribution writes the full reward record for an address.
func (db *DB) UpsertDistribution(ctx context.Context, d *rewardmodels.Distribution) error {
	d.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO "%s"."distributions"
			(delegator_address, amount, start_height, last_height, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, db.Name)
	if err := db.Db.Exec(ctx, query,
		d.DelegatorAddress,
		d.Amount,
		d.StartHeight,
		d.LastHeight,
		d.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert distribution %s: %w", d.DelegatorAddress, err)
	}
	return nil
}

// SumDistributions returns the exact sum of all cumulative amounts; the
// conservation check compares it against the distribution-status singleton.
func (db *DB) SumDistributions(ctx context.Context) (float64, error) {
	query := fmt.Sprintf(`SELECT sum(amount) FROM "%s"."distributions" FINAL`, db.Name)
	var sum float64
	if err := db.Db.QueryRow(ctx, query).Scan(&sum); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("sum distributions: %w", err)
	}
	return sum, nil
}

// InsertRewardBlock writes the per-run audit row. Keyed by height, so a
// replayed run overwrites rather than duplicates.
func (db *DB) InsertRewardBlock(ctx context.Context, rb *rewardmodels.RewardBlock) error {
	rb.CreatedAt = time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO "%s"."reward_blocks" (height, distributed, left_over, created_at)
		VALUES (?, ?, ?, ?)
	`, db.Name)
	if err := db.Db.Exec(ctx, query, rb.Height, rb.Distributed, rb.LeftOver, rb.CreatedAt); err != nil {
		return fmt.Errorf("insert reward block %d: %w", rb.Height, err)
	}
	return nil
}

// ListRewardBlocks returns the most recent audit rows, newest first.
func (db *DB) ListRewardBlocks(ctx context.Context, limit int) ([]*rewardmodels.RewardBlock, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT height, distributed, left_over, created_at
		FROM "%s"."reward_blocks" FINAL
		ORDER BY height DESC
		LIMIT ?
	`, db.Name)

	rows, err := db.Db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reward blocks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*rewardmodels.RewardBlock
	for rows.Next() {
		var rb rewardmodels.RewardBlock
		if err := rows.Scan(&rb.Height, &rb.Distributed, &rb.LeftOver, &rb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward block: %w", err)
		}
		out = append(out, &rb)
	}
	return out, rows.Err()
}
