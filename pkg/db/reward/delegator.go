package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
)

// GetDelegator returns the ledger record for an address, nil when unseen.
func (db *DB) GetDelegator(ctx context.Context, address string) (*rewardmodels.Delegator, error) {
	query := fmt.Sprintf(`
		SELECT address, audit_delegation, global_delegation, distribution_complete, last_height, updated_at
		FROM "%s"."delegators" FINAL
		WHERE address = ?
	`, db.Name)

	var d rewardmodels.Delegator
	err := db.Db.QueryRow(ctx, query, address).Scan(
		&d.Address,
		&d.AuditDelegation,
		&d.GlobalDelegation,
		&d.DistributionComplete,
		&d.LastHeight,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delegator %s: %w", address, err)
	}
	return &d, nil
}

// UpsertDelegator writes the full ledger record for an address.
func (db *DB) UpsertDelegator(ctx context.Context, d *rewardmodels.Delegator) error {
	d.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO "%s"."delegators"
			(address, audit_delegation, global_delegation, distribution_complete, last_height, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, db.Name)
	if err := db.Db.Exec(ctx, query,
		d.Address,
		d.AuditDelegation,
		d.GlobalDelegation,
		d.DistributionComplete,
		d.LastHeight,
		d.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert delegator %s: %w", d.Address, err)
	}
	return nil
}

// ListEligibleDelegators returns every delegator still below its lifetime cap.
func (db *DB) ListEligibleDelegators(ctx context.Context) ([]*rewardmodels.Delegator, error) {
	query := fmt.Sprintf(`
		SELECT address, audit_delegation, global_delegation, distribution_complete, last_height, updated_at
		FROM "%s"."delegators" FINAL
		WHERE distribution_complete = false
		ORDER BY address
	`, db.Name)

	rows, err := db.Db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list eligible delegators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*rewardmodels.Delegator
	for rows.Next() {
		var d rewardmodels.Delegator
		if err := rows.Scan(
			&d.Address,
			&d.AuditDelegation,
			&d.GlobalDelegation,
			&d.DistributionComplete,
			&d.LastHeight,
			&d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delegator: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// SumDelegatorWeights sums audit and global weights over delegators still
// below their lifetime cap. This is the authoritative source the world-total
// singleton is reconciled from.
func (db *DB) SumDelegatorWeights(ctx context.Context) (audit, global float64, err error) {
	query := fmt.Sprintf(`
		SELECT sum(audit_delegation), sum(global_delegation)
		FROM "%s"."delegators" FINAL
		WHERE distribution_complete = false
	`, db.Name)
	if err := db.Db.QueryRow(ctx, query).Scan(&audit, &global); err != nil {
		return 0, 0, fmt.Errorf("sum delegator weights: %w", err)
	}
	return audit, global, nil
}

// CountDelegators returns total and still-eligible delegator counts for the
// status projection.
func (db *DB) CountDelegators(ctx context.Context) (total, eligible uint64, err error) {
	query := fmt.Sprintf(`
		SELECT count(), countIf(distribution_complete = false)
		FROM "%s"."delegators" FINAL
	`, db.Name)
	if err := db.Db.QueryRow(ctx, query).Scan(&total, &eligible); err != nil {
		return 0, 0, fmt.Errorf("count delegators: %w", err)
	}
	return total, eligible, nil
}
