package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
)

// GetDelegationStatus returns the world-total singleton. A missing row means
// nothing has been indexed yet and decodes as zero totals.
func (db *DB) GetDelegationStatus(ctx context.Context) (*rewardmodels.DelegationStatus, error) {
	query := fmt.Sprintf(`
		SELECT id, world_global_delegation, world_audit_delegation, updated_at
		FROM "%s"."delegation_status" FINAL
		WHERE id = ?
	`, db.Name)

	var s rewardmodels.DelegationStatus
	err := db.Db.QueryRow(ctx, query, rewardmodels.SingletonID).Scan(
		&s.ID, &s.WorldGlobal, &s.WorldAudit, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &rewardmodels.DelegationStatus{ID: rewardmodels.SingletonID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delegation status: %w", err)
	}
	return &s, nil
}

// UpsertDelegationStatus writes the world-total singleton.
func (db *DB) UpsertDelegationStatus(ctx context.Context, s *rewardmodels.DelegationStatus) error {
	s.ID = rewardmodels.SingletonID
	s.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO "%s"."delegation_status" (id, world_global_delegation, world_audit_delegation, updated_at)
		VALUES (?, ?, ?, ?)
	`, db.Name)
	if err := db.Db.Exec(ctx, query, s.ID, s.WorldGlobal, s.WorldAudit, s.UpdatedAt); err != nil {
		return fmt.Errorf("upsert delegation status: %w", err)
	}
	return nil
}

// GetDistributionStatus returns the distribution-progress singleton, zeroed
// when distribution has never run.
func (db *DB) GetDistributionStatus(ctx context.Context) (*rewardmodels.DistributionStatus, error) {
	query := fmt.Sprintf(`
		SELECT id, last_height, total_distributed, left_over, updated_at
		FROM "%s"."distribution_status" FINAL
		WHERE id = ?
	`, db.Name)

	var s rewardmodels.DistributionStatus
	err := db.Db.QueryRow(ctx, query, rewardmodels.SingletonID).Scan(
		&s.ID, &s.LastHeight, &s.TotalDistributed, &s.LeftOver, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &rewardmodels.DistributionStatus{ID: rewardmodels.SingletonID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get distribution status: %w", err)
	}
	return &s, nil
}

// UpsertDistributionStatus writes the distribution-progress singleton.
func (db *DB) UpsertDistributionStatus(ctx context.Context, s *rewardmodels.DistributionStatus) error {
	s.ID = rewardmodels.SingletonID
	s.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO "%s"."distribution_status" (id, last_height, total_distributed, left_over, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, db.Name)
	if err := db.Db.Exec(ctx, query, s.ID, s.LastHeight, s.TotalDistributed, s.LeftOver, s.UpdatedAt); err != nil {
		return fmt.Errorf("upsert distribution status: %w", err)
	}
	return nil
}

// GetCheckpoint returns the last fully committed height, 0 when none.
func (db *DB) GetCheckpoint(ctx context.Context) (uint64, error) {
	query := fmt.Sprintf(`
		SELECT max(height) FROM "%s"."checkpoint" WHERE id = ?
	`, db.Name)

	var h uint64
	err := db.Db.QueryRow(ctx, query, rewardmodels.SingletonID).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get checkpoint: %w", err)
	}
	return h, nil
}

// CommitCheckpoint durably records that everything up to and including height
// is committed. This is the single commit point of the height loop.
func (db *DB) CommitCheckpoint(ctx context.Context, height uint64) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."checkpoint" (id, height, updated_at)
		VALUES (?, ?, ?)
	`, db.Name)
	if err := db.Db.Exec(ctx, query, rewardmodels.SingletonID, height, time.Now().UTC()); err != nil {
		return fmt.Errorf("commit checkpoint %d: %w", height, err)
	}
	return nil
}
