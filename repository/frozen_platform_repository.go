package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"earnings/database"
	"earnings/models"
)

// FrozenPlatformRepository implements the FrozenPlatformRepository interface
type FrozenPlatformRepository struct {
	q queryable
}

// NewFrozenPlatformRepository creates a new frozen platform repository
func NewFrozenPlatformRepository(db *database.DB) *FrozenPlatformRepository {
	return &FrozenPlatformRepository{q: db.Pool}
}

// newFrozenPlatformRepositoryWithTx creates a new frozen platform repository with a transaction
func newFrozenPlatformRepositoryWithTx(tx queryable) *FrozenPlatformRepository {
	return &FrozenPlatformRepository{q: tx}
}

// Freeze locks the platforms for one model in a period. Platforms already
// frozen are left untouched; the number of new locks is returned.
func (r *FrozenPlatformRepository) Freeze(ctx context.Context, periodDate time.Time, modelID uuid.UUID, platformIDs []string) (int64, error) {
	query := `
		INSERT INTO calculator_early_frozen_platforms (period_date, platform_id, model_id)
		SELECT $1, p.id, $2
		FROM calculator_platforms p
		WHERE p.id = ANY($3::text[])
		ON CONFLICT (period_date, platform_id, model_id) DO NOTHING
	`

	result, err := r.q.Exec(ctx, query, periodDate, modelID, platformIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to freeze platforms for model %s: %w", modelID, err)
	}
	return result.RowsAffected(), nil
}

// List returns the locks of a period, optionally for a single model
func (r *FrozenPlatformRepository) List(ctx context.Context, periodDate time.Time, modelID *uuid.UUID) ([]*models.FrozenPlatformRecord, error) {
	query := `
		SELECT id, period_date, platform_id, model_id, frozen_at
		FROM calculator_early_frozen_platforms
		WHERE period_date = $1
		  AND ($2::uuid IS NULL OR model_id = $2)
		ORDER BY model_id, platform_id
	`

	rows, err := r.q.Query(ctx, query, periodDate, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list frozen platforms: %w", err)
	}
	defer rows.Close()

	var records []*models.FrozenPlatformRecord
	for rows.Next() {
		var rec models.FrozenPlatformRecord
		if err := rows.Scan(&rec.ID, &rec.PeriodDate, &rec.PlatformID, &rec.ModelID, &rec.FrozenAt); err != nil {
			return nil, fmt.Errorf("failed to scan frozen platform: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate frozen platforms: %w", err)
	}

	return records, nil
}

// Delete removes locks of a period. A nil modelID targets every model and an
// empty platformIDs targets every platform.
func (r *FrozenPlatformRepository) Delete(ctx context.Context, periodDate time.Time, modelID *uuid.UUID, platformIDs []string) (int64, error) {
	query := `
		DELETE FROM calculator_early_frozen_platforms
		WHERE period_date = $1
		  AND ($2::uuid IS NULL OR model_id = $2)
		  AND (cardinality($3::text[]) = 0 OR platform_id = ANY($3::text[]))
	`

	if platformIDs == nil {
		platformIDs = []string{}
	}

	result, err := r.q.Exec(ctx, query, periodDate, modelID, platformIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to unfreeze platforms: %w", err)
	}
	return result.RowsAffected(), nil
}
