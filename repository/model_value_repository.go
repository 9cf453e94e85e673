package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"earnings/database"
	"earnings/models"
)

// ModelValueRepository implements the ModelValueRepository interface
type ModelValueRepository struct {
	q queryable
}

// NewModelValueRepository creates a new model value repository
func NewModelValueRepository(db *database.DB) *ModelValueRepository {
	return &ModelValueRepository{q: db.Pool}
}

// newModelValueRepositoryWithTx creates a new model value repository with a transaction
func newModelValueRepositoryWithTx(tx queryable) *ModelValueRepository {
	return &ModelValueRepository{q: tx}
}

const modelValueQuery = `
	SELECT id, model_id, platform_id, period_date, value, updated_at
	FROM model_values
	WHERE model_id = $1 AND period_date = $2
	ORDER BY platform_id
`

// GetByModelAndPeriod returns the working values of one model for a period
func (r *ModelValueRepository) GetByModelAndPeriod(ctx context.Context, modelID uuid.UUID, periodDate time.Time) ([]*models.ModelValue, error) {
	return r.list(ctx, modelValueQuery, modelID, periodDate)
}

// LockByModelAndPeriod is GetByModelAndPeriod with the rows locked until the
// transaction ends
func (r *ModelValueRepository) LockByModelAndPeriod(ctx context.Context, modelID uuid.UUID, periodDate time.Time) ([]*models.ModelValue, error) {
	return r.list(ctx, modelValueQuery+" FOR UPDATE", modelID, periodDate)
}

func (r *ModelValueRepository) list(ctx context.Context, query string, modelID uuid.UUID, periodDate time.Time) ([]*models.ModelValue, error) {
	rows, err := r.q.Query(ctx, query, modelID, periodDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get values for model %s: %w", modelID, err)
	}
	defer rows.Close()

	var values []*models.ModelValue
	for rows.Next() {
		var v models.ModelValue
		if err := rows.Scan(&v.ID, &v.ModelID, &v.PlatformID, &v.PeriodDate, &v.Value, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan model value: %w", err)
		}
		values = append(values, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate model values: %w", err)
	}

	return values, nil
}

// Upsert writes the value for (model, platform, period)
func (r *ModelValueRepository) Upsert(ctx context.Context, value *models.ModelValue) error {
	query := `
		INSERT INTO model_values (model_id, platform_id, period_date, value, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (model_id, platform_id, period_date)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING id, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		value.ModelID,
		value.PlatformID,
		value.PeriodDate,
		value.Value,
	).Scan(&value.ID, &value.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save %s value for model %s: %w", value.PlatformID, value.ModelID, err)
	}

	return nil
}

// DeleteByIDs removes the given working values of one model. Rows written
// after they were read are kept.
func (r *ModelValueRepository) DeleteByIDs(ctx context.Context, modelID uuid.UUID, ids []int64) (int64, error) {
	query := `
		DELETE FROM model_values
		WHERE model_id = $1 AND id = ANY($2::bigint[])
	`

	if ids == nil {
		ids = []int64{}
	}

	result, err := r.q.Exec(ctx, query, modelID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to reset values for model %s: %w", modelID, err)
	}
	return result.RowsAffected(), nil
}
