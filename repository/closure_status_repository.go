package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"earnings/database"
	"earnings/models"
)

// ClosureStatusRepository implements the ClosureStatusRepository interface
type ClosureStatusRepository struct {
	q queryable
}

// NewClosureStatusRepository creates a new closure status repository
func NewClosureStatusRepository(db *database.DB) *ClosureStatusRepository {
	return &ClosureStatusRepository{q: db.Pool}
}

// newClosureStatusRepositoryWithTx creates a new closure status repository with a transaction
func newClosureStatusRepositoryWithTx(tx queryable) *ClosureStatusRepository {
	return &ClosureStatusRepository{q: tx}
}

// Get returns the closure status of a period, or nil if no run touched it
func (r *ClosureStatusRepository) Get(ctx context.Context, period models.Period) (*models.ClosureStatus, error) {
	return r.get(ctx, period, "")
}

// GetForUpdate is Get with a row lock held until the transaction ends
func (r *ClosureStatusRepository) GetForUpdate(ctx context.Context, period models.Period) (*models.ClosureStatus, error) {
	return r.get(ctx, period, "FOR UPDATE")
}

// GetForShare is Get with a shared lock, so a closure cannot start on the
// period until the transaction ends
func (r *ClosureStatusRepository) GetForShare(ctx context.Context, period models.Period) (*models.ClosureStatus, error) {
	return r.get(ctx, period, "FOR SHARE")
}

func (r *ClosureStatusRepository) get(ctx context.Context, period models.Period, lock string) (*models.ClosureStatus, error) {
	query := `
		SELECT id, period_date, period_type, status, metadata, created_at, updated_at
		FROM calculator_period_closure_status
		WHERE period_date = $1 AND period_type = $2
	` + lock

	var status models.ClosureStatus
	var metadataJSON []byte

	err := r.q.QueryRow(ctx, query, period.Date, period.Type).Scan(
		&status.ID,
		&status.PeriodDate,
		&status.PeriodType,
		&status.Status,
		&metadataJSON,
		&status.CreatedAt,
		&status.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get closure status for %s: %w", period, err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &status.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal closure metadata: %w", err)
		}
	}

	return &status, nil
}

// Upsert records the state and metadata of a period's closure run
func (r *ClosureStatusRepository) Upsert(ctx context.Context, status *models.ClosureStatus) error {
	metadataJSON, err := json.Marshal(status.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal closure metadata: %w", err)
	}
	if status.Metadata == nil {
		metadataJSON = []byte("{}")
	}

	query := `
		INSERT INTO calculator_period_closure_status (period_date, period_type, status, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (period_date, period_type)
		DO UPDATE SET status = EXCLUDED.status, metadata = EXCLUDED.metadata, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err = r.q.QueryRow(ctx, query,
		status.PeriodDate,
		status.PeriodType,
		status.Status,
		metadataJSON,
	).Scan(&status.ID, &status.CreatedAt, &status.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save closure status for %s (%s): %w",
			status.PeriodDate.Format(models.DateLayout), status.PeriodType, err)
	}

	return nil
}
