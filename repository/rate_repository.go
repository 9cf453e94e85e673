package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"earnings/database"
	"earnings/models"
)

// RateRepository implements the RateRepository interface
type RateRepository struct {
	q queryable
}

// NewRateRepository creates a new rate repository
func NewRateRepository(db *database.DB) *RateRepository {
	return &RateRepository{q: db.Pool}
}

// newRateRepositoryWithTx creates a new rate repository with a transaction
func newRateRepositoryWithTx(tx queryable) *RateRepository {
	return &RateRepository{q: tx}
}

const rateColumns = `id, kind, value, scope, valid_from, valid_to, active, created_by, created_at`

// GetCurrent returns every active rate with an open validity window,
// oldest first
func (r *RateRepository) GetCurrent(ctx context.Context) ([]*models.Rate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM rates
		WHERE active AND valid_to IS NULL
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get current rates: %w", err)
	}
	return collectRates(rows)
}

// GetEffectiveAt returns the rates whose validity window contains at,
// regardless of whether they are still current
func (r *RateRepository) GetEffectiveAt(ctx context.Context, at time.Time) ([]*models.Rate, error) {
	query := `
		SELECT ` + rateColumns + `
		FROM rates
		WHERE valid_from <= $1
		  AND (valid_to IS NULL OR valid_to > $1)
		ORDER BY valid_from DESC, id DESC
	`

	rows, err := r.q.Query(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("failed to get rates effective at %s: %w", at.Format(time.RFC3339), err)
	}
	return collectRates(rows)
}

// CloseCurrent ends the validity window of the current rate for (kind, scope)
func (r *RateRepository) CloseCurrent(ctx context.Context, kind models.RateKind, scope string, at time.Time) (int64, error) {
	query := `
		UPDATE rates
		SET valid_to = $3, active = FALSE
		WHERE kind = $1 AND scope = $2 AND active AND valid_to IS NULL
	`

	result, err := r.q.Exec(ctx, query, kind, scope, at)
	if err != nil {
		return 0, fmt.Errorf("failed to close current %s rate for %s: %w", kind, scope, err)
	}
	return result.RowsAffected(), nil
}

// Create inserts a new rate row
func (r *RateRepository) Create(ctx context.Context, rate *models.Rate) error {
	query := `
		INSERT INTO rates (kind, value, scope, valid_from, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		rate.Kind,
		rate.Value,
		rate.Scope,
		rate.ValidFrom,
		rate.Active,
		rate.CreatedBy,
	).Scan(&rate.ID, &rate.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create %s rate for %s: %w", rate.Kind, rate.Scope, err)
	}

	return nil
}

func collectRates(rows pgx.Rows) ([]*models.Rate, error) {
	defer rows.Close()

	var rates []*models.Rate
	for rows.Next() {
		var rate models.Rate
		err := rows.Scan(
			&rate.ID,
			&rate.Kind,
			&rate.Value,
			&rate.Scope,
			&rate.ValidFrom,
			&rate.ValidTo,
			&rate.Active,
			&rate.CreatedBy,
			&rate.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, &rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rates: %w", err)
	}

	return rates, nil
}
