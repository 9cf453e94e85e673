package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"earnings/database"
	"earnings/models"
)

// HistoryRepository implements the HistoryRepository interface
type HistoryRepository struct {
	q queryable
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{q: db.Pool}
}

// newHistoryRepositoryWithTx creates a new history repository with a transaction
func newHistoryRepositoryWithTx(tx queryable) *HistoryRepository {
	return &HistoryRepository{q: tx}
}

const historyColumns = `id, model_id, platform_id, value, period_date, period_type,
	value_usd_bruto, value_usd_modelo, value_cop_modelo, percentage_applied,
	rate_eur_usd, rate_gbp_usd, rate_usd_cop, archived_at`

// CreateBatch archives records. Rows already archived for the same
// (model, platform, period) are left untouched; the number of rows actually
// inserted is returned.
func (r *HistoryRepository) CreateBatch(ctx context.Context, records []*models.HistoryRecord) (int64, error) {
	query := `
		INSERT INTO calculator_history (
			model_id, platform_id, value, period_date, period_type,
			value_usd_bruto, value_usd_modelo, value_cop_modelo, percentage_applied,
			rate_eur_usd, rate_gbp_usd, rate_usd_cop
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (model_id, platform_id, period_date, period_type) DO NOTHING
		RETURNING id, archived_at
	`

	var inserted int64
	for _, rec := range records {
		err := r.q.QueryRow(ctx, query,
			rec.ModelID,
			rec.PlatformID,
			rec.Value,
			rec.PeriodDate,
			rec.PeriodType,
			rec.ValueUSDBruto,
			rec.ValueUSDModelo,
			rec.ValueCOPModelo,
			rec.PercentageApplied,
			rec.RateEURUSD,
			rec.RateGBPUSD,
			rec.RateUSDCOP,
		).Scan(&rec.ID, &rec.ArchivedAt)
		if err == pgx.ErrNoRows {
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("failed to archive %s value for model %s: %w", rec.PlatformID, rec.ModelID, err)
		}
		inserted++
	}

	return inserted, nil
}

// List returns archived records matching the filter, newest period first
func (r *HistoryRepository) List(ctx context.Context, filter models.HistoryFilter) ([]*models.HistoryRecord, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM calculator_history
		WHERE ($1::uuid IS NULL OR model_id = $1)
		  AND ($2::date IS NULL OR period_date = $2)
		  AND ($3 = '' OR period_type = $3)
		ORDER BY period_date DESC, model_id, platform_id
		LIMIT $4
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.q.Query(ctx, query, filter.ModelID, filter.PeriodDate, string(filter.PeriodType), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return collectHistory(rows)
}

// ListMissingRates returns records archived without a full rate snapshot
// or without computed amounts, in id order after afterID
func (r *HistoryRepository) ListMissingRates(ctx context.Context, afterID int64, limit int) ([]*models.HistoryRecord, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM calculator_history
		WHERE id > $1
		  AND (rate_eur_usd IS NULL OR rate_gbp_usd IS NULL OR rate_usd_cop IS NULL
		   OR value_usd_bruto IS NULL OR value_usd_modelo IS NULL OR value_cop_modelo IS NULL)
		ORDER BY id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history missing rates: %w", err)
	}
	return collectHistory(rows)
}

// FillMissing sets the rate snapshot and computed amounts of a record, only
// where they are still null
func (r *HistoryRepository) FillMissing(ctx context.Context, rec *models.HistoryRecord) error {
	query := `
		UPDATE calculator_history
		SET value_usd_bruto = COALESCE(value_usd_bruto, $2),
		    value_usd_modelo = COALESCE(value_usd_modelo, $3),
		    value_cop_modelo = COALESCE(value_cop_modelo, $4),
		    percentage_applied = COALESCE(percentage_applied, $5),
		    rate_eur_usd = COALESCE(rate_eur_usd, $6),
		    rate_gbp_usd = COALESCE(rate_gbp_usd, $7),
		    rate_usd_cop = COALESCE(rate_usd_cop, $8)
		WHERE id = $1
	`

	_, err := r.q.Exec(ctx, query,
		rec.ID,
		rec.ValueUSDBruto,
		rec.ValueUSDModelo,
		rec.ValueCOPModelo,
		rec.PercentageApplied,
		rec.RateEURUSD,
		rec.RateGBPUSD,
		rec.RateUSDCOP,
	)
	if err != nil {
		return fmt.Errorf("failed to backfill history record %d: %w", rec.ID, err)
	}
	return nil
}

func collectHistory(rows pgx.Rows) ([]*models.HistoryRecord, error) {
	defer rows.Close()

	var records []*models.HistoryRecord
	for rows.Next() {
		var rec models.HistoryRecord
		err := rows.Scan(
			&rec.ID,
			&rec.ModelID,
			&rec.PlatformID,
			&rec.Value,
			&rec.PeriodDate,
			&rec.PeriodType,
			&rec.ValueUSDBruto,
			&rec.ValueUSDModelo,
			&rec.ValueCOPModelo,
			&rec.PercentageApplied,
			&rec.RateEURUSD,
			&rec.RateGBPUSD,
			&rec.RateUSDCOP,
			&rec.ArchivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return records, nil
}
