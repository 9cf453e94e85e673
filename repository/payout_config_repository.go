package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"earnings/database"
	"earnings/models"
)

// PayoutConfigRepository implements the PayoutConfigRepository interface
type PayoutConfigRepository struct {
	q queryable
}

// NewPayoutConfigRepository creates a new payout config repository
func NewPayoutConfigRepository(db *database.DB) *PayoutConfigRepository {
	return &PayoutConfigRepository{q: db.Pool}
}

// newPayoutConfigRepositoryWithTx creates a new payout config repository with a transaction
func newPayoutConfigRepositoryWithTx(tx queryable) *PayoutConfigRepository {
	return &PayoutConfigRepository{q: tx}
}

const payoutConfigColumns = `id, model_id, admin_id, group_id, enabled_platforms,
	percentage_override, min_quota_override, group_percentage, group_min_quota,
	active, created_at`

// GetActive returns the active config of a model, or nil if it has none
func (r *PayoutConfigRepository) GetActive(ctx context.Context, modelID uuid.UUID) (*models.PayoutConfig, error) {
	query := `
		SELECT ` + payoutConfigColumns + `
		FROM calculator_config
		WHERE model_id = $1 AND active
	`

	cfg, err := scanPayoutConfig(r.q.QueryRow(ctx, query, modelID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active config for model %s: %w", modelID, err)
	}

	return cfg, nil
}

// ListActive returns every active config ordered by model
func (r *PayoutConfigRepository) ListActive(ctx context.Context) ([]*models.PayoutConfig, error) {
	query := `
		SELECT ` + payoutConfigColumns + `
		FROM calculator_config
		WHERE active
		ORDER BY model_id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.PayoutConfig
	for rows.Next() {
		cfg, err := scanPayoutConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate configs: %w", err)
	}

	return configs, nil
}

// DeactivateForModel marks the model's active config as superseded
func (r *PayoutConfigRepository) DeactivateForModel(ctx context.Context, modelID uuid.UUID) error {
	query := `
		UPDATE calculator_config
		SET active = FALSE
		WHERE model_id = $1 AND active
	`

	if _, err := r.q.Exec(ctx, query, modelID); err != nil {
		return fmt.Errorf("failed to deactivate config for model %s: %w", modelID, err)
	}
	return nil
}

// Create inserts a new config row
func (r *PayoutConfigRepository) Create(ctx context.Context, cfg *models.PayoutConfig) error {
	query := `
		INSERT INTO calculator_config (
			model_id, admin_id, group_id, enabled_platforms,
			percentage_override, min_quota_override, group_percentage, group_min_quota,
			active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	if cfg.EnabledPlatforms == nil {
		cfg.EnabledPlatforms = []string{}
	}

	err := r.q.QueryRow(ctx, query,
		cfg.ModelID,
		cfg.AdminID,
		cfg.GroupID,
		cfg.EnabledPlatforms,
		cfg.PercentageOverride,
		cfg.MinQuotaOverride,
		cfg.GroupPercentage,
		cfg.GroupMinQuota,
		cfg.Active,
	).Scan(&cfg.ID, &cfg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create config for model %s: %w", cfg.ModelID, err)
	}

	return nil
}

func scanPayoutConfig(row pgx.Row) (*models.PayoutConfig, error) {
	var cfg models.PayoutConfig
	err := row.Scan(
		&cfg.ID,
		&cfg.ModelID,
		&cfg.AdminID,
		&cfg.GroupID,
		&cfg.EnabledPlatforms,
		&cfg.PercentageOverride,
		&cfg.MinQuotaOverride,
		&cfg.GroupPercentage,
		&cfg.GroupMinQuota,
		&cfg.Active,
		&cfg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
