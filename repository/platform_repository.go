package repository

import (
	"context"
	"fmt"

	"earnings/database"
	"earnings/models"
)

// PlatformRepository implements the PlatformRepository interface
type PlatformRepository struct {
	q queryable
}

// NewPlatformRepository creates a new platform repository
func NewPlatformRepository(db *database.DB) *PlatformRepository {
	return &PlatformRepository{q: db.Pool}
}

// newPlatformRepositoryWithTx creates a new platform repository with a transaction
func newPlatformRepositoryWithTx(tx queryable) *PlatformRepository {
	return &PlatformRepository{q: tx}
}

// GetAll returns platforms ordered by name, optionally including inactive ones
func (r *PlatformRepository) GetAll(ctx context.Context, includeInactive bool) ([]*models.Platform, error) {
	query := `
		SELECT id, name, currency, active, created_at, updated_at
		FROM calculator_platforms
		WHERE active OR $1
		ORDER BY name
	`

	rows, err := r.q.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to get platforms: %w", err)
	}
	defer rows.Close()

	var platforms []*models.Platform
	for rows.Next() {
		var p models.Platform
		if err := rows.Scan(&p.ID, &p.Name, &p.Currency, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		platforms = append(platforms, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate platforms: %w", err)
	}

	return platforms, nil
}
