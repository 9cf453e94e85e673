package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"earnings/database"
	"earnings/models"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user and their group memberships
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, name, role, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}

	groups, err := r.groupIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	user.GroupIDs = groups[id]

	return &user, nil
}

// ListModels returns active users with the model role. When groupIDs is
// non-empty only models in at least one of those groups are returned.
func (r *UserRepository) ListModels(ctx context.Context, groupIDs []uuid.UUID) ([]*models.User, error) {
	query := `
		SELECT u.id, u.email, u.name, u.role, u.is_active, u.created_at, u.updated_at
		FROM users u
		WHERE u.role = $1
		  AND u.is_active
		  AND (
			cardinality($2::uuid[]) = 0
			OR EXISTS (
				SELECT 1 FROM user_groups ug
				WHERE ug.user_id = u.id AND ug.group_id = ANY($2::uuid[])
			)
		  )
		ORDER BY u.name, u.email
	`

	if groupIDs == nil {
		groupIDs = []uuid.UUID{}
	}

	rows, err := r.q.Query(ctx, query, models.RoleModel, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	var ids []uuid.UUID
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.Role,
			&user.IsActive,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
		ids = append(ids, user.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	if len(ids) == 0 {
		return users, nil
	}

	groups, err := r.groupIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		user.GroupIDs = groups[user.ID]
	}

	return users, nil
}

func (r *UserRepository) groupIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	query := `
		SELECT user_id, group_id
		FROM user_groups
		WHERE user_id = ANY($1::uuid[])
		ORDER BY group_id
	`

	rows, err := r.q.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get user groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var userID, groupID uuid.UUID
		if err := rows.Scan(&userID, &groupID); err != nil {
			return nil, fmt.Errorf("failed to scan user group: %w", err)
		}
		groups[userID] = append(groups[userID], groupID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user groups: %w", err)
	}

	return groups, nil
}
