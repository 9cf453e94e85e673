package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"earnings/database"
	"earnings/models"
)

// CreateTestUser builds a user with default values
func CreateTestUser(role models.Role, name string) *models.User {
	now := time.Now()
	id := uuid.New()
	return &models.User{
		ID:        id,
		Email:     name + "-" + id.String()[:8] + "@example.com",
		Name:      name,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// InsertGroup stores a group and returns its id
func InsertGroup(t *testing.T, db *database.DB, name string) uuid.UUID {
	id := uuid.New()
	err := db.WithTransaction(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(),
			`INSERT INTO groups (id, name) VALUES ($1, $2)`, id, name)
		return err
	})
	require.NoError(t, err)
	return id
}

// InsertUser stores a user and its group memberships in one transaction
func InsertUser(t *testing.T, db *database.DB, user *models.User) *models.User {
	ctx := context.Background()
	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, name, role, is_active)
			VALUES ($1, $2, $3, $4, $5)
		`, user.ID, user.Email, user.Name, user.Role, user.IsActive)
		if err != nil {
			return err
		}
		for _, groupID := range user.GroupIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)`, user.ID, groupID); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return user
}

// CreateTestConfig builds an active payout config
func CreateTestConfig(modelID, adminID uuid.UUID, platforms ...string) *models.PayoutConfig {
	return &models.PayoutConfig{
		ModelID:          modelID,
		AdminID:          adminID,
		EnabledPlatforms: platforms,
		Active:           true,
	}
}

// CreateTestRate builds a current rate row
func CreateTestRate(kind models.RateKind, scope string, value int64, validFrom time.Time) *models.Rate {
	return &models.Rate{
		Kind:      kind,
		Value:     decimal.NewFromInt(value),
		Scope:     scope,
		ValidFrom: validFrom,
		Active:    true,
	}
}

// CreateTestHistoryRecord builds an archived record without computed columns
func CreateTestHistoryRecord(modelID uuid.UUID, platformID string, period models.Period, value string) *models.HistoryRecord {
	return &models.HistoryRecord{
		ModelID:    modelID,
		PlatformID: platformID,
		Value:      decimal.RequireFromString(value),
		PeriodDate: period.Date,
		PeriodType: period.Type,
	}
}
