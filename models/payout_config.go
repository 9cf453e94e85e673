package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutConfig is a versioned calculator configuration for one model.
// Exactly one row per model is active; updates append a new row.
type PayoutConfig struct {
	ID                 int64            `db:"id" json:"id"`
	ModelID            uuid.UUID        `db:"model_id" json:"model_id"`
	AdminID            uuid.UUID        `db:"admin_id" json:"admin_id"`
	GroupID            *uuid.UUID       `db:"group_id" json:"group_id,omitempty"`
	EnabledPlatforms   []string         `db:"enabled_platforms" json:"enabled_platforms"`
	PercentageOverride *decimal.Decimal `db:"percentage_override" json:"percentage_override,omitempty"`
	MinQuotaOverride   *decimal.Decimal `db:"min_quota_override" json:"min_quota_override,omitempty"`
	GroupPercentage    *decimal.Decimal `db:"group_percentage" json:"group_percentage,omitempty"`
	GroupMinQuota      *decimal.Decimal `db:"group_min_quota" json:"group_min_quota,omitempty"`
	Active             bool             `db:"active" json:"active"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

// PlatformEnabled reports whether the platform is enabled for the model
func (c *PayoutConfig) PlatformEnabled(platformID string) bool {
	for _, id := range c.EnabledPlatforms {
		if id == platformID {
			return true
		}
	}
	return false
}

// MinQuota returns the effective minimum quota, if any
func (c *PayoutConfig) MinQuota() *decimal.Decimal {
	if c.MinQuotaOverride != nil {
		return c.MinQuotaOverride
	}
	return c.GroupMinQuota
}
