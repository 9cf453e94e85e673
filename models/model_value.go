package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ModelValue is a raw input for the current period, one row per (model, platform, period)
type ModelValue struct {
	ID         int64           `db:"id" json:"id"`
	ModelID    uuid.UUID       `db:"model_id" json:"model_id"`
	PlatformID string          `db:"platform_id" json:"platform_id"`
	PeriodDate time.Time       `db:"period_date" json:"period_date"`
	Value      decimal.Decimal `db:"value" json:"value"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}
