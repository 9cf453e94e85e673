package models

import (
	"time"

	"github.com/google/uuid"
)

// FrozenPlatformRecord locks one (model, platform, period) against edits
type FrozenPlatformRecord struct {
	ID         int64     `db:"id" json:"id"`
	PeriodDate time.Time `db:"period_date" json:"period_date"`
	PlatformID string    `db:"platform_id" json:"platform_id"`
	ModelID    uuid.UUID `db:"model_id" json:"model_id"`
	FrozenAt   time.Time `db:"frozen_at" json:"frozen_at"`
}
