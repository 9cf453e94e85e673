package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryRecord is an archived period value. Written once per archival run.
//
// Computed amounts and rates are nullable only because legacy rows were
// archived without them; rows written by the closure job always carry both.
type HistoryRecord struct {
	ID                int64            `db:"id" json:"id"`
	ModelID           uuid.UUID        `db:"model_id" json:"model_id"`
	PlatformID        string           `db:"platform_id" json:"platform_id"`
	Value             decimal.Decimal  `db:"value" json:"value"`
	PeriodDate        time.Time        `db:"period_date" json:"period_date"`
	PeriodType        PeriodType       `db:"period_type" json:"period_type"`
	ValueUSDBruto     *decimal.Decimal `db:"value_usd_bruto" json:"value_usd_bruto"`
	ValueUSDModelo    *decimal.Decimal `db:"value_usd_modelo" json:"value_usd_modelo"`
	ValueCOPModelo    *decimal.Decimal `db:"value_cop_modelo" json:"value_cop_modelo"`
	PercentageApplied *decimal.Decimal `db:"percentage_applied" json:"percentage_applied"`
	RateEURUSD        *decimal.Decimal `db:"rate_eur_usd" json:"rate_eur_usd"`
	RateGBPUSD        *decimal.Decimal `db:"rate_gbp_usd" json:"rate_gbp_usd"`
	RateUSDCOP        *decimal.Decimal `db:"rate_usd_cop" json:"rate_usd_cop"`
	ArchivedAt        time.Time        `db:"archived_at" json:"archived_at"`
}

// MissingRates reports whether any rate snapshot column is empty
func (h *HistoryRecord) MissingRates() bool {
	return h.RateEURUSD == nil || h.RateGBPUSD == nil || h.RateUSDCOP == nil
}

// HistoryFilter narrows a history query. Zero fields are ignored.
type HistoryFilter struct {
	ModelID    *uuid.UUID
	PeriodDate *time.Time
	PeriodType PeriodType
	Limit      int
}
