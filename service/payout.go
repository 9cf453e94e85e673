package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"earnings/models"
	"earnings/rules"
)

// DefaultPercentage is the model's share when neither the model nor the
// group configures one
var DefaultPercentage = decimal.NewFromInt(80)

var hundred = decimal.NewFromInt(100)

// ModelShare is the model's part of one platform's gross USD
type ModelShare struct {
	Percentage decimal.Decimal `json:"percentage"`
	USDModel   decimal.Decimal `json:"usd_modelo"`
	COPModel   decimal.Decimal `json:"cop_modelo"`
}

// PlatformLine is the computed payout of one platform value
type PlatformLine struct {
	PlatformID   string          `json:"platform_id"`
	PlatformName string          `json:"platform_name"`
	Currency     models.Currency `json:"currency"`
	Value        decimal.Decimal `json:"value"`
	GrossUSD     decimal.Decimal `json:"usd_bruto"`
	ModelShare
}

// Totals are plain sums of the per-platform lines
type Totals struct {
	GrossUSD decimal.Decimal `json:"usd_bruto"`
	USDModel decimal.Decimal `json:"usd_modelo"`
	COPModel decimal.Decimal `json:"cop_modelo"`
}

// Breakdown is the full computation for one model's values
type Breakdown struct {
	Lines        []PlatformLine   `json:"lines"`
	Totals       Totals           `json:"totals"`
	Rates        *ResolvedRates   `json:"rates"`
	MinQuota     *decimal.Decimal `json:"min_quota,omitempty"`
	QuotaReached bool             `json:"quota_reached"`
}

// PayoutCalculator turns raw platform values into model payouts
type PayoutCalculator struct {
	rules *rules.Table
}

// NewPayoutCalculator creates a calculator over a conversion rule table
func NewPayoutCalculator(table *rules.Table) *PayoutCalculator {
	return &PayoutCalculator{rules: table}
}

// Rules returns the rule table the calculator applies
func (c *PayoutCalculator) Rules() *rules.Table {
	return c.rules
}

// Percentage resolves the payout percentage for a platform: a fixed rule
// percentage wins, then the model override, then the group default, then 80.
func (c *PayoutCalculator) Percentage(platformID string, cfg *models.PayoutConfig) decimal.Decimal {
	if pct, ok := c.rules.PayoutPercentage(platformID); ok {
		return pct
	}
	if cfg != nil && cfg.PercentageOverride != nil {
		return *cfg.PercentageOverride
	}
	if cfg != nil && cfg.GroupPercentage != nil {
		return *cfg.GroupPercentage
	}
	return DefaultPercentage
}

// ComputeModelShare applies the payout percentage to gross USD and converts
// the model's share to COP, rounded to whole pesos
func (c *PayoutCalculator) ComputeModelShare(grossUSD decimal.Decimal, platformID string, cfg *models.PayoutConfig, usdCOP decimal.Decimal) ModelShare {
	pct := c.Percentage(platformID, cfg)
	usdModel := grossUSD.Mul(pct).Div(hundred)
	return ModelShare{
		Percentage: pct,
		USDModel:   usdModel,
		COPModel:   usdModel.Mul(usdCOP).Round(0),
	}
}

// Breakdown computes every value of a model plus the aggregate totals
func (c *PayoutCalculator) Breakdown(values []*models.ModelValue, platforms map[string]*models.Platform, cfg *models.PayoutConfig, rates *ResolvedRates) (*Breakdown, error) {
	b := &Breakdown{
		Lines: make([]PlatformLine, 0, len(values)),
		Rates: rates,
	}

	for _, v := range values {
		platform, ok := platforms[v.PlatformID]
		if !ok {
			return nil, fmt.Errorf("unknown platform %q", v.PlatformID)
		}

		gross, err := c.rules.ToGrossUSD(platform.ID, platform.Currency, v.Value, rates.Rates)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s value: %w", platform.ID, err)
		}

		line := PlatformLine{
			PlatformID:   platform.ID,
			PlatformName: platform.Name,
			Currency:     platform.Currency,
			Value:        v.Value,
			GrossUSD:     gross,
			ModelShare:   c.ComputeModelShare(gross, platform.ID, cfg, rates.Rates.USDCOP),
		}
		b.Lines = append(b.Lines, line)

		b.Totals.GrossUSD = b.Totals.GrossUSD.Add(line.GrossUSD)
		b.Totals.USDModel = b.Totals.USDModel.Add(line.USDModel)
		b.Totals.COPModel = b.Totals.COPModel.Add(line.COPModel)
	}

	if cfg != nil {
		b.MinQuota = cfg.MinQuota()
	}
	b.QuotaReached = b.MinQuota == nil || b.Totals.GrossUSD.GreaterThanOrEqual(*b.MinQuota)

	return b, nil
}

// HistoryRecords turns a breakdown into archive rows carrying the rate snapshot
func HistoryRecords(modelID uuid.UUID, period models.Period, b *Breakdown) []*models.HistoryRecord {
	rates := b.Rates.Rates
	records := make([]*models.HistoryRecord, 0, len(b.Lines))
	for _, line := range b.Lines {
		records = append(records, &models.HistoryRecord{
			ModelID:           modelID,
			PlatformID:        line.PlatformID,
			Value:             line.Value,
			PeriodDate:        period.Date,
			PeriodType:        period.Type,
			ValueUSDBruto:     decimalPtr(line.GrossUSD),
			ValueUSDModelo:    decimalPtr(line.USDModel),
			ValueCOPModelo:    decimalPtr(line.COPModel),
			PercentageApplied: decimalPtr(line.Percentage),
			RateEURUSD:        decimalPtr(rates.EURUSD),
			RateGBPUSD:        decimalPtr(rates.GBPUSD),
			RateUSDCOP:        decimalPtr(rates.USDCOP),
		})
	}
	return records
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
