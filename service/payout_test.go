package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnings/models"
	"earnings/rules"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testPlatforms() map[string]*models.Platform {
	return map[string]*models.Platform{
		"big7":       {ID: "big7", Name: "Big7", Currency: models.CurrencyEUR, Active: true},
		"aw":         {ID: "aw", Name: "AW", Currency: models.CurrencyGBP, Active: true},
		"chaturbate": {ID: "chaturbate", Name: "Chaturbate", Currency: models.CurrencyTokens, Active: true},
		"superfoon":  {ID: "superfoon", Name: "Superfoon", Currency: models.CurrencyUSD, Active: true},
		"onlyfans":   {ID: "onlyfans", Name: "OnlyFans", Currency: models.CurrencyUSD, Active: true},
	}
}

func testResolvedRates() *ResolvedRates {
	return resolveRates(nil, nil)
}

func TestPayoutCalculator_Percentage(t *testing.T) {
	calc := NewPayoutCalculator(rules.MustDefault())

	tests := []struct {
		name       string
		platformID string
		cfg        *models.PayoutConfig
		expected   string
	}{
		{"no config uses default", "big7", nil, "80"},
		{"empty config uses default", "big7", &models.PayoutConfig{}, "80"},
		{"group percentage", "big7", &models.PayoutConfig{GroupPercentage: decPtr("70")}, "70"},
		{"override beats group", "big7", &models.PayoutConfig{GroupPercentage: decPtr("70"), PercentageOverride: decPtr("65")}, "65"},
		{"rule percentage beats override", "superfoon", &models.PayoutConfig{PercentageOverride: decPtr("65")}, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Percentage(tt.platformID, tt.cfg)
			assert.True(t, dec(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestPayoutCalculator_ComputeModelShare(t *testing.T) {
	calc := NewPayoutCalculator(rules.MustDefault())

	share := calc.ComputeModelShare(dec("84.84"), "big7", &models.PayoutConfig{PercentageOverride: decPtr("80")}, dec("3900"))

	assert.True(t, dec("80").Equal(share.Percentage))
	assert.True(t, dec("67.872").Equal(share.USDModel), "got %s", share.USDModel)
	assert.True(t, dec("264701").Equal(share.COPModel), "got %s", share.COPModel)
}

func TestPayoutCalculator_Breakdown_EndToEnd(t *testing.T) {
	calc := NewPayoutCalculator(rules.MustDefault())
	modelID := uuid.New()

	values := []*models.ModelValue{
		{ModelID: modelID, PlatformID: "big7", Value: dec("100")},
	}
	cfg := &models.PayoutConfig{ModelID: modelID, PercentageOverride: decPtr("80")}

	b, err := calc.Breakdown(values, testPlatforms(), cfg, testResolvedRates())
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)

	line := b.Lines[0]
	assert.Equal(t, "big7", line.PlatformID)
	assert.True(t, dec("84.84").Equal(line.GrossUSD), "got %s", line.GrossUSD)
	assert.True(t, dec("67.872").Equal(line.USDModel), "got %s", line.USDModel)
	assert.True(t, dec("264701").Equal(line.COPModel), "got %s", line.COPModel)

	assert.True(t, dec("84.84").Equal(b.Totals.GrossUSD))
	assert.True(t, dec("67.872").Equal(b.Totals.USDModel))
	assert.True(t, dec("264701").Equal(b.Totals.COPModel))
	assert.True(t, b.QuotaReached)
}

func TestPayoutCalculator_Breakdown_Superfoon(t *testing.T) {
	calc := NewPayoutCalculator(rules.MustDefault())

	values := []*models.ModelValue{{PlatformID: "superfoon", Value: dec("50")}}
	cfg := &models.PayoutConfig{PercentageOverride: decPtr("60")}

	b, err := calc.Breakdown(values, testPlatforms(), cfg, testResolvedRates())
	require.NoError(t, err)

	assert.True(t, dec("100").Equal(b.Lines[0].Percentage))
	assert.True(t, dec("50").Equal(b.Lines[0].USDModel))
	assert.True(t, dec("195000").Equal(b.Lines[0].COPModel))
}

func TestPayoutCalculator_Breakdown_Totals(t *testing.T) {
	calc := NewPayoutCalculator(rules.MustDefault())

	values := []*models.ModelValue{
		{PlatformID: "big7", Value: dec("100")},
		{PlatformID: "chaturbate", Value: dec("1000")},
		{PlatformID: "onlyfans", Value: dec("20")},
	}

	b, err := calc.Breakdown(values, testPlatforms(), nil, testResolvedRates())
	require.NoError(t, err)
	require.Len(t, b.Lines, 3)

	// 84.84 + 50 + 20
	assert.True(t, dec("154.84").Equal(b.Totals.GrossUSD), "got %s", b.Totals.GrossUSD)

	var usd, cop decimal.Decimal
	for _, line := range b.Lines {
		usd = usd.Add(line.USDModel)
		cop = cop.Add(line.COPModel)
	}
	assert.True(t, usd.Equal(b.Totals.USDModel))
	assert.True(t, cop.Equal(b.Totals.COPModel))
}

func TestPayoutCalculator_Breakdown_Quota(t *testing.T) {
	calc := NewPayoutCalculator(rules.MustDefault())
	values := []*models.ModelValue{{PlatformID: "onlyfans", Value: dec("100")}}

	t.Run("below model quota", func(t *testing.T) {
		cfg := &models.PayoutConfig{MinQuotaOverride: decPtr("150"), GroupMinQuota: decPtr("50")}
		b, err := calc.Breakdown(values, testPlatforms(), cfg, testResolvedRates())
		require.NoError(t, err)
		assert.True(t, dec("150").Equal(*b.MinQuota))
		assert.False(t, b.QuotaReached)
	})

	t.Run("group quota reached", func(t *testing.T) {
		cfg := &models.PayoutConfig{GroupMinQuota: decPtr("100")}
		b, err := calc.Breakdown(values, testPlatforms(), cfg, testResolvedRates())
		require.NoError(t, err)
		assert.True(t, b.QuotaReached)
	})

	t.Run("no quota", func(t *testing.T) {
		b, err := calc.Breakdown(values, testPlatforms(), &models.PayoutConfig{}, testResolvedRates())
		require.NoError(t, err)
		assert.Nil(t, b.MinQuota)
		assert.True(t, b.QuotaReached)
	})
}

func TestPayoutCalculator_Breakdown_UnknownPlatform(t *testing.T) {
	calc := NewPayoutCalculator(rules.MustDefault())

	_, err := calc.Breakdown([]*models.ModelValue{{PlatformID: "nope", Value: dec("1")}}, testPlatforms(), nil, testResolvedRates())
	assert.Error(t, err)
}

func TestHistoryRecords_CarryRatesAndAmounts(t *testing.T) {
	calc := NewPayoutCalculator(rules.MustDefault())
	modelID := uuid.New()
	period := models.PeriodFor(dateUTC(2024, 10, 3))

	b, err := calc.Breakdown([]*models.ModelValue{{PlatformID: "onlyfans", Value: dec("150")}}, testPlatforms(), nil, testResolvedRates())
	require.NoError(t, err)

	records := HistoryRecords(modelID, period, b)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, modelID, rec.ModelID)
	assert.Equal(t, period.Date, rec.PeriodDate)
	assert.Equal(t, models.PeriodFirstHalf, rec.PeriodType)
	assert.True(t, dec("150").Equal(rec.Value))
	require.NotNil(t, rec.ValueUSDBruto)
	require.NotNil(t, rec.ValueUSDModelo)
	require.NotNil(t, rec.ValueCOPModelo)
	assert.True(t, dec("150").Equal(*rec.ValueUSDBruto))
	assert.True(t, dec("120").Equal(*rec.ValueUSDModelo))
	assert.True(t, dec("468000").Equal(*rec.ValueCOPModelo))
	assert.False(t, rec.MissingRates())
}
