package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnings/models"
)

func testRates() models.RateSet {
	return models.RateSet{
		USDCOP: decimal.NewFromInt(3900),
		EURUSD: decimal.RequireFromString("1.01"),
		GBPUSD: decimal.RequireFromString("1.20"),
	}
}

func TestDefault_Loads(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, table.Version)
	assert.Len(t, table.EarlyFreezePlatforms(), 10)

	dxlive, ok := table.CustomFreeze("dxlive")
	require.True(t, ok)
	assert.Equal(t, "America/Bogota", dxlive.Location().String())
	assert.Equal(t, 10, dxlive.Hour)
	assert.True(t, dxlive.Covers("dxlive"))
	assert.False(t, table.EarlyFreeze.Covers("dxlive"))
	assert.Equal(t, "Europe/Berlin", table.EarlyFreeze.Location().String())
}

func TestToGrossUSD(t *testing.T) {
	table := MustDefault()
	rates := testRates()

	tests := []struct {
		name       string
		platformID string
		currency   models.Currency
		raw        string
		expected   string
	}{
		{"big7 EUR", "big7", models.CurrencyEUR, "100", "84.84"},
		{"mondo EUR", "mondo", models.CurrencyEUR, "100", "78.78"},
		{"generic EUR", "vx", models.CurrencyEUR, "100", "101"},
		{"aw GBP", "aw", models.CurrencyGBP, "100", "81.24"},
		{"generic GBP", "babestation", models.CurrencyGBP, "100", "120"},
		{"cmd USD", "cmd", models.CurrencyUSD, "100", "75"},
		{"camlust USD", "camlust", models.CurrencyUSD, "100", "75"},
		{"skypvt USD", "skypvt", models.CurrencyUSD, "100", "75"},
		{"chaturbate USD", "chaturbate", models.CurrencyUSD, "1000", "50"},
		{"myfreecams USD", "myfreecams", models.CurrencyUSD, "1000", "50"},
		{"stripchat USD", "stripchat", models.CurrencyUSD, "1000", "50"},
		{"stripchat tokens", "stripchat", models.CurrencyTokens, "1000", "50"},
		{"dxlive USD", "dxlive", models.CurrencyUSD, "100", "60"},
		{"secretfriends USD", "secretfriends", models.CurrencyUSD, "100", "50"},
		{"superfoon USD", "superfoon", models.CurrencyUSD, "100", "100"},
		{"generic USD", "onlyfans", models.CurrencyUSD, "123.45", "123.45"},
		{"big7 in USD falls through", "big7", models.CurrencyUSD, "100", "100"},
		{"cmd in EUR falls through", "cmd", models.CurrencyEUR, "100", "101"},
		{"zero value", "big7", models.CurrencyEUR, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.ToGrossUSD(tt.platformID, tt.currency, decimal.RequireFromString(tt.raw), rates)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestToGrossUSD_PlainUSDPassesThrough(t *testing.T) {
	table := MustDefault()
	special := map[string]bool{}
	for _, rule := range table.Platforms {
		for _, id := range rule.IDs {
			special[id] = true
		}
	}

	for _, id := range []string{"xmodels", "dirtyfans", "onlyfans", "unknown-platform"} {
		require.False(t, special[id])
		got, err := table.ToGrossUSD(id, models.CurrencyUSD, decimal.NewFromInt(250), testRates())
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(250)), id)
	}
}

func TestToGrossUSD_UnknownCurrency(t *testing.T) {
	_, err := MustDefault().ToGrossUSD("big7", models.Currency("JPY"), decimal.NewFromInt(1), testRates())
	assert.Error(t, err)
}

func TestPayoutPercentage(t *testing.T) {
	table := MustDefault()

	pct, ok := table.PayoutPercentage("superfoon")
	require.True(t, ok)
	assert.True(t, pct.Equal(decimal.NewFromInt(100)))

	_, ok = table.PayoutPercentage("big7")
	assert.False(t, ok)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{
			name: "missing version",
			toml: `[currencies.USD]
rate = ""`,
		},
		{
			name: "unknown rate kind",
			toml: `version = "1"
[currencies.EUR]
rate = "EUR_JPY"`,
		},
		{
			name: "non-positive factor",
			toml: `version = "1"
[currencies.USD]
rate = ""
[[platforms]]
ids = ["cmd"]
currencies = ["USD"]
factor = "0"`,
		},
		{
			name: "unknown currency in platform rule",
			toml: `version = "1"
[currencies.USD]
rate = ""
[[platforms]]
ids = ["cmd"]
currencies = ["EUR"]
factor = "0.75"`,
		},
		{
			name: "duplicate platform rule",
			toml: `version = "1"
[currencies.USD]
rate = ""
[[platforms]]
ids = ["cmd"]
currencies = ["USD"]
factor = "0.75"
[[platforms]]
ids = ["cmd"]
currencies = ["USD"]
factor = "0.5"`,
		},
		{
			name: "bad freeze timezone",
			toml: `version = "1"
[early_freeze]
name = "early"
timezone = "Mars/Olympus"
platforms = ["big7"]`,
		},
		{
			name: "platform in two freezes",
			toml: `version = "1"
[early_freeze]
name = "early"
timezone = "UTC"
platforms = ["big7"]
[[custom_freezes]]
name = "late"
timezone = "UTC"
platforms = ["big7"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			assert.Error(t, err)
		})
	}
}

func TestFreezeRule_CronSpec(t *testing.T) {
	rule := FreezeRule{Timezone: "America/Bogota", Hour: 10, Minute: 0}
	assert.Equal(t, "CRON_TZ=America/Bogota 0 10 * * *", rule.CronSpec())
}
