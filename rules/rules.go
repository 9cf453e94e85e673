// Package rules holds the per-platform conversion policy: how a raw platform
// value becomes gross USD, which platforms carry a fixed payout percentage,
// and which platforms freeze ahead of period close.
//
// The policy is data, not code. The default table is embedded from
// conversion_rules.toml and can be replaced at startup with Load.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"earnings/models"
)

//go:embed conversion_rules.toml
var defaultRules []byte

// CurrencyRule is the generic conversion for one currency
type CurrencyRule struct {
	// Rate multiplies the raw value; empty means pass-through
	Rate models.RateKind `toml:"rate"`
}

// PlatformRule layers a factor on top of the generic currency conversion
type PlatformRule struct {
	IDs              []string         `toml:"ids"`
	Currencies       []string         `toml:"currencies"`
	Factor           decimal.Decimal  `toml:"factor"`
	PayoutPercentage *decimal.Decimal `toml:"payout_percentage"`
}

// FreezeRule is a wall-clock cutover that locks a set of platforms
type FreezeRule struct {
	Name      string   `toml:"name"`
	Timezone  string   `toml:"timezone"`
	Hour      int      `toml:"hour"`
	Minute    int      `toml:"minute"`
	Platforms []string `toml:"platforms"`

	location *time.Location
}

// Location returns the timezone the cutover is expressed in
func (f FreezeRule) Location() *time.Location {
	if f.location == nil {
		return time.UTC
	}
	return f.location
}

// Covers reports whether the rule freezes the platform
func (f FreezeRule) Covers(platformID string) bool {
	for _, id := range f.Platforms {
		if id == platformID {
			return true
		}
	}
	return false
}

// CronSpec returns a robfig/cron schedule firing daily at the cutover
func (f FreezeRule) CronSpec() string {
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", f.Timezone, f.Minute, f.Hour)
}

// Table is a parsed, validated rule set
type Table struct {
	Version       string                  `toml:"version"`
	Currencies    map[string]CurrencyRule `toml:"currencies"`
	Platforms     []PlatformRule          `toml:"platforms"`
	EarlyFreeze   FreezeRule              `toml:"early_freeze"`
	CustomFreezes []FreezeRule            `toml:"custom_freezes"`

	byPlatform map[ruleKey]*PlatformRule
}

type ruleKey struct {
	platformID string
	currency   models.Currency
}

// Default returns the embedded rule table
func Default() (*Table, error) {
	return Parse(defaultRules)
}

// MustDefault returns the embedded rule table and panics if it is invalid
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded conversion rules are invalid: %v", err))
	}
	return t
}

// Load reads a rule table from path
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversion rules: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML rule table
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode conversion rules: %w", err)
	}
	if err := t.build(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) build() error {
	if t.Version == "" {
		return fmt.Errorf("conversion rules: version is required")
	}

	for currency, rule := range t.Currencies {
		if rule.Rate != "" && !rule.Rate.Valid() {
			return fmt.Errorf("conversion rules: currency %s uses unknown rate %q", currency, rule.Rate)
		}
	}

	t.byPlatform = make(map[ruleKey]*PlatformRule)
	for i := range t.Platforms {
		rule := &t.Platforms[i]
		if !rule.Factor.IsPositive() {
			return fmt.Errorf("conversion rules: platforms %v need a positive factor", rule.IDs)
		}
		if rule.PayoutPercentage != nil && (rule.PayoutPercentage.IsNegative() || rule.PayoutPercentage.GreaterThan(decimal.NewFromInt(100))) {
			return fmt.Errorf("conversion rules: platforms %v have payout percentage outside 0-100", rule.IDs)
		}
		for _, currency := range rule.Currencies {
			if _, ok := t.Currencies[currency]; !ok {
				return fmt.Errorf("conversion rules: platforms %v reference unknown currency %s", rule.IDs, currency)
			}
			for _, id := range rule.IDs {
				key := ruleKey{platformID: id, currency: models.Currency(currency)}
				if _, dup := t.byPlatform[key]; dup {
					return fmt.Errorf("conversion rules: duplicate rule for %s/%s", id, currency)
				}
				t.byPlatform[key] = rule
			}
		}
	}

	if err := t.EarlyFreeze.build(); err != nil {
		return err
	}
	for i := range t.CustomFreezes {
		if err := t.CustomFreezes[i].build(); err != nil {
			return err
		}
		for _, id := range t.CustomFreezes[i].Platforms {
			if t.EarlyFreeze.Covers(id) {
				return fmt.Errorf("conversion rules: platform %s has both early and %s freezes", id, t.CustomFreezes[i].Name)
			}
		}
	}

	return nil
}

func (f *FreezeRule) build() error {
	if len(f.Platforms) == 0 {
		return nil
	}
	if f.Name == "" {
		return fmt.Errorf("conversion rules: freeze rule needs a name")
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return fmt.Errorf("conversion rules: freeze %s has invalid timezone: %w", f.Name, err)
	}
	if f.Hour < 0 || f.Hour > 23 || f.Minute < 0 || f.Minute > 59 {
		return fmt.Errorf("conversion rules: freeze %s has invalid time %02d:%02d", f.Name, f.Hour, f.Minute)
	}
	f.location = loc
	return nil
}

// ToGrossUSD converts a raw platform value to gross USD. The generic
// per-currency conversion applies first, then the platform factor if the
// table has one for this (platform, currency) pair.
func (t *Table) ToGrossUSD(platformID string, currency models.Currency, raw decimal.Decimal, rates models.RateSet) (decimal.Decimal, error) {
	currencyRule, ok := t.Currencies[string(currency)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no conversion rule for currency %q", currency)
	}

	usd := raw
	if currencyRule.Rate != "" {
		usd = raw.Mul(rates.Value(currencyRule.Rate))
	}

	if rule, ok := t.byPlatform[ruleKey{platformID: platformID, currency: currency}]; ok {
		usd = usd.Mul(rule.Factor)
	}

	return usd, nil
}

// PayoutPercentage returns the fixed payout percentage for a platform, if the
// platform is exempt from the model's configured percentage
func (t *Table) PayoutPercentage(platformID string) (decimal.Decimal, bool) {
	for key, rule := range t.byPlatform {
		if key.platformID == platformID && rule.PayoutPercentage != nil {
			return *rule.PayoutPercentage, true
		}
	}
	return decimal.Zero, false
}

// EarlyFreezePlatforms returns the platforms locked by the early freeze, sorted
func (t *Table) EarlyFreezePlatforms() []string {
	platforms := append([]string(nil), t.EarlyFreeze.Platforms...)
	sort.Strings(platforms)
	return platforms
}

// CustomFreeze returns the named custom freeze rule
func (t *Table) CustomFreeze(name string) (FreezeRule, bool) {
	for _, rule := range t.CustomFreezes {
		if rule.Name == name {
			return rule, true
		}
	}
	return FreezeRule{}, false
}
