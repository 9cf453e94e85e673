package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateKind identifies a currency conversion pair
type RateKind string

const (
	RateKindUSDCOP RateKind = "USD_COP"
	RateKindEURUSD RateKind = "EUR_USD"
	RateKindGBPUSD RateKind = "GBP_USD"
)

// RateKinds lists every kind the resolver produces
var RateKinds = []RateKind{RateKindUSDCOP, RateKindEURUSD, RateKindGBPUSD}

// Valid reports whether the kind is known
func (k RateKind) Valid() bool {
	for _, kind := range RateKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// GlobalScope is the scope of rates that apply to every group
const GlobalScope = "global"

const groupScopePrefix = "group:"

// GroupScope returns the scope string for a group-specific rate
func GroupScope(groupID uuid.UUID) string {
	return groupScopePrefix + groupID.String()
}

// ParseGroupScope returns the group of a "group:<uuid>" scope
func ParseGroupScope(scope string) (uuid.UUID, bool) {
	if !strings.HasPrefix(scope, groupScopePrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(scope, groupScopePrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// IsValidScope reports whether scope is "global" or "group:<uuid>"
func IsValidScope(scope string) bool {
	if scope == GlobalScope {
		return true
	}
	_, ok := ParseGroupScope(scope)
	return ok
}

// Rate is a conversion rate row. Rows are superseded, never mutated in value.
type Rate struct {
	ID        int64           `db:"id" json:"id"`
	Kind      RateKind        `db:"kind" json:"kind"`
	Value     decimal.Decimal `db:"value" json:"value"`
	Scope     string          `db:"scope" json:"scope"`
	ValidFrom time.Time       `db:"valid_from" json:"valid_from"`
	ValidTo   *time.Time      `db:"valid_to" json:"valid_to,omitempty"`
	Active    bool            `db:"active" json:"active"`
	CreatedBy *uuid.UUID      `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// IsCurrent reports whether the row is the current rate for its scope
func (r *Rate) IsCurrent() bool {
	return r.Active && r.ValidTo == nil
}

// RateSet is one value per rate kind, as used by a calculation
type RateSet struct {
	USDCOP decimal.Decimal `json:"usd_cop"`
	EURUSD decimal.Decimal `json:"eur_usd"`
	GBPUSD decimal.Decimal `json:"gbp_usd"`
}

// Value returns the rate for kind, or zero for an unknown kind
func (s RateSet) Value(kind RateKind) decimal.Decimal {
	switch kind {
	case RateKindUSDCOP:
		return s.USDCOP
	case RateKindEURUSD:
		return s.EURUSD
	case RateKindGBPUSD:
		return s.GBPUSD
	default:
		return decimal.Zero
	}
}

// Set stores the rate for kind; unknown kinds are ignored
func (s *RateSet) Set(kind RateKind, value decimal.Decimal) {
	switch kind {
	case RateKindUSDCOP:
		s.USDCOP = value
	case RateKindEURUSD:
		s.EURUSD = value
	case RateKindGBPUSD:
		s.GBPUSD = value
	}
}
