package models

import "time"

// Currency is the unit a platform reports earnings in
type Currency string

const (
	CurrencyUSD    Currency = "USD"
	CurrencyEUR    Currency = "EUR"
	CurrencyGBP    Currency = "GBP"
	CurrencyTokens Currency = "tokens"
)

// Platform is static reference data describing an earnings source
type Platform struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Currency  Currency  `db:"currency" json:"currency"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
