package types

import (
	"time"

	"github.com/shopspring/decimal"

	"ton-swap/pkg/asset"
)

// SwapIntent is built per swap action and never persisted
type SwapIntent struct {
	Source        asset.Asset
	Dest          asset.Asset
	SourceAmount  string
	MinDestAmount string
}

// BalanceSnapshot holds formatted wallet balances. It is replaced as a whole
// on every successful refresh.
type BalanceSnapshot struct {
	Native     string    `json:"native"`
	Stable     string    `json:"stable"`
	LentNative string    `json:"lent_native"`
	LentStable string    `json:"lent_stable"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// EmptyBalances returns the snapshot shown before the first fetch or after
// a disconnect.
func EmptyBalances() BalanceSnapshot {
	return BalanceSnapshot{
		Native:     "0",
		Stable:     "0",
		LentNative: "0",
		LentStable: "0",
	}
}

// Of returns the balance for the given asset
func (s BalanceSnapshot) Of(a asset.Asset) string {
	if a.IsNative() {
		return s.Native
	}
	return s.Stable
}

// HasLending reports whether any lent amount is above zero
func (s BalanceSnapshot) HasLending() bool {
	for _, v := range []string{s.LentNative, s.LentStable} {
		d, err := decimal.NewFromString(v)
		if err == nil && d.IsPositive() {
			return true
		}
	}
	return false
}

// PriceQuote is the native asset price in USD
type PriceQuote struct {
	Price     decimal.Decimal `json:"price"`
	Fallback  bool            `json:"fallback"`
	UpdatedAt time.Time       `json:"updated_at"`
}
