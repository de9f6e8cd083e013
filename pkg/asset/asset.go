package asset

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Asset is one side of the swap pair. The set is closed: Native and Stable.
type Asset struct {
	symbol         string
	decimals       int32
	quotePrecision int32
}

var (
	// Native is TON, stored on-chain in nanotons.
	Native = Asset{symbol: "TON", decimals: 9, quotePrecision: 6}
	// Stable is the USDT jetton, stored on-chain in micro units.
	Stable = Asset{symbol: "USDT", decimals: 6, quotePrecision: 2}
)

// All lists the supported assets
var All = []Asset{Native, Stable}

// Symbol returns the ticker
func (a Asset) Symbol() string { return a.symbol }

// Decimals returns the on-chain decimal scale
func (a Asset) Decimals() int32 { return a.decimals }

// QuotePrecision is the number of decimal places a converted amount of this
// asset is rounded to.
func (a Asset) QuotePrecision() int32 { return a.quotePrecision }

// IsNative reports whether a is the chain's base currency
func (a Asset) IsNative() bool { return a == Native }

// IsZero reports whether a is the zero Asset
func (a Asset) IsZero() bool { return a == Asset{} }

func (a Asset) String() string { return a.symbol }

// Other returns the opposite side of the pair
func (a Asset) Other() Asset {
	if a.IsNative() {
		return Stable
	}
	return Native
}

// Parse resolves a ticker (case-insensitive) to an Asset.
func Parse(symbol string) (Asset, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, a := range All {
		if a.symbol == s {
			return a, nil
		}
	}
	return Asset{}, fmt.Errorf("unsupported asset '%s'", symbol)
}

// ToUnits converts a human amount into the smallest on-chain unit, truncating
// anything below the asset's scale.
func (a Asset) ToUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(a.decimals).Truncate(0).BigInt()
}

// FromUnits converts an integer amount in smallest units into a human amount.
func (a Asset) FromUnits(units *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(units, -a.decimals)
}

// ParseUnits parses an integer string in smallest units.
func (a Asset) ParseUnits(units string) (decimal.Decimal, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(units), 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid %s unit amount '%s'", a.symbol, units)
	}
	return a.FromUnits(n), nil
}
