package calculator

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"ton-swap/pkg/asset"
)

var (
	ErrInvalidAmount  = errors.New("amount is not a number")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrInvalidRate    = errors.New("exchange rate must be greater than 0")
)

// Direction is the active swap direction
type Direction int

const (
	NativeToStable Direction = iota
	StableToNative
)

// DirectionFrom returns the direction whose source side is src.
func DirectionFrom(src asset.Asset) Direction {
	if src.IsNative() {
		return NativeToStable
	}
	return StableToNative
}

// Source returns the asset being sold
func (d Direction) Source() asset.Asset {
	if d == NativeToStable {
		return asset.Native
	}
	return asset.Stable
}

// Dest returns the asset being bought
func (d Direction) Dest() asset.Asset {
	return d.Source().Other()
}

// Flip returns the opposite direction
func (d Direction) Flip() Direction {
	if d == NativeToStable {
		return StableToNative
	}
	return NativeToStable
}

func (d Direction) String() string {
	return d.Source().Symbol() + "->" + d.Dest().Symbol()
}

// SourceToDest converts an amount typed into the source field into the
// destination amount. rate is the native asset price in stable units.
func SourceToDest(amount string, rate decimal.Decimal, dir Direction) (string, error) {
	return convert(amount, rate, dir.Source(), dir.Dest())
}

// DestToSource converts an amount typed into the destination field back into
// the source amount.
func DestToSource(amount string, rate decimal.Decimal, dir Direction) (string, error) {
	return convert(amount, rate, dir.Dest(), dir.Source())
}

// convert rounds the result to the quote precision of the asset it produces.
func convert(amount string, rate decimal.Decimal, from, to asset.Asset) (string, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return "", nil
	}
	value, err := ParseAmount(amount)
	if err != nil {
		return "", err
	}
	if !rate.IsPositive() {
		return "", ErrInvalidRate
	}

	var out decimal.Decimal
	if from.IsNative() {
		out = value.Mul(rate)
	} else {
		out = value.Div(rate)
	}
	return out.StringFixed(to.QuotePrecision()), nil
}

// ParseAmount parses a non-negative decimal string
func ParseAmount(amount string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if value.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return value, nil
}
