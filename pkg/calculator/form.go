package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ton-swap/pkg/types"
)

// Form is the state behind the two amount inputs. The zero value is an empty
// form in the native-to-stable direction.
type Form struct {
	Source    string
	Dest      string
	Direction Direction
}

// SetSource stores the source input and recomputes the destination. On a
// validation error the source keeps the typed value and the destination is
// left untouched.
func (f *Form) SetSource(value string, rate decimal.Decimal) error {
	f.Source = value
	dest, err := SourceToDest(value, rate, f.Direction)
	if err != nil {
		return err
	}
	f.Dest = dest
	return nil
}

// SetDest stores the destination input and recomputes the source.
func (f *Form) SetDest(value string, rate decimal.Decimal) error {
	f.Dest = value
	src, err := DestToSource(value, rate, f.Direction)
	if err != nil {
		return err
	}
	f.Source = src
	return nil
}

// Toggle flips the direction and swaps the two fields as they are, without
// recomputing either of them.
func (f *Form) Toggle() {
	f.Direction = f.Direction.Flip()
	f.Source, f.Dest = f.Dest, f.Source
}

// Clear empties both fields
func (f *Form) Clear() {
	f.Source = ""
	f.Dest = ""
}

// Intent builds a swap intent from the current fields.
func (f Form) Intent() (types.SwapIntent, error) {
	amount, err := ParseAmount(f.Source)
	if err != nil {
		return types.SwapIntent{}, fmt.Errorf("invalid source amount: %w", err)
	}
	if !amount.IsPositive() {
		return types.SwapIntent{}, fmt.Errorf("source amount must be greater than 0")
	}
	minOut := f.Dest
	if minOut == "" {
		minOut = "0"
	}
	if _, err := ParseAmount(minOut); err != nil {
		return types.SwapIntent{}, fmt.Errorf("invalid destination amount: %w", err)
	}

	return types.SwapIntent{
		Source:        f.Direction.Source(),
		Dest:          f.Direction.Dest(),
		SourceAmount:  f.Source,
		MinDestAmount: minOut,
	}, nil
}
