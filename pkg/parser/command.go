package parser

import (
	"fmt"
	"regexp"
	"strings"

	"ton-swap/pkg/asset"
	"ton-swap/pkg/calculator"
)

var commandPattern = regexp.MustCompile(`^(\S+)\s+(\S+)\s+(?:TO|->)\s+(\S+)$`)

// Command is a parsed swap or quote request
type Command struct {
	Amount string
	Source asset.Asset
	Dest   asset.Asset
}

// Direction returns the calculator direction of the command
func (c Command) Direction() calculator.Direction {
	return calculator.DirectionFrom(c.Source)
}

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 TON to USDT"
//   - "1.5 ton to usdt"
//   - "100 USDT -> TON"
func ParseSwapCommand(command string) (*Command, error) {
	command = strings.TrimSpace(strings.ToUpper(command))
	command = strings.TrimPrefix(command, "SWAP ")
	command = strings.TrimPrefix(command, "QUOTE ")

	matches := commandPattern.FindStringSubmatch(strings.TrimSpace(command))
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' (e.g., 'swap 1 TON to USDT')")
	}

	return ParseSwapArgs(matches[1], matches[2], matches[3])
}

// ParseSwapArgs validates the three parts of a swap command
func ParseSwapArgs(amount, source, dest string) (*Command, error) {
	value, err := calculator.ParseAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount '%s': %w", amount, err)
	}
	if !value.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	src, err := asset.Parse(NormalizeTokenSymbol(source))
	if err != nil {
		return nil, err
	}
	dst, err := asset.Parse(NormalizeTokenSymbol(dest))
	if err != nil {
		return nil, err
	}
	if src == dst {
		return nil, fmt.Errorf("source and destination token must differ")
	}

	return &Command{Amount: strings.TrimSpace(amount), Source: src, Dest: dst}, nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"TONCOIN": "TON",
		"USD₮":    "USDT",
		"JUSDT":   "USDT",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
