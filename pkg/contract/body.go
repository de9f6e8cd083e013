package contract

import (
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	// OpSwap is the operation code the swap contract dispatches on
	OpSwap uint32 = 0x123456

	maxIDLen = 32
)

// SwapBody is the message body understood by the swap contract. Field order
// on the wire: op, query id, source id, dest id, amount, min received.
type SwapBody struct {
	QueryID     uint64
	Source      string
	Dest        string
	Amount      *big.Int
	MinReceived *big.Int
}

// Cell serializes the body. Asset ids are stored as an 8 bit length followed
// by the raw bytes, amounts as Coins.
func (b SwapBody) Cell() (*cell.Cell, error) {
	if b.Amount == nil || b.Amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount")
	}
	minReceived := b.MinReceived
	if minReceived == nil {
		minReceived = new(big.Int)
	}
	if minReceived.Sign() < 0 {
		return nil, fmt.Errorf("invalid min received")
	}

	builder := cell.BeginCell()
	if err := builder.StoreUInt(uint64(OpSwap), 32); err != nil {
		return nil, fmt.Errorf("failed to store op: %w", err)
	}
	if err := builder.StoreUInt(b.QueryID, 64); err != nil {
		return nil, fmt.Errorf("failed to store query id: %w", err)
	}
	for _, id := range []string{b.Source, b.Dest} {
		if err := storeID(builder, id); err != nil {
			return nil, err
		}
	}
	if err := builder.StoreBigCoins(b.Amount); err != nil {
		return nil, fmt.Errorf("failed to store amount: %w", err)
	}
	if err := builder.StoreBigCoins(minReceived); err != nil {
		return nil, fmt.Errorf("failed to store min received: %w", err)
	}
	return builder.EndCell(), nil
}

// BOC returns the base64 encoded bag of cells used as a message payload
func (b SwapBody) BOC() (string, error) {
	c, err := b.Cell()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(c.ToBOC()), nil
}

func storeID(builder *cell.Builder, id string) error {
	if id == "" || len(id) > maxIDLen {
		return fmt.Errorf("invalid asset id '%s'", id)
	}
	if err := builder.StoreUInt(uint64(len(id)), 8); err != nil {
		return fmt.Errorf("failed to store asset id length: %w", err)
	}
	if err := builder.StoreSlice([]byte(id), uint(len(id)*8)); err != nil {
		return fmt.Errorf("failed to store asset id: %w", err)
	}
	return nil
}

// ParseSwapBody decodes a base64 BOC produced by SwapBody.BOC.
func ParseSwapBody(boc string) (SwapBody, error) {
	raw, err := base64.StdEncoding.DecodeString(boc)
	if err != nil {
		return SwapBody{}, fmt.Errorf("invalid base64 payload: %w", err)
	}
	c, err := cell.FromBOC(raw)
	if err != nil {
		return SwapBody{}, fmt.Errorf("invalid boc: %w", err)
	}

	s := c.BeginParse()
	op, err := s.LoadUInt(32)
	if err != nil {
		return SwapBody{}, fmt.Errorf("failed to load op: %w", err)
	}
	if uint32(op) != OpSwap {
		return SwapBody{}, fmt.Errorf("unexpected op 0x%x", op)
	}

	var body SwapBody
	if body.QueryID, err = s.LoadUInt(64); err != nil {
		return SwapBody{}, fmt.Errorf("failed to load query id: %w", err)
	}
	if body.Source, err = loadID(s); err != nil {
		return SwapBody{}, err
	}
	if body.Dest, err = loadID(s); err != nil {
		return SwapBody{}, err
	}
	if body.Amount, err = s.LoadBigCoins(); err != nil {
		return SwapBody{}, fmt.Errorf("failed to load amount: %w", err)
	}
	if body.MinReceived, err = s.LoadBigCoins(); err != nil {
		return SwapBody{}, fmt.Errorf("failed to load min received: %w", err)
	}
	return body, nil
}

func loadID(s *cell.Slice) (string, error) {
	n, err := s.LoadUInt(8)
	if err != nil {
		return "", fmt.Errorf("failed to load asset id length: %w", err)
	}
	data, err := s.LoadSlice(uint(n * 8))
	if err != nil {
		return "", fmt.Errorf("failed to load asset id: %w", err)
	}
	return string(data), nil
}
