package contract

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapBody_RoundTrip(t *testing.T) {
	body := SwapBody{
		Source:      "TON",
		Dest:        "USDT",
		Amount:      big.NewInt(1_500_000_000),
		MinReceived: big.NewInt(3_000_000),
	}

	boc, err := body.BOC()
	require.NoError(t, err)
	assert.NotEmpty(t, boc)

	got, err := ParseSwapBody(boc)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.QueryID)
	assert.Equal(t, "TON", got.Source)
	assert.Equal(t, "USDT", got.Dest)
	assert.Equal(t, 0, got.Amount.Cmp(body.Amount))
	assert.Equal(t, 0, got.MinReceived.Cmp(body.MinReceived))
}

func TestSwapBody_Layout(t *testing.T) {
	c, err := SwapBody{Source: "USDT", Dest: "TON", Amount: big.NewInt(1)}.Cell()
	require.NoError(t, err)

	s := c.BeginParse()
	op, err := s.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x123456), op)

	qid, err := s.LoadUInt(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), qid)

	n, err := s.LoadUInt(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)
}

func TestSwapBody_NilMinReceived(t *testing.T) {
	boc, err := SwapBody{Source: "TON", Dest: "USDT", Amount: big.NewInt(10)}.BOC()
	require.NoError(t, err)

	got, err := ParseSwapBody(boc)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.MinReceived.Int64())
}

func TestSwapBody_Invalid(t *testing.T) {
	_, err := SwapBody{Source: "TON", Dest: "USDT"}.Cell()
	assert.Error(t, err)

	_, err = SwapBody{Source: "", Dest: "USDT", Amount: big.NewInt(1)}.Cell()
	assert.Error(t, err)

	_, err = SwapBody{Source: "TON", Dest: "USDT", Amount: big.NewInt(-1)}.Cell()
	assert.Error(t, err)

	_, err = ParseSwapBody("%%%")
	assert.Error(t, err)
}
