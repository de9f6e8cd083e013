package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ton-swap/pkg/asset"
)

func TestForm_SetSourceAndDest(t *testing.T) {
	rate := decimal.RequireFromString("2")
	var f Form

	require.NoError(t, f.SetSource("3", rate))
	assert.Equal(t, "3", f.Source)
	assert.Equal(t, "6.00", f.Dest)

	require.NoError(t, f.SetDest("5", rate))
	assert.Equal(t, "2.500000", f.Source)
	assert.Equal(t, "5", f.Dest)
}

func TestForm_EmptyInputClearsOtherField(t *testing.T) {
	rate := decimal.RequireFromString("2")
	f := Form{Source: "1", Dest: "2.00"}

	require.NoError(t, f.SetSource("", rate))
	assert.Equal(t, "", f.Source)
	assert.Equal(t, "", f.Dest)

	f = Form{Source: "1", Dest: "2.00"}
	// the rate is never consulted for empty input
	require.NoError(t, f.SetDest("", decimal.Zero))
	assert.Equal(t, "", f.Source)
	assert.Equal(t, "", f.Dest)
}

func TestForm_InvalidInputKeepsOtherField(t *testing.T) {
	rate := decimal.RequireFromString("2")
	f := Form{Source: "1", Dest: "2.00"}

	err := f.SetSource("1x", rate)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, "1x", f.Source)
	assert.Equal(t, "2.00", f.Dest)
}

func TestForm_ToggleIsItsOwnInverse(t *testing.T) {
	f := Form{Source: "1.5", Dest: "3.75", Direction: NativeToStable}

	f.Toggle()
	assert.Equal(t, StableToNative, f.Direction)
	assert.Equal(t, "3.75", f.Source)
	assert.Equal(t, "1.5", f.Dest)

	f.Toggle()
	assert.Equal(t, NativeToStable, f.Direction)
	assert.Equal(t, "1.5", f.Source)
	assert.Equal(t, "3.75", f.Dest)
}

func TestForm_Intent(t *testing.T) {
	f := Form{Source: "1.5", Dest: "3.75", Direction: StableToNative}

	intent, err := f.Intent()
	require.NoError(t, err)
	assert.Equal(t, asset.Stable, intent.Source)
	assert.Equal(t, asset.Native, intent.Dest)
	assert.Equal(t, "1.5", intent.SourceAmount)
	assert.Equal(t, "3.75", intent.MinDestAmount)

	f = Form{Source: "2"}
	intent, err = f.Intent()
	require.NoError(t, err)
	assert.Equal(t, "0", intent.MinDestAmount)

	f = Form{Source: "0"}
	_, err = f.Intent()
	assert.Error(t, err)

	f = Form{}
	_, err = f.Intent()
	assert.ErrorIs(t, err, ErrInvalidAmount)

	f.Clear()
	assert.Empty(t, f.Source)
	assert.Empty(t, f.Dest)
}

func snapshotForm(f Form) Form { return f }

func TestForm_IntentOnReturnedCopy(t *testing.T) {
	f := Form{Direction: StableToNative, Source: "10", Dest: "4.000000"}

	intent, err := snapshotForm(f).Intent()
	require.NoError(t, err)
	assert.Equal(t, asset.Stable, intent.Source)
	assert.Equal(t, "10", intent.SourceAmount)
	assert.Equal(t, "10", f.Source)
}
