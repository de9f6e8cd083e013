package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(4)
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(Update{Kind: KindPrice})

	for _, ch := range []chan Update{a, c} {
		select {
		case u := <-ch:
			assert.Equal(t, KindPrice, u.Kind)
			assert.False(t, u.Timestamp.IsZero())
		default:
			t.Fatal("expected update")
		}
	}
}

func TestBroadcaster_DropsForSlowReader(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()

	b.Publish(Update{Kind: KindPrice})
	b.Publish(Update{Kind: KindBalances})

	u := <-ch
	assert.Equal(t, KindPrice, u.Kind)
	assert.Len(t, ch, 0)
}

func TestBroadcaster_UnsubscribeAndClose(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)

	other := b.Subscribe()
	b.Close()
	_, ok = <-other
	assert.False(t, ok)

	late := b.Subscribe()
	_, ok = <-late
	require.False(t, ok)
	b.Publish(Update{Kind: KindError})
}
