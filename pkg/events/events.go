package events

import (
	"sync"
	"time"

	"ton-swap/pkg/types"
)

// Kind tells subscribers which part of the state changed
type Kind string

const (
	KindBalances Kind = "balances"
	KindPrice    Kind = "price"
	KindWallet   Kind = "wallet"
	KindSwap     Kind = "swap"
	KindError    Kind = "error"
)

// Update is a state change published by the exchange.
// Only the fields relevant to Kind are set.
type Update struct {
	Timestamp time.Time              `json:"ts"`
	Kind      Kind                   `json:"kind"`
	Balances  *types.BalanceSnapshot `json:"balances,omitempty"`
	Price     *types.PriceQuote      `json:"price,omitempty"`
	Wallet    string                 `json:"wallet,omitempty"`
	Result    string                 `json:"result,omitempty"`
	Err       string                 `json:"error,omitempty"`
}

// Broadcaster fans out updates to all subscribers via buffered channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Update]struct{}
	buffer int
	closed bool
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan Update]struct{}),
		buffer: buffer,
	}
}

// Publish sends u to all subscribers, dropping it for readers that fall behind.
func (b *Broadcaster) Publish(u Update) {
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives updates until Unsubscribe or Close.
func (b *Broadcaster) Subscribe() chan Update {
	ch := make(chan Update, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Update) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Close closes every subscriber channel
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
