package wallet

import (
	"context"
	"fmt"
	"sync"
)

// Session is the owned handle on a connected wallet. It is opened when the
// connector reports a connection and closed on disconnect; fetchers and
// submitters receive it instead of reading connector state directly.
type Session struct {
	connector Connector
	account   Account

	mu     sync.RWMutex
	closed bool
}

// OpenSession captures the account of a connected connector.
func OpenSession(connector Connector) (*Session, error) {
	if connector == nil || connector.Status() != StatusConnected {
		return nil, ErrNotConnected
	}
	acc, ok := connector.Account()
	if !ok || acc.Address == "" {
		return nil, fmt.Errorf("connected wallet reported no account: %w", ErrNotConnected)
	}
	return &Session{connector: connector, account: acc}, nil
}

// Address returns the connected account address
func (s *Session) Address() string {
	return s.account.Address
}

// Account returns the captured account
func (s *Session) Account() Account {
	return s.account
}

// Network returns the chain id of the connected account, mainnet by default.
func (s *Session) Network() string {
	if s.account.Chain == "" {
		return ChainMainnet
	}
	return s.account.Chain
}

// Closed reports whether the session was torn down
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// SendTransaction forwards tx to the wallet, stamping the session account
// and chain on it.
func (s *Session) SendTransaction(ctx context.Context, tx Transaction) (string, error) {
	if s.Closed() {
		return "", ErrSessionClosed
	}
	if tx.Network == "" {
		tx.Network = s.Network()
	}
	if tx.From == "" {
		tx.From = s.account.Address
	}
	return s.connector.SendTransaction(ctx, tx)
}

// Close ends the session. With disconnect set the wallet is told to drop the
// connection as well. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context, disconnect bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if disconnect && s.connector.Status() == StatusConnected {
		if err := s.connector.Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to disconnect wallet: %w", err)
		}
	}
	return nil
}

// WatchOnly is a bare address used where no wallet connection is needed,
// e.g. reading balances of any account.
type WatchOnly string

// Address returns the address itself
func (w WatchOnly) Address() string { return string(w) }
