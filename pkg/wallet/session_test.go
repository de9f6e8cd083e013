package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	status       Status
	account      Account
	sent         []Transaction
	disconnected int
	sendErr      error
}

func (s *stubConnector) Status() Status { return s.status }
func (s *stubConnector) Account() (Account, bool) {
	return s.account, s.status == StatusConnected
}
func (s *stubConnector) OnStatusChange(func(Status)) func() { return func() {} }
func (s *stubConnector) Disconnect(context.Context) error {
	s.disconnected++
	s.status = StatusDisconnected
	return nil
}
func (s *stubConnector) SendTransaction(_ context.Context, tx Transaction) (string, error) {
	s.sent = append(s.sent, tx)
	return "te6cc", s.sendErr
}

func TestOpenSession(t *testing.T) {
	_, err := OpenSession(&stubConnector{})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = OpenSession(nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = OpenSession(&stubConnector{status: StatusConnected})
	assert.ErrorIs(t, err, ErrNotConnected)

	s, err := OpenSession(&stubConnector{status: StatusConnected, account: Account{Address: "0:abc"}})
	require.NoError(t, err)
	assert.Equal(t, "0:abc", s.Address())
	assert.Equal(t, ChainMainnet, s.Network())
}

func TestSession_SendTransaction(t *testing.T) {
	c := &stubConnector{status: StatusConnected, account: Account{Address: "0:abc", Chain: ChainTestnet}}
	s, err := OpenSession(c)
	require.NoError(t, err)

	boc, err := s.SendTransaction(context.Background(), Transaction{
		ValidUntil: time.Now().Add(time.Minute),
		Messages:   []Message{{Address: "EQ...", Amount: "1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "te6cc", boc)
	require.Len(t, c.sent, 1)
	assert.Equal(t, ChainTestnet, c.sent[0].Network)
	assert.Equal(t, "0:abc", c.sent[0].From)

	c.sendErr = ErrUserRejected
	_, err = s.SendTransaction(context.Background(), Transaction{})
	assert.True(t, errors.Is(err, ErrUserRejected))
}

func TestSession_Close(t *testing.T) {
	c := &stubConnector{status: StatusConnected, account: Account{Address: "0:abc"}}
	s, err := OpenSession(c)
	require.NoError(t, err)

	require.NoError(t, s.Close(context.Background(), true))
	require.NoError(t, s.Close(context.Background(), true))
	assert.True(t, s.Closed())
	assert.Equal(t, 1, c.disconnected)

	_, err = s.SendTransaction(context.Background(), Transaction{})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestWatchOnly(t *testing.T) {
	assert.Equal(t, "0:abc", WatchOnly("0:abc").Address())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "disconnected", StatusDisconnected.String())
}
