package wallet

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotConnected  = errors.New("wallet is not connected")
	ErrSessionClosed = errors.New("wallet session is closed")
	ErrUserRejected  = errors.New("request rejected in wallet")
)

// Status is the connection state reported by a connector
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusConnecting:
		return "connecting"
	default:
		return "disconnected"
	}
}

// Chain identifiers as used by TON Connect
const (
	ChainMainnet = "-239"
	ChainTestnet = "-3"
)

// Account is the wallet account exposed by a connected wallet.
type Account struct {
	Address   string
	Chain     string
	PublicKey string
}

// Message is one outgoing internal message of a transaction request.
// Amount is in nanotons, Payload is a base64 encoded BOC.
type Message struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Payload string `json:"payload,omitempty"`
}

// Transaction is handed to the wallet for signing and broadcast.
type Transaction struct {
	ValidUntil time.Time
	Network    string
	From       string
	Messages   []Message
}

// Connector is the wallet connection protocol endpoint.
type Connector interface {
	Status() Status
	Account() (Account, bool)
	// OnStatusChange registers fn and returns a function removing it.
	OnStatusChange(fn func(Status)) (unsubscribe func())
	Disconnect(ctx context.Context) error
	// SendTransaction asks the wallet to sign and send tx. It returns the
	// signed external message BOC reported by the wallet.
	SendTransaction(ctx context.Context, tx Transaction) (string, error)
}
