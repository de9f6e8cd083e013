package tonconnect

import (
	"encoding/json"
	"strings"
)

const (
	protocolVersion = "2"

	// error code of a request declined by the user
	codeUserRejected = 300
)

type connectRequest struct {
	ManifestURL string        `json:"manifestUrl"`
	Items       []connectItem `json:"items"`
}

type connectItem struct {
	Name string `json:"name"`
}

// bridgeMessage is the envelope delivered by the bridge stream
type bridgeMessage struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

type rpcRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     string   `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// walletMessage is either an event (connect, connect_error, disconnect) or a
// response to one of our requests.
type walletMessage struct {
	Event   string          `json:"event"`
	ID      json.RawMessage `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// requestID returns the id as a string; events carry numbers, responses strings.
func (m walletMessage) requestID() string {
	return strings.Trim(string(m.ID), `"`)
}

type connectPayload struct {
	Items []struct {
		Name      string `json:"name"`
		Address   string `json:"address"`
		Network   string `json:"network"`
		PublicKey string `json:"publicKey"`
	} `json:"items"`
}

type sendTransactionParams struct {
	ValidUntil int64             `json:"valid_until"`
	Network    string            `json:"network,omitempty"`
	From       string            `json:"from,omitempty"`
	Messages   []transactionItem `json:"messages"`
}

type transactionItem struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Payload string `json:"payload,omitempty"`
}
