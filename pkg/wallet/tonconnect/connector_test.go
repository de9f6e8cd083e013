package tonconnect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ton-swap/pkg/wallet"
)

type bridgePost struct {
	clientID string
	to       string
	topic    string
	body     []byte
}

// fakeBridge relays events pushed by the test to the connector's stream and
// captures the messages the connector posts.
type fakeBridge struct {
	srv      *httptest.Server
	events   chan string
	messages chan bridgePost
	nextID   int
}

func newFakeBridge() *fakeBridge {
	b := &fakeBridge{
		events:   make(chan string, 8),
		messages: make(chan bridgePost, 8),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/bridge/events", b.handleEvents)
	mux.HandleFunc("/bridge/message", b.handleMessage)
	b.srv = httptest.NewServer(mux)
	return b
}

func (b *fakeBridge) url() string { return b.srv.URL + "/bridge" }

func (b *fakeBridge) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "no flush", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "event: heartbeat\ndata: heartbeat\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-b.events:
			b.nextID++
			fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", b.nextID, data)
			flusher.Flush()
		}
	}
}

func (b *fakeBridge) handleMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	b.messages <- bridgePost{
		clientID: q.Get("client_id"),
		to:       q.Get("to"),
		topic:    q.Get("topic"),
		body:     body,
	}
	w.WriteHeader(http.StatusOK)
}

// fakeWallet is the wallet side of the encrypted channel
type fakeWallet struct {
	t    *testing.T
	keys keyPair
	app  *[32]byte
}

func newFakeWallet(t *testing.T, appClientID string) *fakeWallet {
	keys, err := newKeyPair()
	require.NoError(t, err)
	app, err := parsePeerKey(appClientID)
	require.NoError(t, err)
	return &fakeWallet{t: t, keys: keys, app: app}
}

func (w *fakeWallet) envelope(msg any) string {
	plain, err := json.Marshal(msg)
	require.NoError(w.t, err)
	sealed, err := w.keys.seal(plain, w.app)
	require.NoError(w.t, err)
	env, err := json.Marshal(bridgeMessage{
		From:    w.keys.clientID(),
		Message: base64.StdEncoding.EncodeToString(sealed),
	})
	require.NoError(w.t, err)
	return string(env)
}

func (w *fakeWallet) decode(post bridgePost) rpcRequest {
	plain, err := w.keys.open(post.body, w.app)
	require.NoError(w.t, err)
	var req rpcRequest
	require.NoError(w.t, json.Unmarshal(plain, &req))
	return req
}

func connectEvent(address string) map[string]any {
	return map[string]any{
		"event": "connect",
		"id":    1,
		"payload": map[string]any{
			"items": []map[string]any{{
				"name":      "ton_addr",
				"address":   address,
				"network":   wallet.ChainMainnet,
				"publicKey": "abcd",
			}},
		},
	}
}

func startConnected(t *testing.T) (*Connector, *fakeBridge, *fakeWallet) {
	bridge := newFakeBridge()
	t.Cleanup(bridge.srv.Close)

	c, err := New(Config{
		BridgeURL:      bridge.url(),
		ManifestURL:    "https://example.com/tonconnect-manifest.json",
		ReconnectDelay: 10 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	statuses := make(chan wallet.Status, 8)
	c.OnStatusChange(func(s wallet.Status) { statuses <- s })

	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Close)
	assert.Equal(t, wallet.StatusConnecting, <-statuses)

	w := newFakeWallet(t, c.ClientID())
	bridge.events <- w.envelope(connectEvent("0:abc"))

	select {
	case s := <-statuses:
		require.Equal(t, wallet.StatusConnected, s)
	case <-time.After(2 * time.Second):
		t.Fatal("wallet did not connect")
	}
	return c, bridge, w
}

func TestConnector_ConnectURL(t *testing.T) {
	c, err := New(Config{
		ManifestURL: "https://example.com/manifest.json",
		WalletLink:  "https://app.tonkeeper.com/ton-connect",
	}, nil)
	require.NoError(t, err)

	link, err := c.ConnectURL()
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "app.tonkeeper.com", u.Host)
	q := u.Query()
	assert.Equal(t, "2", q.Get("v"))
	assert.Equal(t, c.ClientID(), q.Get("id"))
	assert.Equal(t, "none", q.Get("ret"))

	var r connectRequest
	require.NoError(t, json.Unmarshal([]byte(q.Get("r")), &r))
	assert.Equal(t, "https://example.com/manifest.json", r.ManifestURL)
	assert.Equal(t, []connectItem{{Name: "ton_addr"}}, r.Items)

	noManifest, err := New(Config{}, nil)
	require.NoError(t, err)
	_, err = noManifest.ConnectURL()
	assert.Error(t, err)
}

func TestConnector_Connect(t *testing.T) {
	c, _, _ := startConnected(t)

	acc, ok := c.Account()
	require.True(t, ok)
	assert.Equal(t, "0:abc", acc.Address)
	assert.Equal(t, wallet.ChainMainnet, acc.Chain)
	assert.Equal(t, wallet.StatusConnected, c.Status())
}

func TestConnector_SendTransaction(t *testing.T) {
	c, bridge, w := startConnected(t)

	validUntil := time.Now().Add(5 * time.Minute)
	type result struct {
		boc string
		err error
	}
	done := make(chan result, 1)
	go func() {
		boc, err := c.SendTransaction(context.Background(), wallet.Transaction{
			ValidUntil: validUntil,
			Messages:   []wallet.Message{{Address: "EQcontract", Amount: "1000", Payload: "te6cc"}},
		})
		done <- result{boc, err}
	}()

	post := <-bridge.messages
	assert.Equal(t, c.ClientID(), post.clientID)
	assert.Equal(t, w.keys.clientID(), post.to)
	assert.Equal(t, "sendTransaction", post.topic)

	req := w.decode(post)
	assert.Equal(t, "sendTransaction", req.Method)
	require.Len(t, req.Params, 1)

	var params sendTransactionParams
	require.NoError(t, json.Unmarshal([]byte(req.Params[0]), &params))
	assert.Equal(t, validUntil.Unix(), params.ValidUntil)
	assert.Equal(t, []transactionItem{{Address: "EQcontract", Amount: "1000", Payload: "te6cc"}}, params.Messages)

	bridge.events <- w.envelope(map[string]any{"result": "te6ccsigned", "id": req.ID})

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "te6ccsigned", res.boc)
}

func TestConnector_SendTransaction_Rejected(t *testing.T) {
	c, bridge, w := startConnected(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.SendTransaction(context.Background(), wallet.Transaction{ValidUntil: time.Now()})
		done <- err
	}()

	req := w.decode(<-bridge.messages)
	bridge.events <- w.envelope(map[string]any{
		"error": map[string]any{"code": 300, "message": "User declined the transaction"},
		"id":    req.ID,
	})

	assert.ErrorIs(t, <-done, wallet.ErrUserRejected)
}

func TestConnector_WalletDisconnect(t *testing.T) {
	c, bridge, w := startConnected(t)

	statuses := make(chan wallet.Status, 1)
	unsubscribe := c.OnStatusChange(func(s wallet.Status) { statuses <- s })
	defer unsubscribe()

	bridge.events <- w.envelope(map[string]any{"event": "disconnect", "id": 2, "payload": map[string]any{}})

	select {
	case s := <-statuses:
		assert.Equal(t, wallet.StatusDisconnected, s)
	case <-time.After(2 * time.Second):
		t.Fatal("wallet did not disconnect")
	}

	_, ok := c.Account()
	assert.False(t, ok)
	_, err := c.SendTransaction(context.Background(), wallet.Transaction{})
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
}

func TestConnector_Disconnect(t *testing.T) {
	c, bridge, w := startConnected(t)

	require.NoError(t, c.Disconnect(context.Background()))
	req := w.decode(<-bridge.messages)
	assert.Equal(t, "disconnect", req.Method)
	assert.Equal(t, wallet.StatusDisconnected, c.Status())

	assert.ErrorIs(t, c.Disconnect(context.Background()), wallet.ErrNotConnected)
}

func TestConnector_SendWithoutConnection(t *testing.T) {
	c, err := New(Config{}, nil)
	require.NoError(t, err)
	_, err = c.SendTransaction(context.Background(), wallet.Transaction{})
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
}
