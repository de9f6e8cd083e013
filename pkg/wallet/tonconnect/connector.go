package tonconnect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ton-swap/pkg/wallet"
)

const (
	DefaultBridgeURL      = "https://bridge.tonapi.io/bridge"
	DefaultWalletLink     = "tc://"
	DefaultReconnectDelay = 2 * time.Second
	DefaultMessageTTL     = 300 * time.Second
)

// Config configures a bridge connector
type Config struct {
	BridgeURL   string
	ManifestURL string
	// WalletLink is the universal link prefix of the wallet app
	WalletLink     string
	HTTPClient     *http.Client
	ReconnectDelay time.Duration
	MessageTTL     time.Duration
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

// Connector is a TON Connect v2 dApp client talking to a wallet through the
// HTTP bridge. Messages are end-to-end encrypted with NaCl box.
type Connector struct {
	cfg    Config
	keys   keyPair
	logger *zap.Logger

	mu          sync.RWMutex
	status      wallet.Status
	account     wallet.Account
	walletKey   *[32]byte
	walletID    string
	lastEventID string
	pending     map[string]chan rpcResult
	nextID      uint64
	listeners   map[int]func(wallet.Status)
	nextListen  int
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a connector with fresh session keys.
func New(cfg Config, logger *zap.Logger) (*Connector, error) {
	if cfg.BridgeURL == "" {
		cfg.BridgeURL = DefaultBridgeURL
	}
	cfg.BridgeURL = strings.TrimRight(cfg.BridgeURL, "/")
	if cfg.WalletLink == "" {
		cfg.WalletLink = DefaultWalletLink
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.MessageTTL <= 0 {
		cfg.MessageTTL = DefaultMessageTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	keys, err := newKeyPair()
	if err != nil {
		return nil, err
	}

	return &Connector{
		cfg:       cfg,
		keys:      keys,
		logger:    logger,
		pending:   make(map[string]chan rpcResult),
		listeners: make(map[int]func(wallet.Status)),
	}, nil
}

// ClientID is the bridge id of this dApp session
func (c *Connector) ClientID() string {
	return c.keys.clientID()
}

// ConnectURL returns the link the wallet app opens to approve the connection.
func (c *Connector) ConnectURL() (string, error) {
	if c.cfg.ManifestURL == "" {
		return "", fmt.Errorf("manifest url is not configured")
	}
	r, err := json.Marshal(connectRequest{
		ManifestURL: c.cfg.ManifestURL,
		Items:       []connectItem{{Name: "ton_addr"}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode connect request: %w", err)
	}

	q := url.Values{}
	q.Set("v", protocolVersion)
	q.Set("id", c.ClientID())
	q.Set("r", string(r))
	q.Set("ret", "none")

	link := c.cfg.WalletLink
	if strings.Contains(link, "?") {
		return link + "&" + q.Encode(), nil
	}
	return link + "?" + q.Encode(), nil
}

// Start opens the bridge event stream in the background. The stream is
// re-established after failures until Close is called.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return fmt.Errorf("connector is already listening")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.setStatus(wallet.StatusConnecting)
	go func() {
		defer close(done)
		c.listen(ctx)
	}()
	return nil
}

// Close stops listening and fails pending requests. It does not notify the
// wallet; use Disconnect for that.
func (c *Connector) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.failPending(wallet.ErrSessionClosed)
}

// Status returns the current connection state
func (c *Connector) Status() wallet.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Account returns the connected account, if any
func (c *Connector) Account() (wallet.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account, c.status == wallet.StatusConnected
}

// OnStatusChange registers fn for every status transition.
func (c *Connector) OnStatusChange(fn func(wallet.Status)) func() {
	c.mu.Lock()
	id := c.nextListen
	c.nextListen++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Disconnect tells the wallet to drop the connection and resets local state.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.RLock()
	connected := c.status == wallet.StatusConnected
	c.mu.RUnlock()
	if !connected {
		return wallet.ErrNotConnected
	}

	id := c.newRequestID()
	err := c.post(ctx, rpcRequest{Method: "disconnect", Params: []string{}, ID: id})
	c.dropSession()
	return err
}

// SendTransaction asks the wallet to sign and broadcast tx and waits for the
// answer or ctx.
func (c *Connector) SendTransaction(ctx context.Context, tx wallet.Transaction) (string, error) {
	params := sendTransactionParams{
		ValidUntil: tx.ValidUntil.Unix(),
		Network:    tx.Network,
		From:       tx.From,
	}
	for _, m := range tx.Messages {
		params.Messages = append(params.Messages, transactionItem(m))
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}

	result, err := c.call(ctx, "sendTransaction", string(raw))
	if err != nil {
		return "", err
	}

	var boc string
	if err := json.Unmarshal(result, &boc); err != nil {
		return "", fmt.Errorf("unexpected sendTransaction result: %w", err)
	}
	return boc, nil
}

// call sends one RPC request and waits for the matching response.
func (c *Connector) call(ctx context.Context, method string, params ...string) (json.RawMessage, error) {
	c.mu.Lock()
	if c.status != wallet.StatusConnected {
		c.mu.Unlock()
		return nil, wallet.ErrNotConnected
	}
	c.nextID++
	id := strconv.FormatUint(c.nextID, 10)
	ch := make(chan rpcResult, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.post(ctx, rpcRequest{Method: method, Params: params, ID: id}); err != nil {
		return nil, err
	}

	c.logger.Debug("request sent to wallet", zap.String("method", method), zap.String("id", id))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.result, res.err
	}
}

func (c *Connector) newRequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return strconv.FormatUint(c.nextID, 10)
}

// post encrypts req for the wallet and pushes it to the bridge.
func (c *Connector) post(ctx context.Context, req rpcRequest) error {
	c.mu.RLock()
	peer, to := c.walletKey, c.walletID
	c.mu.RUnlock()
	if peer == nil {
		return wallet.ErrNotConnected
	}

	plain, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	sealed, err := c.keys.seal(plain, peer)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("client_id", c.ClientID())
	q.Set("to", to)
	q.Set("ttl", strconv.Itoa(int(c.cfg.MessageTTL.Seconds())))
	q.Set("topic", req.Method)
	q.Set("trace_id", uuid.NewString())
	endpoint := fmt.Sprintf("%s/message?%s", c.cfg.BridgeURL, q.Encode())

	body := strings.NewReader(base64.StdEncoding.EncodeToString(sealed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build bridge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/plain")

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bridge rejected message (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func (c *Connector) listen(ctx context.Context) {
	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("bridge stream closed, reconnecting",
			zap.Duration("delay", c.cfg.ReconnectDelay),
			zap.Error(err))

		t := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// stream holds one SSE connection to the bridge until it breaks.
func (c *Connector) stream(ctx context.Context) error {
	q := url.Values{}
	q.Set("client_id", c.ClientID())
	c.mu.RLock()
	if c.lastEventID != "" {
		q.Set("last_event_id", c.lastEventID)
	}
	c.mu.RUnlock()
	endpoint := fmt.Sprintf("%s/events?%s", c.cfg.BridgeURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open bridge stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge stream failed: %s", resp.Status)
	}

	err = readEvents(resp.Body, func(ev sseEvent) error {
		if ev.ID != "" {
			c.mu.Lock()
			c.lastEventID = ev.ID
			c.mu.Unlock()
		}
		if ev.Event == "heartbeat" || ev.Data == "" || ev.Data == "heartbeat" {
			return nil
		}
		if err := c.handleData([]byte(ev.Data)); err != nil {
			c.logger.Warn("dropping bridge message", zap.String("event_id", ev.ID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return io.EOF
}

func (c *Connector) handleData(data []byte) error {
	var env bridgeMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("invalid bridge envelope: %w", err)
	}

	c.mu.RLock()
	knownWallet := c.walletID
	c.mu.RUnlock()
	if knownWallet != "" && env.From != knownWallet {
		return fmt.Errorf("message from unknown sender %s", env.From)
	}

	peer, err := parsePeerKey(env.From)
	if err != nil {
		return err
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Message)
	if err != nil {
		return fmt.Errorf("invalid message encoding: %w", err)
	}
	plain, err := c.keys.open(sealed, peer)
	if err != nil {
		return err
	}

	var msg walletMessage
	if err := json.Unmarshal(plain, &msg); err != nil {
		return fmt.Errorf("invalid wallet message: %w", err)
	}

	switch msg.Event {
	case "connect":
		return c.handleConnect(env.From, peer, msg.Payload)
	case "connect_error":
		var e rpcError
		_ = json.Unmarshal(msg.Payload, &e)
		c.logger.Warn("wallet refused connection", zap.Int("code", e.Code), zap.String("message", e.Message))
		c.setStatus(wallet.StatusDisconnected)
		return nil
	case "disconnect":
		c.logger.Info("wallet disconnected")
		c.dropSession()
		return nil
	case "":
		c.handleResponse(msg)
		return nil
	default:
		return fmt.Errorf("unknown wallet event '%s'", msg.Event)
	}
}

func (c *Connector) handleConnect(from string, peer *[32]byte, payload json.RawMessage) error {
	var p connectPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("invalid connect payload: %w", err)
	}

	var acc wallet.Account
	for _, item := range p.Items {
		if item.Name == "ton_addr" {
			acc = wallet.Account{Address: item.Address, Chain: item.Network, PublicKey: item.PublicKey}
			break
		}
	}
	if acc.Address == "" {
		return fmt.Errorf("connect event without ton_addr item")
	}

	c.mu.Lock()
	c.walletKey = peer
	c.walletID = from
	c.account = acc
	c.mu.Unlock()

	c.logger.Info("wallet connected", zap.String("address", acc.Address), zap.String("network", acc.Chain))
	c.setStatus(wallet.StatusConnected)
	return nil
}

func (c *Connector) handleResponse(msg walletMessage) {
	id := msg.requestID()

	c.mu.RLock()
	ch, ok := c.pending[id]
	c.mu.RUnlock()
	if !ok {
		c.logger.Debug("response for unknown request", zap.String("id", id))
		return
	}

	res := rpcResult{result: msg.Result}
	if msg.Error != nil {
		if msg.Error.Code == codeUserRejected {
			res.err = wallet.ErrUserRejected
		} else {
			res.err = fmt.Errorf("wallet error %d: %s", msg.Error.Code, msg.Error.Message)
		}
	}
	select {
	case ch <- res:
	default:
	}
}

// dropSession forgets the wallet and fails requests still waiting on it.
func (c *Connector) dropSession() {
	c.mu.Lock()
	c.walletKey = nil
	c.walletID = ""
	c.account = wallet.Account{}
	c.mu.Unlock()

	c.failPending(wallet.ErrSessionClosed)
	c.setStatus(wallet.StatusDisconnected)
}

func (c *Connector) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		select {
		case ch <- rpcResult{err: err}:
		default:
		}
		delete(c.pending, id)
	}
}

func (c *Connector) setStatus(s wallet.Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	fns := make([]func(wallet.Status), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
