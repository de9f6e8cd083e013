package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ton-swap/pkg/calculator"
	"ton-swap/pkg/events"
	"ton-swap/pkg/fetcher"
	"ton-swap/pkg/history"
	"ton-swap/pkg/submitter"
	"ton-swap/pkg/types"
	"ton-swap/pkg/wallet"
)

// Recorder journals swap attempts
type Recorder interface {
	Record(intent types.SwapIntent, result string, swapErr error) (history.Record, error)
}

// Config wires the exchange to its data sources
type Config struct {
	BalanceAPI   fetcher.BalanceAPI
	PriceAPI     fetcher.PriceAPI
	Balance      fetcher.BalanceConfig
	Price        fetcher.PriceConfig
	Submit       submitter.Config
	PollInterval time.Duration
	// History is optional
	History Recorder
}

// Exchange holds the state of one swap front-end: the wallet session, the
// polled balances and price, and the amount form.
type Exchange struct {
	connector wallet.Connector
	cfg       Config
	logger    *zap.Logger
	updates   *events.Broadcaster

	price       *fetcher.PriceFetcher
	pricePoller *fetcher.Poller

	mu            sync.RWMutex
	runCtx        context.Context
	running       bool
	unsubscribe   func()
	session       *wallet.Session
	balances      *fetcher.BalanceFetcher
	balancePoller *fetcher.Poller
	submitter     *submitter.Submitter
	form          calculator.Form
	swapErr       error
}

// New creates an exchange on top of connector
func New(connector wallet.Connector, cfg Config, logger *zap.Logger) *Exchange {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = fetcher.DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		connector:   connector,
		cfg:         cfg,
		logger:      logger,
		updates:     events.NewBroadcaster(64),
		price:       fetcher.NewPriceFetcher(cfg.PriceAPI, cfg.Price, logger.Named("price")),
		pricePoller: fetcher.NewPoller(logger),
	}
}

// Start begins polling the price and follows the wallet connection.
func (e *Exchange) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("exchange is already running")
	}
	e.running = true
	e.runCtx = ctx
	e.mu.Unlock()

	if err := e.pricePoller.Start(ctx, fetcher.Task{
		Name:     "price",
		Interval: e.cfg.PollInterval,
		Run:      e.refreshPrice,
	}); err != nil {
		return err
	}

	unsubscribe := e.connector.OnStatusChange(e.handleStatus)
	e.mu.Lock()
	e.unsubscribe = unsubscribe
	e.mu.Unlock()

	e.handleStatus(e.connector.Status())
	return nil
}

// Stop tears down pollers and the session. The wallet stays connected.
func (e *Exchange) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	e.pricePoller.Stop()
	e.closeSession()
	e.updates.Close()
}

// Updates subscribes to state changes
func (e *Exchange) Updates() chan events.Update {
	return e.updates.Subscribe()
}

// Unsubscribe releases a channel returned by Updates
func (e *Exchange) Unsubscribe(ch chan events.Update) {
	e.updates.Unsubscribe(ch)
}

// Session returns the open wallet session, nil when disconnected
func (e *Exchange) Session() *wallet.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}

// Address returns the connected wallet address, empty when disconnected.
func (e *Exchange) Address() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return ""
	}
	return e.session.Address()
}

// Disconnect asks the wallet to end the connection
func (e *Exchange) Disconnect(ctx context.Context) error {
	if err := e.connector.Disconnect(ctx); err != nil {
		return err
	}
	e.closeSession()
	return nil
}

func (e *Exchange) handleStatus(s wallet.Status) {
	switch s {
	case wallet.StatusConnected:
		if err := e.openSession(); err != nil {
			e.logger.Error("failed to open wallet session", zap.Error(err))
			e.publishError(err)
		}
	case wallet.StatusDisconnected:
		e.closeSession()
	}
}

func (e *Exchange) openSession() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	if e.session != nil && !e.session.Closed() {
		e.mu.Unlock()
		return nil
	}

	session, err := wallet.OpenSession(e.connector)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	balances := fetcher.NewBalanceFetcher(e.cfg.BalanceAPI, session, e.cfg.Balance, e.logger.Named("balances"))
	poller := fetcher.NewPoller(e.logger)
	e.session = session
	e.balances = balances
	e.balancePoller = poller
	e.submitter = submitter.New(session, e.cfg.Submit, e.logger.Named("submitter"))

	// closeSession must never observe a poller that has not started yet
	err = poller.Start(e.runCtx, fetcher.Task{
		Name:     "balances",
		Interval: e.cfg.PollInterval,
		Run:      e.balanceTask(balances),
	})
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.logger.Info("wallet session opened", zap.String("address", session.Address()))
	e.updates.Publish(events.Update{Kind: events.KindWallet, Wallet: session.Address()})
	return nil
}

func (e *Exchange) closeSession() {
	e.mu.Lock()
	session, poller := e.session, e.balancePoller
	e.session = nil
	e.balances = nil
	e.balancePoller = nil
	e.submitter = nil
	e.mu.Unlock()

	if session == nil {
		return
	}
	if poller != nil {
		poller.Stop()
	}
	if err := session.Close(context.Background(), false); err != nil {
		e.logger.Warn("failed to close wallet session", zap.Error(err))
	}

	e.logger.Info("wallet session closed", zap.String("address", session.Address()))
	empty := types.EmptyBalances()
	e.updates.Publish(events.Update{Kind: events.KindWallet})
	e.updates.Publish(events.Update{Kind: events.KindBalances, Balances: &empty})
}

func (e *Exchange) balanceTask(f *fetcher.BalanceFetcher) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		snap, err := f.Refresh(ctx)
		if errors.Is(err, fetcher.ErrRefreshInFlight) {
			return nil
		}
		if err != nil {
			e.publishError(err)
			return err
		}
		e.updates.Publish(events.Update{Kind: events.KindBalances, Balances: &snap})
		return nil
	}
}

func (e *Exchange) refreshPrice(ctx context.Context) error {
	q, err := e.price.Refresh(ctx)
	e.updates.Publish(events.Update{Kind: events.KindPrice, Price: &q})
	return err
}

// RefreshBalances triggers an out of band balance refresh.
func (e *Exchange) RefreshBalances(ctx context.Context) (types.BalanceSnapshot, error) {
	e.mu.RLock()
	f := e.balances
	e.mu.RUnlock()
	if f == nil {
		return types.EmptyBalances(), wallet.ErrNotConnected
	}
	err := e.balanceTask(f)(ctx)
	return f.Snapshot(), err
}

// Balances returns the latest snapshot, zeros when no wallet is connected.
func (e *Exchange) Balances() types.BalanceSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.balances == nil {
		return types.EmptyBalances()
	}
	return e.balances.Snapshot()
}

// BalanceError returns the error of the last balance refresh
func (e *Exchange) BalanceError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.balances == nil {
		return nil
	}
	return e.balances.LastError()
}

// RefreshPrice triggers an out of band price refresh. The returned quote is
// usable even when err is set.
func (e *Exchange) RefreshPrice(ctx context.Context) (types.PriceQuote, error) {
	err := e.refreshPrice(ctx)
	return e.price.Quote(), err
}

// Price returns the current quote
func (e *Exchange) Price() types.PriceQuote {
	return e.price.Quote()
}

// Form returns a copy of the amount form
func (e *Exchange) Form() calculator.Form {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.form
}

// SetSource updates the source amount and recomputes the destination.
func (e *Exchange) SetSource(value string) error {
	rate := e.price.Quote().Price
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.SetSource(value, rate)
}

// SetDest updates the destination amount and recomputes the source.
func (e *Exchange) SetDest(value string) error {
	rate := e.price.Quote().Price
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.SetDest(value, rate)
}

// Toggle flips the swap direction
func (e *Exchange) Toggle() {
	e.mu.Lock()
	e.form.Toggle()
	e.mu.Unlock()
}

// ClearForm empties both amount fields
func (e *Exchange) ClearForm() {
	e.mu.Lock()
	e.form.Clear()
	e.mu.Unlock()
}

// SwapError returns the error of the last failed swap, nil after a success.
func (e *Exchange) SwapError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.swapErr
}

// Swap submits the current form. On success the form is cleared, on failure
// it is kept as entered and the error is stored and published.
func (e *Exchange) Swap(ctx context.Context) (string, error) {
	e.mu.RLock()
	form, sub := e.form, e.submitter
	e.mu.RUnlock()

	intent, err := form.Intent()
	if err != nil {
		return "", e.swapFailed(intent, &submitter.SubmitError{Intent: intent, Err: err}, false)
	}
	if sub == nil {
		return "", e.swapFailed(intent, &submitter.SubmitError{Intent: intent, Err: wallet.ErrNotConnected}, false)
	}

	boc, err := sub.Submit(ctx, intent)
	if err != nil {
		return "", e.swapFailed(intent, err, true)
	}

	e.record(intent, boc, nil)

	e.mu.Lock()
	e.form.Clear()
	e.swapErr = nil
	e.mu.Unlock()

	e.logger.Info("swap submitted",
		zap.String("source", intent.Source.Symbol()),
		zap.String("amount", intent.SourceAmount))
	e.updates.Publish(events.Update{Kind: events.KindSwap, Result: boc})
	return boc, nil
}

func (e *Exchange) swapFailed(intent types.SwapIntent, err error, record bool) error {
	if record {
		e.record(intent, "", err)
	}
	e.mu.Lock()
	e.swapErr = err
	e.mu.Unlock()

	e.logger.Warn("swap failed", zap.Error(err))
	e.publishError(err)
	return err
}

func (e *Exchange) record(intent types.SwapIntent, result string, swapErr error) {
	if e.cfg.History == nil {
		return
	}
	if _, err := e.cfg.History.Record(intent, result, swapErr); err != nil {
		e.logger.Warn("failed to record swap", zap.Error(err))
	}
}

func (e *Exchange) publishError(err error) {
	e.updates.Publish(events.Update{Kind: events.KindError, Err: err.Error()})
}
