package fetcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"ton-swap/pkg/asset"
	"ton-swap/pkg/client"
	"ton-swap/pkg/retrier"
	"ton-swap/pkg/types"
)

// DefaultRequestSpacing separates the two indexer calls of one refresh to stay
// under the free tier rate limit.
const DefaultRequestSpacing = time.Second

// ErrRefreshInFlight is returned when a refresh is requested while another
// one has not finished yet.
var ErrRefreshInFlight = errors.New("balance refresh already in flight")

// BalanceAPI is the indexer surface used by the balance fetcher
type BalanceAPI interface {
	GetAccount(ctx context.Context, address string) (*client.Account, error)
	GetJettonBalances(ctx context.Context, address string) ([]client.JettonBalance, error)
}

// AccountOwner supplies the address whose balances are read.
type AccountOwner interface {
	Address() string
}

// BalanceConfig configures a BalanceFetcher
type BalanceConfig struct {
	// StableMaster is the jetton master address of the stable asset.
	StableMaster   string
	RequestSpacing time.Duration
	Retrier        *retrier.Retrier
	// Sleep waits between the two calls. Defaults to retrier.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// BalanceFetcher keeps the latest balance snapshot of one account.
type BalanceFetcher struct {
	api    BalanceAPI
	owner  AccountOwner
	cfg    BalanceConfig
	logger *zap.Logger

	inFlight atomic.Bool

	mu       sync.RWMutex
	snapshot types.BalanceSnapshot
	lastErr  error
}

// NewBalanceFetcher creates a fetcher for owner. A nil owner yields a fetcher
// that always reports zero balances.
func NewBalanceFetcher(api BalanceAPI, owner AccountOwner, cfg BalanceConfig, logger *zap.Logger) *BalanceFetcher {
	if cfg.Retrier == nil {
		cfg.Retrier = retrier.New(retrier.WithRetryable(client.Retryable))
	}
	if cfg.RequestSpacing <= 0 {
		cfg.RequestSpacing = DefaultRequestSpacing
	}
	if cfg.Sleep == nil {
		cfg.Sleep = retrier.Sleep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceFetcher{
		api:      api,
		owner:    owner,
		cfg:      cfg,
		logger:   logger,
		snapshot: types.EmptyBalances(),
	}
}

// Snapshot returns the latest known balances
func (f *BalanceFetcher) Snapshot() types.BalanceSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot
}

// LastError returns the error of the last refresh, nil after a success.
func (f *BalanceFetcher) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// Reset zeroes the snapshot and clears the error state.
func (f *BalanceFetcher) Reset() {
	f.mu.Lock()
	f.snapshot = types.EmptyBalances()
	f.lastErr = nil
	f.mu.Unlock()
}

// Refresh reads native and stable balances and replaces the snapshot. On
// failure the previous snapshot is kept and returned together with the error.
func (f *BalanceFetcher) Refresh(ctx context.Context) (types.BalanceSnapshot, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return f.Snapshot(), ErrRefreshInFlight
	}
	defer f.inFlight.Store(false)

	if f.owner == nil || f.owner.Address() == "" {
		f.Reset()
		return f.Snapshot(), nil
	}
	addr := f.owner.Address()

	snap, err := f.fetch(ctx, addr)
	if err != nil {
		f.mu.Lock()
		f.lastErr = err
		prev := f.snapshot
		f.mu.Unlock()

		f.logger.Error("balance refresh failed",
			zap.String("address", addr),
			zap.Error(err))
		return prev, err
	}

	f.mu.Lock()
	f.snapshot = snap
	f.lastErr = nil
	f.mu.Unlock()

	f.logger.Debug("balances updated",
		zap.String("address", addr),
		zap.String("native", snap.Native),
		zap.String("stable", snap.Stable))
	return snap, nil
}

func (f *BalanceFetcher) fetch(ctx context.Context, addr string) (types.BalanceSnapshot, error) {
	acc, err := retrier.DoWithData(f.cfg.Retrier, ctx, func(ctx context.Context) (*client.Account, error) {
		return f.api.GetAccount(ctx, addr)
	})
	if err != nil {
		return types.BalanceSnapshot{}, pkgerrors.Wrap(err, "failed to fetch account")
	}

	native, err := asset.Native.ParseUnits(string(acc.Balance))
	if err != nil {
		return types.BalanceSnapshot{}, &client.ParseError{Endpoint: "/accounts", Err: err}
	}

	if err := f.cfg.Sleep(ctx, f.cfg.RequestSpacing); err != nil {
		return types.BalanceSnapshot{}, err
	}

	jettons, err := retrier.DoWithData(f.cfg.Retrier, ctx, func(ctx context.Context) ([]client.JettonBalance, error) {
		return f.api.GetJettonBalances(ctx, addr)
	})
	if err != nil {
		return types.BalanceSnapshot{}, pkgerrors.Wrap(err, "failed to fetch jetton balances")
	}

	stable := "0"
	for _, j := range jettons {
		if !SameAddress(j.MasterAddress(), f.cfg.StableMaster) {
			continue
		}
		amount, err := asset.Stable.ParseUnits(string(j.Balance))
		if err != nil {
			return types.BalanceSnapshot{}, &client.ParseError{Endpoint: "/jettons/balances", Err: err}
		}
		stable = amount.StringFixed(2)
		break
	}

	snap := types.EmptyBalances()
	snap.Native = native.StringFixed(2)
	snap.Stable = stable
	snap.UpdatedAt = f.cfg.Now()
	return snap, nil
}
