package fetcher

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ton-swap/pkg/client"
	"ton-swap/pkg/retrier"
	"ton-swap/pkg/types"
)

// DefaultFallbackPrice is used whenever the price source cannot be reached.
var DefaultFallbackPrice = decimal.NewFromInt(2)

// PriceAPI returns the USD price of an asset id
type PriceAPI interface {
	GetUSDPrice(ctx context.Context, assetID string) (decimal.Decimal, error)
}

// PriceConfig configures a PriceFetcher
type PriceConfig struct {
	AssetID  string
	Fallback decimal.Decimal
	Retrier  *retrier.Retrier
	Now      func() time.Time
}

// PriceFetcher keeps the latest native asset price. Unlike balances, a
// failed refresh replaces the quote with the fallback price.
type PriceFetcher struct {
	api    PriceAPI
	cfg    PriceConfig
	logger *zap.Logger

	mu    sync.RWMutex
	quote types.PriceQuote
}

// NewPriceFetcher creates a fetcher that starts at the fallback price.
func NewPriceFetcher(api PriceAPI, cfg PriceConfig, logger *zap.Logger) *PriceFetcher {
	if cfg.AssetID == "" {
		cfg.AssetID = "the-open-network"
	}
	if !cfg.Fallback.IsPositive() {
		cfg.Fallback = DefaultFallbackPrice
	}
	if cfg.Retrier == nil {
		cfg.Retrier = retrier.New(retrier.WithRetryable(client.Retryable))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceFetcher{
		api:    api,
		cfg:    cfg,
		logger: logger,
		quote:  types.PriceQuote{Price: cfg.Fallback, Fallback: true},
	}
}

// Quote returns the current price
func (f *PriceFetcher) Quote() types.PriceQuote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.quote
}

// Refresh fetches the price. The returned error is informational: the quote
// is always usable.
func (f *PriceFetcher) Refresh(ctx context.Context) (types.PriceQuote, error) {
	price, err := retrier.DoWithData(f.cfg.Retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return f.api.GetUSDPrice(ctx, f.cfg.AssetID)
	})

	q := types.PriceQuote{Price: price, UpdatedAt: f.cfg.Now()}
	if err != nil {
		f.logger.Warn("price refresh failed, using fallback",
			zap.String("asset", f.cfg.AssetID),
			zap.String("fallback", f.cfg.Fallback.String()),
			zap.Error(err))
		q.Price = f.cfg.Fallback
		q.Fallback = true
		err = pkgerrors.Wrap(err, "failed to fetch price")
	}

	f.mu.Lock()
	f.quote = q
	f.mu.Unlock()
	return q, err
}
