package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceClient queries a CoinGecko compatible simple price endpoint.
type PriceClient struct {
	baseURL string
	http    *http.Client
}

// NewPriceClient creates a new price client. hc may be nil.
func NewPriceClient(baseURL string, hc *http.Client) *PriceClient {
	return &PriceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(hc),
	}
}

// GetUSDPrice returns the USD price of the given asset id
func (c *PriceClient) GetUSDPrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", assetID)
	q.Set("vs_currencies", "usd")
	endpoint := fmt.Sprintf("%s/simple/price?%s", c.baseURL, q.Encode())

	var resp map[string]map[string]decimal.Decimal
	if err := getJSON(ctx, c.http, endpoint, nil, &resp); err != nil {
		return decimal.Zero, err
	}

	quote, ok := resp[assetID]["usd"]
	if !ok {
		return decimal.Zero, &ParseError{Endpoint: "/simple/price", Err: fmt.Errorf("no usd price for '%s'", assetID)}
	}
	if !quote.IsPositive() {
		return decimal.Zero, &ParseError{Endpoint: "/simple/price", Err: fmt.Errorf("non-positive price %s", quote)}
	}
	return quote, nil
}
