package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// TonAPIClient reads account and jetton balances from a tonapi v2 compatible
// indexer.
type TonAPIClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewTonAPIClient creates a new indexer client. hc may be nil.
func NewTonAPIClient(baseURL, apiKey string, hc *http.Client) *TonAPIClient {
	return &TonAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    newHTTPClient(hc),
	}
}

// Account is the subset of the account endpoint used here
type Account struct {
	Address string      `json:"address"`
	Balance IntegerText `json:"balance"`
	Status  string      `json:"status"`
}

// JettonBalance is one entry of the jetton balances endpoint
type JettonBalance struct {
	JettonAddress string      `json:"jetton_address"`
	Balance       IntegerText `json:"balance"`
	Jetton        *struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"jetton,omitempty"`
}

// MasterAddress returns the jetton master address from whichever field the
// indexer populated.
func (j JettonBalance) MasterAddress() string {
	if j.JettonAddress != "" {
		return j.JettonAddress
	}
	if j.Jetton != nil {
		return j.Jetton.Address
	}
	return ""
}

type jettonBalancesResponse struct {
	Balances []JettonBalance `json:"balances"`
}

// IntegerText accepts an integer encoded either as a JSON string or number.
type IntegerText string

func (t *IntegerText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = IntegerText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("balance is neither string nor number: %w", err)
	}
	*t = IntegerText(n.String())
	return nil
}

func (c *TonAPIClient) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

// GetAccount fetches the native balance of an account
func (c *TonAPIClient) GetAccount(ctx context.Context, address string) (*Account, error) {
	var acc Account
	endpoint := fmt.Sprintf("%s/accounts/%s", c.baseURL, url.PathEscape(address))
	if err := getJSON(ctx, c.http, endpoint, c.headers(), &acc); err != nil {
		return nil, err
	}
	if acc.Balance == "" {
		return nil, &ParseError{Endpoint: "/accounts", Err: fmt.Errorf("balance field missing")}
	}
	return &acc, nil
}

// GetJettonBalances lists all jetton balances held by an account
func (c *TonAPIClient) GetJettonBalances(ctx context.Context, address string) ([]JettonBalance, error) {
	var resp jettonBalancesResponse
	endpoint := fmt.Sprintf("%s/accounts/%s/jettons/balances", c.baseURL, url.PathEscape(address))
	if err := getJSON(ctx, c.http, endpoint, c.headers(), &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}
