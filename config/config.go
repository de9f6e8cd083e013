package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/xssnick/tonutils-go/address"

	"ton-swap/pkg/history"
	"ton-swap/pkg/wallet"
)

const (
	usdtMaster  = "EQBynBO23ywHy_CgarY9NK9FTz0yDsG82PtcbSTQgGoXwiuA"
	manifestURL = "https://raw.githubusercontent.com/veebull/twa-manifest-json/refs/heads/main/tonconnect-manifest.json"
)

// RetryConfig is the backoff policy shared by all API calls
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// Config holds the application configuration
type Config struct {
	TonAPIURL    string
	TonAPIKey    string
	PriceURL     string
	PriceAsset   string
	StableMaster string
	SwapContract string
	// Network is "mainnet" or "testnet"
	Network string

	PollInterval   time.Duration
	RequestSpacing time.Duration
	Retry          RetryConfig
	FallbackPrice  decimal.Decimal
	GasAmount      decimal.Decimal
	ValidFor       time.Duration

	BridgeURL   string
	ManifestURL string
	WalletLink  string
	HistoryFile string
}

// Chain returns the TON Connect chain id of the configured network
func (c *Config) Chain() string {
	if c.Network == "testnet" {
		return wallet.ChainTestnet
	}
	return wallet.ChainMainnet
}

var globalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("tonapi_url", "https://tonapi.io/v2")
	v.SetDefault("price_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("price_asset", "the-open-network")
	v.SetDefault("stable_master", usdtMaster)
	v.SetDefault("swap_contract", usdtMaster)
	v.SetDefault("network", "mainnet")
	v.SetDefault("poll_interval", "60s")
	v.SetDefault("request_spacing", "1s")
	v.SetDefault("retry_initial_delay", "2s")
	v.SetDefault("retry_max_delay", "60s")
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("fallback_price", "2")
	v.SetDefault("gas_amount", "0.05")
	v.SetDefault("valid_for", "5m")
	v.SetDefault("bridge_url", "https://bridge.tonapi.io/bridge")
	v.SetDefault("manifest_url", manifestURL)
	v.SetDefault("wallet_link", "https://app.tonkeeper.com/ton-connect")

	if path, err := history.DefaultPath(); err == nil {
		v.SetDefault("history_file", path)
	}
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".ton-swap")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("TON_SWAP")
	v.AutomaticEnv()

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		TonAPIURL:      strings.TrimRight(v.GetString("tonapi_url"), "/"),
		TonAPIKey:      v.GetString("tonapi_key"),
		PriceURL:       strings.TrimRight(v.GetString("price_url"), "/"),
		PriceAsset:     v.GetString("price_asset"),
		StableMaster:   v.GetString("stable_master"),
		SwapContract:   v.GetString("swap_contract"),
		Network:        strings.ToLower(v.GetString("network")),
		PollInterval:   v.GetDuration("poll_interval"),
		RequestSpacing: v.GetDuration("request_spacing"),
		Retry: RetryConfig{
			InitialDelay: v.GetDuration("retry_initial_delay"),
			MaxDelay:     v.GetDuration("retry_max_delay"),
			MaxAttempts:  v.GetInt("retry_max_attempts"),
		},
		ValidFor:    v.GetDuration("valid_for"),
		BridgeURL:   v.GetString("bridge_url"),
		ManifestURL: v.GetString("manifest_url"),
		WalletLink:  v.GetString("wallet_link"),
		HistoryFile: v.GetString("history_file"),
	}

	var err error
	if cfg.FallbackPrice, err = decimal.NewFromString(v.GetString("fallback_price")); err != nil {
		return nil, fmt.Errorf("invalid fallback_price: %w", err)
	}
	if cfg.GasAmount, err = decimal.NewFromString(v.GetString("gas_amount")); err != nil {
		return nil, fmt.Errorf("invalid gas_amount: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks addresses, amounts and intervals
func (c *Config) Validate() error {
	if c.TonAPIURL == "" {
		return fmt.Errorf("tonapi_url must not be empty")
	}
	if c.PriceURL == "" {
		return fmt.Errorf("price_url must not be empty")
	}
	if _, err := address.ParseAddr(c.StableMaster); err != nil {
		return fmt.Errorf("invalid stable_master address '%s': %w", c.StableMaster, err)
	}
	if _, err := address.ParseAddr(c.SwapContract); err != nil {
		return fmt.Errorf("invalid swap_contract address '%s': %w", c.SwapContract, err)
	}
	if c.Network != "mainnet" && c.Network != "testnet" {
		return fmt.Errorf("network must be 'mainnet' or 'testnet', got '%s'", c.Network)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.RequestSpacing <= 0 {
		return fmt.Errorf("request_spacing must be positive")
	}
	if c.Retry.InitialDelay <= 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("retry delays must satisfy 0 < retry_initial_delay <= retry_max_delay")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry_max_attempts must not be negative")
	}
	if !c.FallbackPrice.IsPositive() {
		return fmt.Errorf("fallback_price must be greater than 0")
	}
	if !c.GasAmount.IsPositive() {
		return fmt.Errorf("gas_amount must be greater than 0")
	}
	if c.ValidFor <= 0 {
		return fmt.Errorf("valid_for must be positive")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
