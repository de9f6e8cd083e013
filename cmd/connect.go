package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"ton-swap/config"
	"ton-swap/pkg/client"
	"ton-swap/pkg/exchange"
	"ton-swap/pkg/history"
	"ton-swap/pkg/wallet"
	"ton-swap/pkg/wallet/tonconnect"
)

// connectWallet prints the TON Connect link and blocks until the wallet
// approves the connection, timeout passes or ctx is cancelled.
func connectWallet(ctx context.Context, cfg *config.Config, logger *zap.Logger, timeout time.Duration) (*tonconnect.Connector, error) {
	conn, err := tonconnect.New(tonconnect.Config{
		BridgeURL:   cfg.BridgeURL,
		ManifestURL: cfg.ManifestURL,
		WalletLink:  cfg.WalletLink,
	}, logger.Named("tonconnect"))
	if err != nil {
		return nil, err
	}

	link, err := conn.ConnectURL()
	if err != nil {
		return nil, err
	}

	connected := make(chan struct{}, 1)
	unsubscribe := conn.OnStatusChange(func(s wallet.Status) {
		if s == wallet.StatusConnected {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := conn.Start(ctx); err != nil {
		return nil, err
	}

	fmt.Println("\nOpen this link in your TON wallet to connect:")
	color.Cyan("\n  %s\n", link)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for wallet approval..."
	s.Start()
	defer s.Stop()

	select {
	case <-connected:
	case <-time.After(timeout):
		conn.Close()
		return nil, fmt.Errorf("wallet did not connect within %s", timeout)
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}

	acc, _ := conn.Account()
	if acc.Chain != "" && acc.Chain != cfg.Chain() {
		logger.Warn("wallet network differs from configuration",
			zap.String("wallet", acc.Chain),
			zap.String("configured", cfg.Chain()))
	}
	return conn, nil
}

// newExchange wires an exchange to the configured APIs and the optional
// swap history.
func newExchange(cfg *config.Config, conn wallet.Connector, logger *zap.Logger) (*exchange.Exchange, error) {
	var recorder exchange.Recorder
	if cfg.HistoryFile != "" {
		store, err := history.NewStore(cfg.HistoryFile)
		if err != nil {
			return nil, err
		}
		recorder = store
	}

	return exchange.New(conn, exchange.Config{
		BalanceAPI:   client.NewTonAPIClient(cfg.TonAPIURL, cfg.TonAPIKey, nil),
		PriceAPI:     client.NewPriceClient(cfg.PriceURL, nil),
		Balance:      balanceConfig(cfg, logger),
		Price:        priceConfig(cfg, logger),
		Submit:       submitConfig(cfg),
		PollInterval: cfg.PollInterval,
		History:      recorder,
	}, logger), nil
}
