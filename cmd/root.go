package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ton-swap/config"
	"ton-swap/pkg/client"
	"ton-swap/pkg/fetcher"
	"ton-swap/pkg/retrier"
	"ton-swap/pkg/submitter"
)

var rootCmd = &cobra.Command{
	Use:   "ton-swap",
	Short: "A CLI for swapping TON and USDT from a connected wallet",
	Long: `ton-swap connects to a TON wallet over TON Connect, shows its TON and USDT
balances, converts amounts at the live TON price and sends swap transactions
that the wallet signs.

Examples:
  ton-swap balance EQBynBO23ywHy_CgarY9NK9FTz0yDsG82PtcbSTQgGoXwiuA
  ton-swap price
  ton-swap quote 10 TON to USDT
  ton-swap swap 1.5 TON to USDT
  ton-swap run`,
	Version: "0.1.0",
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

// newLogger returns a development logger with --verbose, otherwise a
// production logger that only reports warnings so it does not clutter the
// terminal output.
func newLogger(cmd *cobra.Command) *zap.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")

	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		logger, err = zcfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newRetrier(cfg *config.Config, logger *zap.Logger) *retrier.Retrier {
	return retrier.New(
		retrier.WithInitialInterval(cfg.Retry.InitialDelay),
		retrier.WithMaxInterval(cfg.Retry.MaxDelay),
		retrier.WithMaxRetries(cfg.Retry.MaxAttempts),
		retrier.WithRetryable(client.Retryable),
		retrier.WithNotify(func(attempt int, delay time.Duration, err error) {
			logger.Info("retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		}),
	)
}

func newBalanceFetcher(cfg *config.Config, owner fetcher.AccountOwner, logger *zap.Logger) *fetcher.BalanceFetcher {
	api := client.NewTonAPIClient(cfg.TonAPIURL, cfg.TonAPIKey, nil)
	return fetcher.NewBalanceFetcher(api, owner, balanceConfig(cfg, logger), logger)
}

func newPriceFetcher(cfg *config.Config, logger *zap.Logger) *fetcher.PriceFetcher {
	api := client.NewPriceClient(cfg.PriceURL, nil)
	return fetcher.NewPriceFetcher(api, priceConfig(cfg, logger), logger)
}

func balanceConfig(cfg *config.Config, logger *zap.Logger) fetcher.BalanceConfig {
	return fetcher.BalanceConfig{
		StableMaster:   cfg.StableMaster,
		RequestSpacing: cfg.RequestSpacing,
		Retrier:        newRetrier(cfg, logger),
	}
}

func priceConfig(cfg *config.Config, logger *zap.Logger) fetcher.PriceConfig {
	return fetcher.PriceConfig{
		AssetID:  cfg.PriceAsset,
		Fallback: cfg.FallbackPrice,
		Retrier:  newRetrier(cfg, logger),
	}
}

func submitConfig(cfg *config.Config) submitter.Config {
	return submitter.Config{
		Contract:  cfg.SwapContract,
		GasAmount: cfg.GasAmount,
		ValidFor:  cfg.ValidFor,
	}
}
