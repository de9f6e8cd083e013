package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ton-swap/config"
	"ton-swap/pkg/fetcher"
	"ton-swap/pkg/types"
	"ton-swap/pkg/wallet"
)

var (
	watchBalance  bool
	watchInterval time.Duration
)

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show the TON and USDT balances of an account",
	Long: `Show the native TON balance and the USDT jetton balance of any account.

Examples:
  ton-swap balance EQBynBO23ywHy_CgarY9NK9FTz0yDsG82PtcbSTQgGoXwiuA
  ton-swap balance 0:729c13b6df2c07cbf0a06ab63d34af454f3d320ec1bcd8fb5c6d24d0806a17c2 --watch
  ton-swap balance <address> --watch --interval 30s`,
	Args: cobra.ExactArgs(1),
	Run:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().BoolVarP(&watchBalance, "watch", "w", false, "Keep refreshing the balances")
	balanceCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Refresh interval when watching (defaults to poll_interval)")
}

func runBalance(cmd *cobra.Command, args []string) {
	owner := wallet.WatchOnly(strings.TrimSpace(args[0]))
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	logger := newLogger(cmd)
	defer logger.Sync()

	f := newBalanceFetcher(cfg, owner, logger)

	if watchBalance {
		watchBalances(cmd.Context(), cfg, f, owner, jsonOutput)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching balances..."
		s.Start()
	}

	snap, err := f.Refresh(cmd.Context())
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(snap)
		return
	}
	displayBalances(owner.Address(), snap, nil)
}

func watchBalances(ctx context.Context, cfg *config.Config, f *fetcher.BalanceFetcher, owner wallet.WatchOnly, jsonOutput bool) {
	interval := watchInterval
	if interval <= 0 {
		interval = cfg.PollInterval
	}

	if !jsonOutput {
		fmt.Printf("\nWatching balances of %s\n", color.CyanString(owner.Address()))
		fmt.Printf("Refreshing every %s. Press Ctrl+C to stop.\n\n", interval)
	}

	poller := fetcher.NewPoller(nil)
	err := poller.Start(ctx, fetcher.Task{
		Name:     "balances",
		Interval: interval,
		Run: func(ctx context.Context) error {
			snap, err := f.Refresh(ctx)
			if jsonOutput {
				printJSON(snap)
			} else {
				displayBalances(owner.Address(), snap, err)
			}
			return err
		},
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer poller.Stop()

	<-ctx.Done()
}

func displayBalances(address string, snap types.BalanceSnapshot, err error) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      BALANCES")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Address:      %s\n", color.CyanString(address))
	fmt.Printf("  TON:          %s\n", color.YellowString(snap.Native))
	fmt.Printf("  USDT:         %s\n", color.YellowString(snap.Stable))
	if snap.HasLending() {
		fmt.Printf("  Lent TON:     %s\n", snap.LentNative)
		fmt.Printf("  Lent USDT:    %s\n", snap.LentStable)
	}
	if !snap.UpdatedAt.IsZero() {
		fmt.Printf("  Last Updated: %s\n", snap.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if err != nil {
		color.Red("  Refresh failed, showing last known balances: %v", err)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
