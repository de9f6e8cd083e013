package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ton-swap/config"
	"ton-swap/pkg/events"
	"ton-swap/pkg/exchange"
	"ton-swap/pkg/wallet"
)

const sessionHelp = `Commands inside the session:
  <amount> | source <amount>   set the amount to send
  dest <amount>                set the amount to receive
  toggle                       swap direction (TON->USDT / USDT->TON)
  clear                        clear both amounts
  swap                         send the swap to the wallet for signing
  balance                      refresh balances now
  price                        refresh the price now
  status                       show wallet, balances, price and amounts
  disconnect                   disconnect the wallet and quit
  quit                         leave the session`

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive swap session",
	Long: `Connect a wallet and keep an interactive session open. Balances and the TON
price refresh in the background while amounts are entered.

` + sessionHelp,
	Args: cobra.NoArgs,
	Run:  runInteractive,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 5*time.Minute, "How long to wait for the wallet to connect")
}

func runInteractive(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	logger := newLogger(cmd)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	conn, err := connectWallet(ctx, cfg, logger, connectTimeout)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer conn.Close()

	ex, err := newExchange(cfg, conn, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	updates := ex.Updates()
	if err := ex.Start(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}
	defer ex.Stop()

	go printUpdates(updates, cancel)

	address := ex.Address()
	if address == "" {
		printError(wallet.ErrNotConnected)
		os.Exit(1)
	}
	color.Green("\nWallet connected: %s", address)
	fmt.Println("Type 'help' for commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, ex, strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

// handleLine executes one session command and reports whether to quit.
func handleLine(ctx context.Context, ex *exchange.Exchange, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true
	case "help":
		fmt.Println(sessionHelp)
	case "source", "dest":
		value := ""
		if len(fields) > 1 {
			value = fields[1]
		}
		var err error
		if strings.EqualFold(fields[0], "source") {
			err = ex.SetSource(value)
		} else {
			err = ex.SetDest(value)
		}
		if err != nil {
			color.Red("  %v", err)
		}
		fmt.Printf("  %s\n", formLine(ex.Form()))
	case "toggle":
		ex.Toggle()
		fmt.Printf("  %s\n", formLine(ex.Form()))
	case "clear":
		ex.ClearForm()
		fmt.Printf("  %s\n", formLine(ex.Form()))
	case "swap":
		boc, err := sendSwap(ctx, ex, false)
		if err != nil {
			color.Red("  Swap failed: %v", err)
			fmt.Printf("  %s\n", formLine(ex.Form()))
			return false
		}
		color.Green("  ✓ Swap sent by the wallet")
		fmt.Printf("  Message BOC: %s\n", color.HiBlackString(boc))
	case "balance":
		if _, err := ex.RefreshBalances(ctx); err != nil {
			color.Red("  %v", err)
		}
	case "price":
		_, _ = ex.RefreshPrice(ctx)
	case "status":
		printSessionStatus(ex)
	case "disconnect":
		if err := ex.Disconnect(ctx); err != nil {
			color.Red("  %v", err)
		}
		return true
	default:
		if err := ex.SetSource(fields[0]); err != nil {
			color.Red("  Unknown command or amount '%s' (type 'help')", fields[0])
			return false
		}
		fmt.Printf("  %s\n", formLine(ex.Form()))
	}
	return false
}

func printSessionStatus(ex *exchange.Exchange) {
	address := ex.Address()
	if address == "" {
		address = "not connected"
	}
	b := ex.Balances()
	p := ex.Price()

	fmt.Printf("  Wallet:  %s\n", color.CyanString(address))
	fmt.Printf("  TON:     %s\n", b.Native)
	fmt.Printf("  USDT:    %s\n", b.Stable)
	fmt.Printf("  Price:   1 TON = %s USDT", p.Price.StringFixed(2))
	if p.Fallback {
		fmt.Print(color.RedString(" (fallback)"))
	}
	fmt.Println()
	fmt.Printf("  Amounts: %s\n", formLine(ex.Form()))
	if err := ex.BalanceError(); err != nil {
		color.Red("  Last balance refresh failed: %v", err)
	}
	if err := ex.SwapError(); err != nil {
		color.Red("  Last swap failed: %v", err)
	}
}

// printUpdates shows background refreshes and stops the session when the
// wallet disconnects.
func printUpdates(updates chan events.Update, cancel context.CancelFunc) {
	connected := true
	for u := range updates {
		switch u.Kind {
		case events.KindBalances:
			if u.Balances != nil {
				fmt.Printf("\n  [balances] TON %s | USDT %s\n", u.Balances.Native, u.Balances.Stable)
			}
		case events.KindPrice:
			if u.Price != nil {
				fmt.Printf("\n  [price] 1 TON = %s USDT\n", u.Price.Price.StringFixed(2))
			}
		case events.KindError:
			color.Red("\n  [error] %s", u.Err)
		case events.KindWallet:
			if u.Wallet == "" && connected {
				color.Yellow("\n  Wallet disconnected, ending session.")
				connected = false
				cancel()
			}
		}
	}
}
