package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ton-swap/config"
	"ton-swap/pkg/calculator"
	"ton-swap/pkg/exchange"
	"ton-swap/pkg/parser"
	"ton-swap/pkg/types"
	"ton-swap/pkg/wallet"
)

var (
	noConfirm      bool
	connectTimeout time.Duration
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap TON and USDT through the connected wallet",
	Long: `Connect a wallet over TON Connect and send a swap transaction for it to sign.

The destination amount is quoted at the current TON price and sent as the
minimum amount to receive. Nothing is signed locally: the wallet app shows the
transaction and asks for approval.

Examples:
  ton-swap swap 1.5 TON to USDT
  ton-swap swap 20 USDT to TON --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 5*time.Minute, "How long to wait for the wallet to connect")
}

func runSwap(cmd *cobra.Command, args []string) {
	req, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	logger := newLogger(cmd)
	defer logger.Sync()

	ctx := cmd.Context()
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
	if err := ex.Start(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}
	defer ex.Stop()

	address := ex.Address()
	if address == "" {
		printError(wallet.ErrNotConnected)
		os.Exit(1)
	}

	price, _ := ex.RefreshPrice(ctx)
	if ex.Form().Direction != req.Direction() {
		ex.Toggle()
	}
	if err := ex.SetSource(req.Amount); err != nil {
		printError(err)
		os.Exit(1)
	}

	form := ex.Form()
	intent, err := form.Intent()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		displaySwap(address, intent, price)
	}

	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			return
		}
	}

	boc, err := sendSwap(ctx, ex, jsonOutput)
	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{"status": "failed", "error": err.Error()})
		} else {
			printError(err)
		}
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"status":          "submitted",
			"source_amount":   intent.SourceAmount,
			"source_token":    intent.Source.Symbol(),
			"min_dest_amount": intent.MinDestAmount,
			"dest_token":      intent.Dest.Symbol(),
			"boc":             boc,
		})
		return
	}
	color.Green("\n✓ Swap sent by the wallet")
	fmt.Printf("  Message BOC: %s\n\n", color.HiBlackString(boc))
}

func sendSwap(ctx context.Context, ex *exchange.Exchange, quiet bool) (string, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !quiet {
		s.Suffix = " Confirm the transaction in your wallet..."
		s.Start()
	}
	boc, err := ex.Swap(ctx)
	if !quiet {
		s.Stop()
	}
	if errors.Is(err, wallet.ErrUserRejected) {
		return "", fmt.Errorf("transaction was rejected in the wallet")
	}
	return boc, err
}

func displaySwap(address string, intent types.SwapIntent, price types.PriceQuote) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                        SWAP")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Wallet:            %s\n", color.CyanString(address))
	fmt.Printf("  From:              %s %s\n", intent.SourceAmount, color.YellowString(intent.Source.Symbol()))
	fmt.Printf("  To (minimum):      %s %s\n", intent.MinDestAmount, color.YellowString(intent.Dest.Symbol()))
	fmt.Printf("  Rate:              1 TON = %s USDT\n", price.Price.StringFixed(2))
	if price.Fallback {
		color.Red("  Price source unavailable, quote uses the fallback price")
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// formLine renders the two amount fields of the form
func formLine(f calculator.Form) string {
	src, dst := f.Source, f.Dest
	if src == "" {
		src = "-"
	}
	if dst == "" {
		dst = "-"
	}
	return fmt.Sprintf("%s %s -> %s %s",
		src, color.YellowString(f.Direction.Source().Symbol()),
		dst, color.YellowString(f.Direction.Dest().Symbol()))
}
