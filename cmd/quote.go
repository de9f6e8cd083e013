package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ton-swap/config"
	"ton-swap/pkg/calculator"
	"ton-swap/pkg/parser"
	"ton-swap/pkg/types"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Convert an amount at the current TON price",
	Long: `Convert an amount between TON and USDT at the current TON price, without
sending anything.

Examples:
  ton-swap quote 10 TON to USDT
  ton-swap quote 25 USDT to TON`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) {
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

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching price..."
		s.Start()
	}
	price, _ := newPriceFetcher(cfg, logger).Refresh(cmd.Context())
	if !jsonOutput {
		s.Stop()
	}

	out, err := calculator.SourceToDest(req.Amount, price.Price, req.Direction())
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"source_amount":  req.Amount,
			"source_token":   req.Source.Symbol(),
			"dest_amount":    out,
			"dest_token":     req.Dest.Symbol(),
			"price":          price.Price.String(),
			"fallback_price": price.Fallback,
		})
		return
	}
	displayQuote(req, out, price)
}

func displayQuote(req *parser.Command, out string, price types.PriceQuote) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", req.Amount, color.YellowString(req.Source.Symbol()))
	fmt.Printf("  To:                ~%s %s\n", out, color.YellowString(req.Dest.Symbol()))
	fmt.Printf("  Rate:              1 TON = %s USDT\n", price.Price.StringFixed(2))
	if price.Fallback {
		color.Red("  Price source unavailable, quote uses the fallback price")
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
