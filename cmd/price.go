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
	"ton-swap/pkg/types"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Show the current TON price in USD",
	Long: `Show the current TON price used for conversions. When the price source is
unreachable the configured fallback price is shown and marked as such.`,
	Args: cobra.NoArgs,
	Run:  runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)
}

func runPrice(cmd *cobra.Command, args []string) {
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

	quote, err := newPriceFetcher(cfg, logger).Refresh(cmd.Context())
	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		printJSON(quote)
		return
	}
	displayPrice(quote, err)
}

func displayPrice(quote types.PriceQuote, err error) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      TON PRICE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  1 TON = %s USDT\n", color.YellowString(quote.Price.StringFixed(2)))
	if quote.Fallback {
		color.Red("  Price source unavailable, using fallback price")
		if err != nil {
			fmt.Printf("  Reason: %v\n", err)
		}
	} else {
		fmt.Printf("  Last Updated: %s\n", quote.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
