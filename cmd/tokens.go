package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ton-swap/config"
	"ton-swap/pkg/asset"
	"ton-swap/pkg/client"
	"ton-swap/pkg/fetcher"
)

var holderAddr string

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the swappable tokens",
	Long: `List the tokens that can be swapped. With --holder, list every jetton held
by that account and mark the one used as the stable asset.

Examples:
  ton-swap list-tokens
  ton-swap list-tokens --holder EQBynBO23ywHy_CgarY9NK9FTz0yDsG82PtcbSTQgGoXwiuA`,
	Args: cobra.NoArgs,
	Run:  runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&holderAddr, "holder", "", "List the jettons held by this address")
}

type tokenInfo struct {
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
	Address  string `json:"address,omitempty"`
	Balance  string `json:"balance,omitempty"`
	Stable   bool   `json:"stable"`
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var tokens []tokenInfo
	if holderAddr == "" {
		for _, a := range asset.All {
			t := tokenInfo{Symbol: a.Symbol(), Decimals: a.Decimals()}
			if !a.IsNative() {
				t.Address = cfg.StableMaster
				t.Stable = true
			}
			tokens = append(tokens, t)
		}
	} else {
		tokens, err = fetchHeldTokens(cmd, cfg, jsonOutput)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	if jsonOutput {
		printJSON(tokens)
		return
	}
	displayTokens(tokens)
}

func fetchHeldTokens(cmd *cobra.Command, cfg *config.Config, jsonOutput bool) ([]tokenInfo, error) {
	apiClient := client.NewTonAPIClient(cfg.TonAPIURL, cfg.TonAPIKey, nil)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching jettons..."
		s.Start()
	}

	balances, err := apiClient.GetJettonBalances(cmd.Context(), holderAddr)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return nil, err
	}

	tokens := make([]tokenInfo, 0, len(balances))
	for _, b := range balances {
		t := tokenInfo{
			Address: b.MasterAddress(),
			Balance: string(b.Balance),
			Stable:  fetcher.SameAddress(b.MasterAddress(), cfg.StableMaster),
		}
		if b.Jetton != nil {
			t.Symbol = b.Jetton.Symbol
			t.Decimals = int32(b.Jetton.Decimals)
		}
		if t.Stable {
			t.Symbol = asset.Stable.Symbol()
			t.Decimals = asset.Stable.Decimals()
		}
		if units, err := decimal.NewFromString(t.Balance); err == nil {
			t.Balance = units.Shift(-t.Decimals).String()
		}
		tokens = append(tokens, t)
	}

	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Stable != tokens[j].Stable {
			return tokens[i].Stable
		}
		return tokens[i].Symbol < tokens[j].Symbol
	})
	return tokens, nil
}

func displayTokens(tokens []tokenInfo) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                   TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	for _, t := range tokens {
		addr := t.Address
		if addr == "" {
			addr = "native"
		}
		// Truncate address if too long
		if len(addr) > 40 {
			addr = addr[:37] + "..."
		}

		marker := " "
		if t.Stable {
			marker = color.GreenString("*")
		}
		fmt.Printf("%s %-10s  %2d decimals  %s", marker, color.YellowString(t.Symbol), t.Decimals, color.HiBlackString(addr))
		if t.Balance != "" {
			fmt.Printf("  balance %s", t.Balance)
		}
		fmt.Println()
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens (* = swappable stable asset)\n\n", len(tokens))
}
