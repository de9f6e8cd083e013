package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ton-swap/config"
	"ton-swap/pkg/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List swaps sent from this machine",
	Long: `List the swaps submitted or attempted through ton-swap, newest first.
With an id (or a unique id prefix) show the details of one swap.

Examples:
  ton-swap history
  ton-swap history --limit 5
  ton-swap history 3f2a9c`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of swaps to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if cfg.HistoryFile == "" {
		printError(fmt.Errorf("swap history is disabled, set history_file to enable it"))
		os.Exit(1)
	}

	store, err := history.NewStore(cfg.HistoryFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if len(args) == 1 {
		record, err := store.Get(args[0])
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(record)
			return
		}
		displayRecord(record)
		return
	}

	records := store.List()
	if historyLimit > 0 && len(records) > historyLimit {
		records = records[:historyLimit]
	}

	if jsonOutput {
		printJSON(records)
		return
	}

	if len(records) == 0 {
		printSuccess("No swaps recorded yet.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                                 SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n%-20s %-12s %-10s %-14s %-14s %s\n", "TIME", "PAIR", "STATUS", "AMOUNT", "MIN RECEIVED", "ID")
	fmt.Println(strings.Repeat("-", 80))

	for _, r := range records {
		fmt.Printf("%-20s %-12s %-10s %-14s %-14s %s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Source+"->"+r.Dest,
			coloredStatus(r.Status),
			r.SourceAmount,
			r.MinDestAmount,
			color.HiBlackString(r.ID))
		if r.Error != "" {
			fmt.Printf("  %s\n", color.RedString(r.Error))
		}
	}

	fmt.Printf("\nShowing %d of %d swaps (%s)\n\n", len(records), store.Count(), store.FilePath())
}

func displayRecord(r history.Record) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                       SWAP DETAILS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nID:            %s\n", r.ID)
	fmt.Printf("Time:          %s\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("Pair:          %s -> %s\n", r.Source, r.Dest)
	fmt.Printf("Status:        %s\n", coloredStatus(r.Status))
	fmt.Printf("Amount:        %s %s\n", r.SourceAmount, r.Source)
	fmt.Printf("Min received:  %s %s\n", r.MinDestAmount, r.Dest)
	if r.Result != "" {
		fmt.Printf("Message BOC:   %s\n", color.HiBlackString(r.Result))
	}
	if r.Error != "" {
		fmt.Printf("Error:         %s\n", color.RedString(r.Error))
	}
	fmt.Println()
}

func coloredStatus(status history.Status) string {
	s := strings.ToUpper(string(status))
	switch status {
	case history.StatusSubmitted:
		return color.GreenString("%-10s", s)
	case history.StatusFailed:
		return color.RedString("%-10s", s)
	default:
		return fmt.Sprintf("%-10s", s)
	}
}
