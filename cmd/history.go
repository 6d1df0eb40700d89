package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-swap/config"
	"dex-swap/pkg/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List completed swaps",
	Long: `List swaps confirmed by this CLI, newest first.

Examples:
  dex-swap history
  dex-swap history --limit 5`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of swaps to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	store, err := history.NewStorage(cfg.HistoryFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	records := store.List(historyLimit)
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(records) == 0 {
		fmt.Println("\nNo swaps recorded yet.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                  SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 90))

	for _, r := range records {
		fmt.Printf("\n  %s  %s %s -> %s %s\n",
			color.HiBlackString(r.CompletedAt.Local().Format("2006-01-02 15:04:05")),
			r.FromAmount, color.YellowString(r.FromSymbol),
			r.ToAmount, color.YellowString(r.ToSymbol))
		fmt.Printf("    %s\n", color.CyanString(r.TxHash))
		if len(r.TouchedPools) > 0 {
			fmt.Printf("    via %s\n", strings.Join(r.TouchedPools, " -> "))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nShowing %d of %d swaps (%s)\n\n", len(records), store.Count(), store.GetFilePath())
}
