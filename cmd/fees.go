package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-swap/config"
	"dex-swap/pkg/amount"
	"dex-swap/pkg/fees"
	"dex-swap/pkg/logutils"
	"dex-swap/pkg/types"
)

var feesCmd = &cobra.Command{
	Use:   "fees <token> <token> [<token>...]",
	Short: "Show the dynamic fees of a pool path",
	Long: `Show the current dynamic fee of every pool along a path of tokens and the
combined fee of the whole path. Any pool without a fee fails the whole path.

Examples:
  dex-swap fees USDC WETH
  dex-swap fees USDC WETH DAI`,
	Args: cobra.MinimumNArgs(2),
	Run:  runFees,
}

func init() {
	rootCmd.AddCommand(feesCmd)
}

func runFees(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	tokens := make([]types.Token, 0, len(args))
	for _, symbol := range args {
		t, err := resolveToken(cfg, symbol)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		tokens = append(tokens, t)
	}

	path := types.SwapRoute{}
	for i := 0; i+1 < len(tokens); i++ {
		path.Hops = append(path.Hops, types.PoolHop{
			Token0: tokens[i].Address,
			Token1: tokens[i+1].Address,
			Name:   tokens[i].Symbol + "/" + tokens[i+1].Symbol,
		})
	}

	agg := fees.NewAggregator(newAPIClient(cfg), cfg.ChainID, cfg.FeeCacheTTL, logutils.ZapLogger())
	defer agg.Stop()

	s := newSpinner("Fetching pool fees...", !jsonOutput)
	hopFees, err := agg.ResolveFees(cmd.Context(), path)
	s.Stop()
	if err != nil {
		printSwapError(err)
		os.Exit(1)
	}

	effective := fees.EffectiveFeeBps(hopFees)
	if jsonOutput {
		pools := make([]map[string]interface{}, 0, len(hopFees))
		for _, f := range hopFees {
			pools = append(pools, map[string]interface{}{"pool": f.Hop.Label(), "fee_bps": f.FeeBps})
		}
		jsonData, _ := json.MarshalIndent(map[string]interface{}{
			"pools":             pools,
			"effective_fee_bps": effective,
		}, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      POOL FEES")
	fmt.Println(strings.Repeat("=", 60) + "\n")
	for _, f := range hopFees {
		fmt.Printf("  %-20s %s\n", color.YellowString(f.Hop.Label()), amount.FormatBps(f.FeeBps))
	}
	if len(hopFees) > 1 {
		fmt.Printf("\n  %-20s %s\n", "Total", color.CyanString(amount.FormatBps(effective)))
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
