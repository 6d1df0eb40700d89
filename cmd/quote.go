package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-swap/config"
	"dex-swap/pkg/fees"
	"dex-swap/pkg/logutils"
	"dex-swap/pkg/swap"
	"dex-swap/pkg/types"
)

var quoteSlippage float64

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Quote a swap without executing it",
	Long: `Resolve a route, its pool fees and the slippage-bounded amounts for a swap.

Examples:
  dex-swap quote 100 USDC to WETH
  dex-swap quote USDC for 0.5 WETH --slippage 1`,
	Args: cobra.MinimumNArgs(3),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().Float64Var(&quoteSlippage, "slippage", -1, "Slippage tolerance in percent (default from config)")
}

// review is a quoted swap ready to be shown to the user
type review struct {
	Request *types.SwapRequest
	Quote   swap.QuoteState
	Fees    []fees.HopFee
	Values  swap.CalculatedValues
}

// buildReview quotes the pair and aggregates its fees
func buildReview(ctx context.Context, cfg *config.Config, args []string, slippage float64) (*review, error) {
	req, from, to, err := resolvePair(cfg, args)
	if err != nil {
		return nil, err
	}

	api := newAPIClient(cfg)
	book := swap.NewQuoteBook(newResolver(cfg, api), from, to)
	if req.Direction == types.ExactOutput {
		book.EditOutput(req.Amount)
	} else {
		book.EditInput(req.Amount)
	}

	state, err := book.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	agg := fees.NewAggregator(api, cfg.ChainID, cfg.FeeCacheTTL, logutils.ZapLogger())
	defer agg.Stop()

	hopFees, err := agg.ResolveFees(ctx, state.Route)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool fees: %w", err)
	}

	values := swap.Calculate(swap.Inputs{
		From:            from,
		To:              to,
		Direction:       req.Direction,
		InputAmount:     state.InputAmount,
		OutputAmount:    state.OutputAmount,
		Fees:            hopFees,
		SlippagePercent: slippage,
		PriceImpact:     state.PriceImpact,
	})

	return &review{Request: req, Quote: state, Fees: hopFees, Values: values}, nil
}

func slippageOrDefault(flag float64, cfg *config.Config) float64 {
	if flag < 0 {
		return cfg.Slippage
	}
	return flag
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	s := newSpinner("Fetching quote...", !jsonOutput)
	rv, err := buildReview(cmd.Context(), cfg, args, slippageOrDefault(quoteSlippage, cfg))
	s.Stop()

	if err != nil {
		printSwapError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"source_token":     rv.Quote.From.Symbol,
			"source_amount":    rv.Quote.InputAmount,
			"dest_token":       rv.Quote.To.Symbol,
			"dest_amount":      rv.Quote.OutputAmount,
			"direction":        rv.Request.Direction,
			"route":            rv.Quote.Route.TouchedPools(),
			"effective_fee":    rv.Values.EffectiveFee,
			"minimum_received": rv.Values.MinimumReceived,
			"maximum_sold":     rv.Values.MaximumSold,
			"price_impact":     rv.Values.PriceImpact,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayReview(rv)
}

func displayReview(rv *review) {
	v := rv.Values
	q := rv.Quote

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s", q.InputAmount, color.YellowString(q.From.Symbol))
	if !v.InputUSD.IsZero() {
		fmt.Printf("  (~$%s)", v.InputUSD.StringFixed(2))
	}
	fmt.Printf("\n  To:                %s %s", q.OutputAmount, color.YellowString(q.To.Symbol))
	if !v.OutputUSD.IsZero() {
		fmt.Printf("  (~$%s)", v.OutputUSD.StringFixed(2))
	}
	fmt.Println()

	fmt.Printf("  Route:             %s\n", color.CyanString(q.Route.String()))
	for _, line := range v.Fees {
		fmt.Printf("    %-18s %s\n", line.Label, line.Fee)
	}
	if len(v.Fees) > 1 {
		fmt.Printf("  Total Fee:         %s\n", v.EffectiveFee)
	}
	if v.PriceImpact != 0 {
		fmt.Printf("  Price Impact:      %.2f%%\n", v.PriceImpact)
	}
	fmt.Printf("  Slippage:          %v%%\n", v.SlippagePercent)
	if v.MinimumReceived != "" {
		fmt.Printf("  Minimum Received:  %s %s\n", v.MinimumReceived, q.To.Symbol)
	}
	if v.MaximumSold != "" {
		fmt.Printf("  Maximum Sold:      %s %s\n", v.MaximumSold, q.From.Symbol)
	}
	if v.Degraded {
		color.Yellow("  The slippage bound rounds to the quoted amount at this size.")
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// printSwapError prints a classified error with its code and hint
func printSwapError(err error) {
	e := swap.Classify(err)
	fmt.Printf("\n%s %s\n", color.RedString("Error [%s]:", e.Code), err)
	if hint := e.Hint(); hint != "" {
		fmt.Printf("%s %s\n", color.YellowString("Hint:"), hint)
	}
	fmt.Println()
}
