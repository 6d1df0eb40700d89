package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dex-swap/config"
	"dex-swap/pkg/client"
	"dex-swap/pkg/logutils"
	"dex-swap/pkg/types"
)

var (
	filterChain  string
	filterSymbol string
	showOneClick bool
	showBalances bool
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the tokens the CLI can swap",
	Long: `List the tokens configured under 'tokens' in .dex-swap.yaml, optionally
with wallet balances. With --oneclick, list the tokens the 1Click price API knows.

Examples:
  dex-swap list-tokens
  dex-swap list-tokens --balances
  dex-swap list-tokens --oneclick --chain eth --symbol USD`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter 1Click tokens by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().BoolVar(&showOneClick, "oneclick", false, "List 1Click API tokens instead of configured ones")
	tokensCmd.Flags().BoolVar(&showBalances, "balances", false, "Read balances from the configured wallet")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	if showOneClick {
		listOneClickTokens(cmd, cfg, jsonOutput)
		return
	}

	symbols := make([]string, 0, len(cfg.Tokens))
	for symbol := range cfg.Tokens {
		if filterSymbol == "" || strings.Contains(strings.ToUpper(symbol), strings.ToUpper(filterSymbol)) {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	tokens := make([]types.Token, 0, len(symbols))
	for _, symbol := range symbols {
		t, err := resolveToken(cfg, symbol)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		tokens = append(tokens, t)
	}

	if showBalances {
		evm, err := newWallet(cmd.Context(), cfg)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		defer evm.Close()

		for i := range tokens {
			if err := loadBalance(cmd.Context(), evm, &tokens[i]); err != nil {
				logutils.ZapLogger().Warn("failed to read balance", zap.String("token", tokens[i].Symbol), zap.Error(err))
			}
		}
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(tokens, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(tokens) == 0 {
		fmt.Println("\nNo tokens configured. Add them under 'tokens' in .dex-swap.yaml.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              CONFIGURED TOKENS")
	fmt.Println(strings.Repeat("=", 90) + "\n")
	for _, t := range tokens {
		line := fmt.Sprintf("  %-10s  %2d decimals  %s", color.YellowString(t.Symbol), t.Decimals, color.HiBlackString(t.Address.Hex()))
		if t.Balance != "" {
			line += "  " + color.CyanString(t.Balance)
		}
		fmt.Println(line)
	}
	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens on chain %d\n\n", len(tokens), cfg.ChainID)
}

func listOneClickTokens(cmd *cobra.Command, cfg *config.Config, jsonOutput bool) {
	oc := client.NewOneClickClient(cfg.OneClick.JWTToken)

	s := newSpinner("Fetching supported tokens...", !jsonOutput)
	tokens, err := oc.SupportedTokens(cmd.Context())
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := make([]oneclick.TokenResponse, 0, len(tokens))
	for _, token := range tokens {
		if filterChain != "" && !strings.EqualFold(token.GetBlockchain(), filterChain) {
			continue
		}
		if filterSymbol != "" && !strings.Contains(strings.ToUpper(token.GetSymbol()), strings.ToUpper(filterSymbol)) {
			continue
		}
		filtered = append(filtered, token)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayOneClickTokens(filtered)
	}
}

func displayOneClickTokens(tokens []oneclick.TokenResponse) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            1CLICK TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	tokensByChain := make(map[string][]oneclick.TokenResponse)
	for _, token := range tokens {
		chain := token.GetBlockchain()
		tokensByChain[chain] = append(tokensByChain[chain], token)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			address := token.GetContractAddress()
			if len(address) > 40 {
				address = address[:37] + "..."
			}
			fmt.Printf("  %-10s  %2.0f decimals  %s\n",
				color.YellowString(token.GetSymbol()),
				float64(token.GetDecimals()),
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
