package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-swap/config"
	"dex-swap/pkg/client"
	"dex-swap/pkg/parser"
)

var (
	priceChain     string
	priceRecipient string
)

var priceCmd = &cobra.Command{
	Use:   "price <amount> <source-token> to <dest-token>",
	Short: "Compare with an indicative price from the 1Click API",
	Long: `Fetch a dry quote from the NEAR Intents 1Click API as a reference price for a
swap. No deposit address is reserved and nothing is executed.

Examples:
  dex-swap price 100 USDC to ETH
  dex-swap price USDC for 1 ETH --chain eth`,
	Args: cobra.MinimumNArgs(3),
	Run:  runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)

	priceCmd.Flags().StringVar(&priceChain, "chain", "eth", "Blockchain both tokens are looked up on")
	priceCmd.Flags().StringVar(&priceRecipient, "recipient", "", "Address used for the dry quote (default: owner of the configured private key)")
}

func runPrice(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	req, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	recipient := priceRecipient
	if recipient == "" {
		owner, err := ownerAddress(cfg)
		if err != nil {
			printError(fmt.Errorf("set --recipient: %w", err))
			os.Exit(1)
		}
		recipient = owner.Hex()
	}

	oc := client.NewOneClickClient(cfg.OneClick.JWTToken)

	s := newSpinner("Fetching indicative price...", !jsonOutput)
	price, err := oc.IndicativeQuote(cmd.Context(), *req, priceChain, recipient)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(price, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                   INDICATIVE PRICE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  From:            %s %s (%s)\n", price.AmountIn, color.YellowString(price.FromSymbol), price.FromBlockchain)
	fmt.Printf("  To:              ~%s %s (%s)\n", price.AmountOut, color.YellowString(price.ToSymbol), price.ToBlockchain)
	fmt.Printf("  Estimated Time:  %.0f seconds\n", price.TimeEstimate)
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
