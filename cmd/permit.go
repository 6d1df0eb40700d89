package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-swap/config"
	"dex-swap/pkg/amount"
	"dex-swap/pkg/logutils"
	"dex-swap/pkg/permit"
)

var permitOwner string

var permitCmd = &cobra.Command{
	Use:   "permit <amount> <token>",
	Short: "Show the Permit2 payload a swap would sign",
	Long: `Ask the swap API for the Permit2 payload that lets the router pull an
amount of a token. Nothing is signed.

Examples:
  dex-swap permit 100 USDC
  dex-swap permit 100 USDC --owner 0x1234...`,
	Args: cobra.ExactArgs(2),
	Run:  runPermit,
}

func init() {
	rootCmd.AddCommand(permitCmd)

	permitCmd.Flags().StringVar(&permitOwner, "owner", "", "Owner address (default: address of the configured private key)")
}

func ownerAddress(cfg *config.Config) (common.Address, error) {
	if permitOwner != "" {
		if !common.IsHexAddress(permitOwner) {
			return common.Address{}, fmt.Errorf("invalid owner address: %s", permitOwner)
		}
		return common.HexToAddress(permitOwner), nil
	}
	if cfg.PrivateKey == "" {
		return common.Address{}, fmt.Errorf("set --owner or configure private_key")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func runPermit(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	token, err := resolveToken(cfg, args[1])
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if token.IsNative() {
		printSuccess("Native tokens are sent with the swap; no permit is needed.")
		return
	}
	units, err := amount.ToSmallestUnits(args[0], token.Decimals)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	owner, err := ownerAddress(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	manager := permit.NewManager(newAPIClient(cfg), logutils.ZapLogger())

	s := newSpinner("Preparing permit...", !jsonOutput)
	decision, err := manager.Fetch(cmd.Context(), permit.Request{
		Owner:    owner,
		Token:    token,
		Spender:  common.HexToAddress(cfg.RouterAddress),
		ChainID:  cfg.ChainID,
		AmountIn: units.String(),
	})
	s.Stop()
	if err != nil {
		printSwapError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(decision.Payload, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if !decision.NeedsPermit() {
		printSuccess(color.GreenString("The router can already pull %s %s; no permit is needed.", args[0], token.Symbol))
		return
	}

	if _, err := decision.Payload.TypedData(); err != nil {
		printError(err)
		os.Exit(1)
	}

	msg := decision.Payload.Message
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     PERMIT2 PAYLOAD")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Owner:        %s\n", owner.Hex())
	fmt.Printf("  Token:        %s %s\n", color.YellowString(token.Symbol), msg.Details.Token.Hex())
	fmt.Printf("  Spender:      %s\n", msg.Spender.Hex())
	fmt.Printf("  Amount:       %s\n", amount.FormatFromSmallestUnits(msg.Details.Amount.Int, token.Decimals))
	fmt.Printf("  Nonce:        %s\n", msg.Details.Nonce.String())
	fmt.Printf("  Expiration:   %s\n", unixTime(msg.Details.Expiration.Int64()))
	fmt.Printf("  Sig Deadline: %s\n", unixTime(msg.SigDeadline.Int64()))
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func unixTime(sec int64) string {
	return time.Unix(sec, 0).Format("2006-01-02 15:04:05")
}
