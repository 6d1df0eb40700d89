package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-swap/config"
	"dex-swap/pkg/amount"
	"dex-swap/pkg/history"
	"dex-swap/pkg/wallet"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a swap transaction",
	Long: `Look up a swap or approval transaction and its receipt.

Examples:
  dex-swap status 0x1234...abcd
  dex-swap status 0x1234...abcd --watch
  dex-swap status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch until the transaction is mined")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if !isTxHash(args[0]) {
		printError(fmt.Errorf("invalid transaction hash: %s", args[0]))
		os.Exit(1)
	}
	hash := common.HexToHash(args[0])

	cfg := config.Get()
	evm, err := newWallet(cmd.Context(), cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer evm.Close()

	if watchStatus {
		watchTxStatus(cmd.Context(), evm, cfg, hash, jsonOutput)
	} else {
		checkTxStatus(cmd.Context(), evm, cfg, hash, jsonOutput)
	}
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

func checkTxStatus(ctx context.Context, evm *wallet.EVMWallet, cfg *config.Config, hash common.Hash, jsonOutput bool) {
	s := newSpinner("Checking transaction status...", !jsonOutput)
	info, err := evm.TransactionInfo(ctx, hash)
	s.Stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(info, cfg)
	}
}

func watchTxStatus(ctx context.Context, evm *wallet.EVMWallet, cfg *config.Config, hash common.Hash, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s\n", color.CyanString(hash.Hex()))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		info, err := evm.TransactionInfo(ctx, hash)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayStatus(info, cfg)
			if info.Mined {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func displayStatus(info *wallet.TxInfo, cfg *config.Config) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Tx Hash:         %s\n", color.CyanString(info.Hash.Hex()))
	fmt.Printf("  Status:          %s\n", getColoredStatus(info))
	fmt.Printf("  From:            %s\n", info.From.Hex())
	if info.To != nil {
		fmt.Printf("  To:              %s\n", info.To.Hex())
	}
	if info.Value != nil && info.Value.Sign() > 0 {
		fmt.Printf("  Value:           %s ETH\n", amount.FormatFromSmallestUnits(info.Value, 18))
	}
	fmt.Printf("  Nonce:           %d\n", info.Nonce)
	if info.Mined {
		fmt.Printf("  Block:           %d\n", info.BlockNumber)
		fmt.Printf("  Gas Used:        %d / %d\n", info.GasUsed, info.GasLimit)
	}

	// Swaps made by this CLI carry their amounts in the local history
	if store, err := history.NewStorage(cfg.HistoryFile); err == nil {
		if rec, err := store.Get(info.Hash.Hex()); err == nil {
			fmt.Printf("  Swap:            %s %s -> %s %s\n", rec.FromAmount, rec.FromSymbol, rec.ToAmount, rec.ToSymbol)
			if rec.ExplorerURL != "" {
				fmt.Printf("  Explorer:        %s\n", rec.ExplorerURL)
			}
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(info *wallet.TxInfo) string {
	switch {
	case info.Pending:
		return color.YellowString("PENDING")
	case info.Mined && info.Status == 1:
		return color.GreenString("SUCCESS")
	case info.Mined:
		return color.RedString("REVERTED")
	default:
		return color.MagentaString("UNKNOWN")
	}
}
