package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dex-swap/config"
	"dex-swap/pkg/logutils"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dex-swap",
	Short: "A CLI for swapping ERC-20 tokens through a DEX router",
	Long: `dex-swap quotes and executes token swaps through a DEX router using Permit2.
Approvals, permit signatures and the swap transaction are each confirmed
before they are sent.

Examples:
  dex-swap quote 100 USDC to WETH
  dex-swap swap 100 USDC to WETH
  dex-swap swap USDC for 0.5 WETH --slippage 1
  dex-swap status <tx-hash>
  dex-swap history`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFrom(cfgFile)
		if err != nil {
			return err
		}

		level := cfg.LogLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		logger, err := logutils.New(level, cfg.LogFormat)
		if err != nil {
			return err
		}
		logutils.SetLogger(logger)
		logger.Debug("configuration loaded",
			zap.String("api", cfg.APIURL),
			zap.Uint64("chainId", cfg.ChainID),
			zap.Int("tokens", len(cfg.Tokens)))
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	defer func() { _ = logutils.ZapLogger().Sync() }()
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.dex-swap.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
