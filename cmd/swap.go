package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dex-swap/config"
	"dex-swap/pkg/fees"
	"dex-swap/pkg/history"
	"dex-swap/pkg/logutils"
	"dex-swap/pkg/permit"
	"dex-swap/pkg/swap"
	"dex-swap/pkg/types"
	"dex-swap/pkg/wallet"
)

var (
	swapSlippage float64
	noConfirm    bool
	exactApprove bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap tokens through the DEX router",
	Long: `Quote and execute a swap. The swap runs in steps:

  1. allowance check, and an ERC-20 approval of Permit2 when it is too low
  2. a Permit2 signature allowing the router to pull the input token
  3. the router transaction, built by the swap API

Each approval, signature and transaction is confirmed before it is sent.
A declined prompt steps back so the same step can be confirmed again.

Examples:
  dex-swap swap 100 USDC to WETH
  dex-swap swap USDC for 0.5 WETH --slippage 1
  dex-swap swap 1 ETH to USDC --yes`,
	Args: cobra.MinimumNArgs(3),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().Float64Var(&swapSlippage, "slippage", -1, "Slippage tolerance in percent (default from config)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip all confirmation prompts")
	swapCmd.Flags().BoolVar(&exactApprove, "exact-approval", false, "Approve only the amount needed instead of an unlimited allowance")
}

func runSwap(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	cfg := config.Get()
	logger := logutils.ZapLogger()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if cfg.RouterAddress == "" {
		printError(fmt.Errorf("router not configured. Set DEX_SWAP_ROUTER or add it to .dex-swap.yaml"))
		os.Exit(1)
	}
	slippage := slippageOrDefault(swapSlippage, cfg)

	s := newSpinner("Fetching quote...", !jsonOutput)
	rv, err := buildReview(ctx, cfg, args, slippage)
	s.Stop()
	if err != nil {
		printSwapError(err)
		os.Exit(1)
	}
	if !jsonOutput {
		displayReview(rv)
	}

	evm, err := newWallet(ctx, cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer evm.Close()

	from := rv.Quote.From
	if err := loadBalance(ctx, evm, &from); err != nil {
		logger.Warn("failed to read balance", zap.String("token", from.Symbol), zap.Error(err))
	}

	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	orch, cleanup := newOrchestrator(cfg, evm, newEventPrinter(jsonOutput), logger)
	defer cleanup()

	counter := rv.Quote.OutputAmount
	if rv.Request.Direction == types.ExactOutput {
		counter = rv.Quote.InputAmount
	}
	orch.Prepare(swap.Attempt{
		From:          from,
		To:            rv.Quote.To,
		Direction:     rv.Request.Direction,
		Amount:        rv.Request.Amount,
		CounterAmount: counter,
		Slippage:      slippage,
	})

	if err := driveSwap(ctx, orch, jsonOutput); err != nil {
		// Classified failures were already rendered from their error event
		var swapErr *swap.Error
		if !jsonOutput && !errors.As(err, &swapErr) {
			printError(err)
		}
		os.Exit(1)
	}
}

// newOrchestrator wires the swap collaborators for one CLI session
func newOrchestrator(cfg *config.Config, evm *wallet.EVMWallet, sink swap.Sink, logger *zap.Logger) (*swap.Orchestrator, func()) {
	api := newAPIClient(cfg)
	agg := fees.NewAggregator(api, cfg.ChainID, cfg.FeeCacheTTL, logger)

	prompter := func(action string) bool {
		if noConfirm {
			return true
		}
		return confirm(fmt.Sprintf("Confirm %s?", action))
	}

	deps := swap.Deps{
		Wallet:   wallet.NewConfirmingWallet(evm, prompter),
		Resolver: newResolver(cfg, api),
		Fees:     agg,
		Permits:  permit.NewManager(api, logger),
		Builder:  api,
		Sink:     sink,
		Logger:   logger,
	}
	if store, err := history.NewStorage(cfg.HistoryFile); err != nil {
		logger.Warn("swap history disabled", zap.String("file", cfg.HistoryFile), zap.Error(err))
	} else {
		deps.History = store
	}

	orch := swap.New(deps, swap.Options{
		ChainID:           cfg.ChainID,
		Permit2:           common.HexToAddress(cfg.Permit2Address),
		Router:            common.HexToAddress(cfg.RouterAddress),
		ExplorerURL:       cfg.ExplorerURL,
		UnlimitedApproval: cfg.UnlimitedApproval && !exactApprove,
		ReceiptTimeout:    cfg.ReceiptTimeout,
	})
	return orch, agg.Stop
}

// driveSwap triggers the orchestrator until the swap completes or the user gives up.
// Wallet prompts are the confirmations of the idle states.
func driveSwap(ctx context.Context, orch *swap.Orchestrator, jsonOutput bool) error {
	ask := func(q string) bool {
		return noConfirm || (!jsonOutput && confirm(q))
	}

	for {
		state, err := orch.HandleSwap(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch {
		case state == swap.StateComplete:
			return nil

		case state == swap.StateError:
			if noConfirm || !ask("Retry?") {
				return err
			}

		case err != nil:
			e := swap.Classify(err)
			switch e.Kind {
			case swap.KindChainMismatch:
				if !ask("Switch the wallet network?") {
					return err
				}
				if err := orch.SwitchNetwork(ctx); err != nil {
					return err
				}
			case swap.KindUserRejection:
				if noConfirm || !confirm("Try this step again?") {
					return err
				}
			default:
				return err
			}
		}
	}
}

// eventPrinter renders orchestrator events as terminal lines
type eventPrinter struct {
	json    bool
	spinner *spinner.Spinner
}

func newEventPrinter(jsonOutput bool) *eventPrinter {
	return &eventPrinter{
		json:    jsonOutput,
		spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond),
	}
}

var stateMessages = map[swap.State]string{
	swap.StateCheckingAllowance:   "Checking allowance...",
	swap.StateWaitingApproval:     "Waiting for approval to be mined...",
	swap.StateApprovalComplete:    "Preparing permit...",
	swap.StateBuildingTx:          "Building swap transaction...",
	swap.StateWaitingConfirmation: "Waiting for swap to be mined...",
}

// Emit implements swap.Sink
func (p *eventPrinter) Emit(e swap.Event) {
	if p.json {
		p.emitJSON(e)
		return
	}

	p.spinner.Stop()
	switch e.Type {
	case swap.EventStateChanged:
		if msg, ok := stateMessages[e.To]; ok {
			p.spinner.Suffix = " " + msg
			p.spinner.Start()
		}
		switch e.To {
		case swap.StateNeedsApproval:
			color.Yellow("\n  Permit2 needs an allowance for the input token.")
		case swap.StateNeedsSignature:
			color.Yellow("\n  A Permit2 signature is needed.")
		}
	case swap.EventApprovalSubmitted:
		fmt.Printf("  Approval sent:     %s\n", color.CyanString(e.TxHash.Hex()))
	case swap.EventApprovalConfirmed:
		color.Green("  ✓ Approval confirmed")
	case swap.EventSignatureObtained:
		color.Green("  ✓ Permit signed")
	case swap.EventSwapSubmitted:
		fmt.Printf("  Swap sent:         %s\n", color.CyanString(e.TxHash.Hex()))
	case swap.EventSwapConfirmed:
		color.Green("  ✓ Swap confirmed")
	case swap.EventError:
		if e.Error != nil {
			color.Red("\n  %s", e.Error.Error())
			if hint := e.Error.Hint(); hint != "" {
				color.Yellow("  %s", hint)
			}
		}
	case swap.EventSuccess:
		displaySuccess(e.Success)
	}
}

func (p *eventPrinter) emitJSON(e swap.Event) {
	out := map[string]interface{}{
		"event":   e.Type,
		"attempt": e.AttemptID,
		"from":    e.From,
		"to":      e.To,
	}
	if e.TxHash != (common.Hash{}) {
		out["tx_hash"] = e.TxHash.Hex()
	}
	if e.Error != nil {
		out["error"] = e.Error.Error()
		out["code"] = e.Error.Code
	}
	if e.Success != nil {
		out["success"] = e.Success
	}
	data, _ := json.Marshal(out)
	fmt.Println(string(data))
}

func displaySuccess(r *types.SuccessRecord) {
	if r == nil {
		return
	}
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP COMPLETE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Sold:      %s %s\n", r.FromAmount, color.YellowString(r.FromSymbol))
	fmt.Printf("  Bought:    %s %s\n", r.ToAmount, color.YellowString(r.ToSymbol))
	fmt.Printf("  Tx Hash:   %s\n", color.CyanString(r.TxHash))
	if len(r.TouchedPools) > 0 {
		fmt.Printf("  Pools:     %s\n", strings.Join(r.TouchedPools, ", "))
	}
	if r.ExplorerURL != "" {
		fmt.Printf("  Explorer:  %s\n", r.ExplorerURL)
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
