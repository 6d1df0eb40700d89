package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dex-swap/config"
	"dex-swap/pkg/amount"
	"dex-swap/pkg/client"
	"dex-swap/pkg/logutils"
	"dex-swap/pkg/parser"
	"dex-swap/pkg/route"
	"dex-swap/pkg/types"
	"dex-swap/pkg/wallet"
)

// resolveToken turns a symbol into a token using the configured token list.
// ETH is the native coin unless the config says otherwise.
func resolveToken(cfg *config.Config, symbol string) (types.Token, error) {
	symbol = parser.NormalizeTokenSymbol(symbol)

	tc, ok := cfg.Token(symbol)
	if !ok {
		if symbol == "ETH" {
			return types.Token{Address: types.NativeSentinel, Symbol: symbol, Decimals: 18}, nil
		}
		return types.Token{}, fmt.Errorf("unknown token %s. Add it under 'tokens' in .dex-swap.yaml", symbol)
	}

	return types.Token{
		Address:  common.HexToAddress(tc.Address),
		Symbol:   symbol,
		Decimals: tc.Decimals,
		PriceUSD: decimal.NewFromFloat(tc.PriceUSD),
	}, nil
}

// resolvePair parses a swap command and resolves both tokens
func resolvePair(cfg *config.Config, args []string) (*types.SwapRequest, types.Token, types.Token, error) {
	req, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return nil, types.Token{}, types.Token{}, err
	}
	if err := parser.ValidateSwapRequest(req); err != nil {
		return nil, types.Token{}, types.Token{}, err
	}

	from, err := resolveToken(cfg, req.SourceToken)
	if err != nil {
		return nil, types.Token{}, types.Token{}, err
	}
	to, err := resolveToken(cfg, req.DestToken)
	if err != nil {
		return nil, types.Token{}, types.Token{}, err
	}
	return req, from, to, nil
}

func newAPIClient(cfg *config.Config) *client.APIClient {
	return client.NewAPIClient(cfg.APIURL, cfg.ChainID, cfg.HTTPTimeout,
		client.WithAPIKey(cfg.APIKey),
		client.WithLogger(logutils.ZapLogger()))
}

func newResolver(cfg *config.Config, api *client.APIClient) *route.QuoteResolver {
	var wrapped common.Address
	if cfg.WrappedNativeAddress != "" {
		wrapped = common.HexToAddress(cfg.WrappedNativeAddress)
	}
	return route.NewQuoteResolver(api, wrapped)
}

func newWallet(ctx context.Context, cfg *config.Config) (*wallet.EVMWallet, error) {
	if err := cfg.RequireWallet(); err != nil {
		return nil, err
	}
	return wallet.NewEVMWallet(ctx, cfg.RPCURL, cfg.PrivateKey, cfg.ReceiptPollInterval, logutils.ZapLogger())
}

// loadBalance fills in the human-readable ERC-20 balance of t. Native balances are
// left unknown and skip the local balance check.
func loadBalance(ctx context.Context, w wallet.Wallet, t *types.Token) error {
	if t.IsNative() {
		return nil
	}
	bal, err := wallet.BalanceOf(ctx, w, t.Address, w.Address())
	if err != nil {
		return err
	}
	t.Balance = amount.FormatFromSmallestUnits(bal, t.Decimals)
	return nil
}

func newSpinner(suffix string, enabled bool) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	if enabled {
		s.Start()
	}
	return s
}

func confirm(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", question)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
