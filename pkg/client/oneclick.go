package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"

	"dex-swap/pkg/amount"
	"dex-swap/pkg/types"
)

// indicativeSlippageBps is the tolerance sent with dry quotes (1%)
const indicativeSlippageBps = 100

// OneClickClient reads indicative prices from the 1Click API.
// Quotes are always dry: no deposit address is reserved.
type OneClickClient struct {
	client *oneclick.APIClient
	token  string
}

// IndicativePrice is a dry quote for a token pair
type IndicativePrice struct {
	FromSymbol     string
	ToSymbol       string
	AmountIn       string
	AmountOut      string
	TimeEstimate   float64
	Direction      types.Direction
	FromBlockchain string
	ToBlockchain   string
}

// NewOneClickClient creates a new 1Click API client
func NewOneClickClient(jwtToken string) *OneClickClient {
	return &OneClickClient{
		client: oneclick.NewAPIClient(oneclick.NewConfiguration()),
		token:  jwtToken,
	}
}

func (c *OneClickClient) authCtx(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.token)
}

// SupportedTokens retrieves all tokens the 1Click API knows about
func (c *OneClickClient) SupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authCtx(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// FindToken looks a token up by symbol, optionally restricted to a chain.
// Exact symbol matches win over partial ones.
func FindToken(tokens []oneclick.TokenResponse, symbol, chain string) (*oneclick.TokenResponse, error) {
	symbol = strings.ToUpper(symbol)
	chain = strings.ToLower(chain)

	onChain := func(t oneclick.TokenResponse) bool {
		return chain == "" || strings.ToLower(t.GetBlockchain()) == chain
	}

	for i := range tokens {
		if strings.ToUpper(tokens[i].GetSymbol()) == symbol && onChain(tokens[i]) {
			return &tokens[i], nil
		}
	}
	for i := range tokens {
		if strings.Contains(strings.ToUpper(tokens[i].GetSymbol()), symbol) && onChain(tokens[i]) {
			return &tokens[i], nil
		}
	}

	if chain != "" {
		return nil, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chain)
	}
	return nil, fmt.Errorf("token '%s' not found", symbol)
}

// IndicativeQuote asks for a dry quote of req. The recipient is only used to satisfy
// the API's request validation.
func (c *OneClickClient) IndicativeQuote(ctx context.Context, req types.SwapRequest, chain, recipient string) (*IndicativePrice, error) {
	tokens, err := c.SupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	from, err := FindToken(tokens, req.SourceToken, chain)
	if err != nil {
		return nil, fmt.Errorf("source token error: %w", err)
	}
	to, err := FindToken(tokens, req.DestToken, chain)
	if err != nil {
		return nil, fmt.Errorf("destination token error: %w", err)
	}

	// The fixed side is denominated in the token the user named the amount in.
	fixed := from
	if req.Direction == types.ExactOutput {
		fixed = to
	}
	units, err := amount.ToSmallestUnits(req.Amount, uint8(fixed.GetDecimals()))
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(time.Hour)
	quoteReq := oneclick.NewQuoteRequest(
		true,
		"EXACT_INPUT",
		indicativeSlippageBps,
		from.GetAssetId(),
		"ORIGIN_CHAIN",
		to.GetAssetId(),
		units.String(),
		recipient,
		"ORIGIN_CHAIN",
		recipient,
		"DESTINATION_CHAIN",
		deadline,
	)
	if req.Direction == types.ExactOutput {
		quoteReq = oneclick.NewQuoteRequest(
			true,
			"EXACT_OUTPUT",
			indicativeSlippageBps,
			from.GetAssetId(),
			"ORIGIN_CHAIN",
			to.GetAssetId(),
			units.String(),
			recipient,
			"ORIGIN_CHAIN",
			recipient,
			"DESTINATION_CHAIN",
			deadline,
		)
	}

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authCtx(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, quoteError(httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	quote := resp.GetQuote()
	return &IndicativePrice{
		FromSymbol:     from.GetSymbol(),
		ToSymbol:       to.GetSymbol(),
		AmountIn:       quote.GetAmountInFormatted(),
		AmountOut:      quote.GetAmountOutFormatted(),
		TimeEstimate:   float64(quote.GetTimeEstimate()),
		Direction:      req.Direction,
		FromBlockchain: from.GetBlockchain(),
		ToBlockchain:   to.GetBlockchain(),
	}, nil
}

// quoteError extracts the API's message from a failed quote response
func quoteError(httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("failed to get quote from API: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(bodyBytes) == 0 {
		return fmt.Errorf("failed to get quote from API (status: %d): %w", httpResp.StatusCode, err)
	}

	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
		}
		if errs, ok := errorResp["errors"]; ok {
			return fmt.Errorf("API error (status %d): %v", httpResp.StatusCode, errs)
		}
	}
	return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(bodyBytes))
}
