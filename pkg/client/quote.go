package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"dex-swap/pkg/types"
)

// QuoteRequest asks the service for the counter-amount of a swap
type QuoteRequest struct {
	FromToken common.Address
	ToToken   common.Address
	Amount    *big.Int
	Direction types.Direction
}

type quoteBody struct {
	FromToken string          `json:"fromToken"`
	ToToken   string          `json:"toToken"`
	Amount    string          `json:"amount"`
	Direction types.Direction `json:"direction"`
	ChainID   uint64          `json:"chainId"`
}

// Quote is the service answer: the derived amount, the route and its price impact
type Quote struct {
	ToAmount    *types.BigInt   `json:"toAmount,omitempty"`
	FromAmount  *types.BigInt   `json:"fromAmount,omitempty"`
	Route       types.SwapRoute `json:"route"`
	PriceImpact float64         `json:"priceImpact"`
}

// CounterAmount returns the amount derived from the fixed side of the request
func (q *Quote) CounterAmount(direction types.Direction) *big.Int {
	if direction == types.ExactOutput {
		if q.FromAmount == nil {
			return nil
		}
		return q.FromAmount.Int
	}
	if q.ToAmount == nil {
		return nil
	}
	return q.ToAmount.Int
}

// GetQuote requests a quote for the given amount and direction
func (c *APIClient) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, &APIError{Endpoint: quotePath, Message: "amount must be positive"}
	}
	if !req.Direction.Valid() {
		return nil, &APIError{Endpoint: quotePath, Message: fmt.Sprintf("unknown direction %q", req.Direction)}
	}

	body := quoteBody{
		FromToken: req.FromToken.Hex(),
		ToToken:   req.ToToken.Hex(),
		Amount:    req.Amount.String(),
		Direction: req.Direction,
		ChainID:   c.chainID,
	}

	var quote Quote
	if err := c.post(ctx, quotePath, body, &quote); err != nil {
		return nil, err
	}

	if quote.CounterAmount(req.Direction) == nil {
		return nil, &APIError{Endpoint: quotePath, StatusCode: 200, Message: "quote is missing the derived amount"}
	}

	return &quote, nil
}
