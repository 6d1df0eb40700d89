// Package route resolves the pool path a swap will take.
package route

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"dex-swap/pkg/client"
	"dex-swap/pkg/types"
)

// ErrNoRoute is returned when the service answered with an unusable route
var ErrNoRoute = errors.New("no route available")

// Resolver finds a route between two tokens for an amount
type Resolver interface {
	Resolve(ctx context.Context, from, to types.Token, amount *big.Int, direction types.Direction) (Resolution, error)
}

// Quoter is the part of the swap API a QuoteResolver needs
type Quoter interface {
	GetQuote(ctx context.Context, req client.QuoteRequest) (*client.Quote, error)
}

// Resolution is a validated route and the amount on its derived side
type Resolution struct {
	Route         types.SwapRoute
	CounterAmount *big.Int
	PriceImpact   float64
}

// QuoteResolver resolves routes through the quote endpoint
type QuoteResolver struct {
	quoter        Quoter
	wrappedNative common.Address
}

// NewQuoteResolver creates a new resolver. wrappedNative is the address pools use
// in place of the native asset; it may be zero when unknown.
func NewQuoteResolver(quoter Quoter, wrappedNative common.Address) *QuoteResolver {
	return &QuoteResolver{quoter: quoter, wrappedNative: wrappedNative}
}

// Resolve asks for a quote and validates that its route connects from and to
func (r *QuoteResolver) Resolve(ctx context.Context, from, to types.Token, amount *big.Int, direction types.Direction) (Resolution, error) {
	quote, err := r.quoter.GetQuote(ctx, client.QuoteRequest{
		FromToken: from.Address,
		ToToken:   to.Address,
		Amount:    amount,
		Direction: direction,
	})
	if err != nil {
		return Resolution{}, err
	}

	if err := r.validate(quote.Route, from, to); err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}

	return Resolution{
		Route:         quote.Route,
		CounterAmount: quote.CounterAmount(direction),
		PriceImpact:   quote.PriceImpact,
	}, nil
}

// validate accepts the route as given, or with native endpoints replaced by the wrapped token
func (r *QuoteResolver) validate(route types.SwapRoute, from, to types.Token) error {
	err := route.Validate(from.Address, to.Address)
	if err == nil || r.wrappedNative == (common.Address{}) {
		return err
	}
	if !from.IsNative() && !to.IsNative() {
		return err
	}
	return route.Validate(r.endpoint(from), r.endpoint(to))
}

func (r *QuoteResolver) endpoint(t types.Token) common.Address {
	if t.IsNative() {
		return r.wrappedNative
	}
	return t.Address
}
