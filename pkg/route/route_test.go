package route

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"dex-swap/pkg/client"
	"dex-swap/pkg/types"
)

var (
	addrA = common.HexToAddress("0xa")
	addrB = common.HexToAddress("0xb")
	addrC = common.HexToAddress("0xc")
	weth  = common.HexToAddress("0xeee1")
)

type fakeQuoter struct {
	quote *client.Quote
	err   error
	last  client.QuoteRequest
}

func (f *fakeQuoter) GetQuote(_ context.Context, req client.QuoteRequest) (*client.Quote, error) {
	f.last = req
	return f.quote, f.err
}

func quoteWith(hops ...types.PoolHop) *client.Quote {
	return &client.Quote{
		ToAmount:   types.NewBigInt(big.NewInt(95)),
		FromAmount: types.NewBigInt(big.NewInt(105)),
		Route:      types.SwapRoute{Hops: hops},
	}
}

func TestResolveMultiHop(t *testing.T) {
	q := &fakeQuoter{quote: quoteWith(
		types.PoolHop{Token0: addrA, Token1: addrB, PoolID: "ab"},
		types.PoolHop{Token0: addrC, Token1: addrB, PoolID: "bc"},
	)}
	r := NewQuoteResolver(q, common.Address{})

	res, err := r.Resolve(context.Background(), types.Token{Address: addrA}, types.Token{Address: addrC}, big.NewInt(100), types.ExactInput)
	require.NoError(t, err)
	require.False(t, res.Route.IsDirectRoute())
	require.Equal(t, []string{"ab", "bc"}, res.Route.TouchedPools())
	require.Equal(t, int64(95), res.CounterAmount.Int64())
	require.Equal(t, types.ExactInput, q.last.Direction)
}

func TestResolveExactOutputCounterAmount(t *testing.T) {
	q := &fakeQuoter{quote: quoteWith(types.PoolHop{Token0: addrA, Token1: addrB, PoolID: "ab"})}
	r := NewQuoteResolver(q, common.Address{})

	res, err := r.Resolve(context.Background(), types.Token{Address: addrA}, types.Token{Address: addrB}, big.NewInt(95), types.ExactOutput)
	require.NoError(t, err)
	require.Equal(t, int64(105), res.CounterAmount.Int64())
}

func TestResolveBrokenRoute(t *testing.T) {
	q := &fakeQuoter{quote: quoteWith(
		types.PoolHop{Token0: addrA, Token1: addrB, PoolID: "ab"},
		types.PoolHop{Token0: addrA, Token1: addrC, PoolID: "ac"},
	)}
	r := NewQuoteResolver(q, common.Address{})

	_, err := r.Resolve(context.Background(), types.Token{Address: addrA}, types.Token{Address: addrC}, big.NewInt(1), types.ExactInput)
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestResolveEmptyRoute(t *testing.T) {
	r := NewQuoteResolver(&fakeQuoter{quote: quoteWith()}, common.Address{})

	_, err := r.Resolve(context.Background(), types.Token{Address: addrA}, types.Token{Address: addrB}, big.NewInt(1), types.ExactInput)
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestResolveNativeThroughWrapped(t *testing.T) {
	q := &fakeQuoter{quote: quoteWith(types.PoolHop{Token0: weth, Token1: addrB, PoolID: "wb"})}
	r := NewQuoteResolver(q, weth)

	native := types.Token{Address: types.NativeSentinel, Symbol: "ETH"}
	_, err := r.Resolve(context.Background(), native, types.Token{Address: addrB}, big.NewInt(1), types.ExactInput)
	require.NoError(t, err)
	require.Equal(t, types.NativeSentinel, q.last.FromToken)
}

func TestResolvePassesServiceError(t *testing.T) {
	apiErr := &client.APIError{Endpoint: "/quote", Message: "no route"}
	r := NewQuoteResolver(&fakeQuoter{err: apiErr}, common.Address{})

	_, err := r.Resolve(context.Background(), types.Token{Address: addrA}, types.Token{Address: addrB}, big.NewInt(1), types.ExactInput)
	var got *client.APIError
	require.True(t, errors.As(err, &got))
	require.True(t, got.IsNoRoute())
}
