package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	addrA = common.HexToAddress("0xa1")
	addrB = common.HexToAddress("0xb1")
	addrC = common.HexToAddress("0xc1")
)

func TestRouteValidate(t *testing.T) {
	tests := []struct {
		name    string
		route   SwapRoute
		from    common.Address
		to      common.Address
		wantErr error
	}{
		{"direct", SwapRoute{Hops: []PoolHop{{Token0: addrA, Token1: addrB}}}, addrA, addrB, nil},
		{"reversed hop", SwapRoute{Hops: []PoolHop{{Token0: addrB, Token1: addrA}}}, addrA, addrB, nil},
		{"two hops", SwapRoute{Hops: []PoolHop{{Token0: addrA, Token1: addrB}, {Token0: addrC, Token1: addrB}}}, addrA, addrC, nil},
		{"empty", SwapRoute{}, addrA, addrB, ErrEmptyRoute},
		{"gap", SwapRoute{Hops: []PoolHop{{Token0: addrA, Token1: addrB}, {Token0: addrA, Token1: addrC}}}, addrA, addrC, ErrBrokenRoute},
		{"wrong end", SwapRoute{Hops: []PoolHop{{Token0: addrA, Token1: addrB}}}, addrA, addrC, ErrBrokenRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.route.Validate(tt.from, tt.to)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRouteHelpers(t *testing.T) {
	r := SwapRoute{Hops: []PoolHop{
		{Token0: addrA, Token1: addrB, PoolID: "p1", Name: "A/B"},
		{Token0: addrB, Token1: addrC, PoolID: "p2"},
	}}

	require.False(t, r.IsDirectRoute())
	require.Equal(t, []string{"p1", "p2"}, r.TouchedPools())
	require.Equal(t, "A/B -> p2", r.String())
	require.True(t, SwapRoute{Hops: r.Hops[:1]}.IsDirectRoute())
}

func TestTokenIsNative(t *testing.T) {
	require.True(t, Token{}.IsNative())
	require.True(t, Token{Address: NativeSentinel}.IsNative())
	require.False(t, Token{Address: addrA}.IsNative())
	require.Equal(t, addrA.Hex(), Token{Address: addrA}.String())
}

func TestDirection(t *testing.T) {
	require.True(t, ExactInput.Valid())
	require.False(t, Direction("sideways").Valid())
	require.Equal(t, "EXACT_OUTPUT", ExactOutput.SwapType())
	require.Equal(t, "EXACT_INPUT", ExactInput.SwapType())
}
