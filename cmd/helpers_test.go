package cmd

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"dex-swap/config"
	"dex-swap/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Slippage: 0.5,
		Tokens: map[string]config.TokenConfig{
			"usdc": {Address: "0x00000000000000000000000000000000000000a1", Decimals: 6, PriceUSD: 1},
		},
	}
}

func TestResolveToken(t *testing.T) {
	cfg := testConfig()

	usdc, err := resolveToken(cfg, "USDC")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xa1"), usdc.Address)
	require.Equal(t, uint8(6), usdc.Decimals)
	require.Equal(t, "USDC", usdc.Symbol)

	eth, err := resolveToken(cfg, "ether")
	require.NoError(t, err)
	require.True(t, eth.IsNative())

	_, err = resolveToken(cfg, "DOGE")
	require.Error(t, err)
}

func TestResolvePair(t *testing.T) {
	req, from, to, err := resolvePair(testConfig(), []string{"usdc", "for", "1.5", "eth"})
	require.NoError(t, err)
	require.Equal(t, types.ExactOutput, req.Direction)
	require.Equal(t, "USDC", from.Symbol)
	require.True(t, to.IsNative())
}

func TestSlippageOrDefault(t *testing.T) {
	cfg := testConfig()
	require.Equal(t, 0.5, slippageOrDefault(-1, cfg))
	require.Equal(t, 2.0, slippageOrDefault(2, cfg))
}

func TestIsTxHash(t *testing.T) {
	require.True(t, isTxHash(common.HexToHash("0xbeef").Hex()))
	require.False(t, isTxHash("0x1234"))
	require.False(t, isTxHash("not a hash"))
}
