package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dex-swap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
api_url: https://api.example.org
chain_id: 8453
slippage: 1.5
fee_cache_ttl: 30s
router: "0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD"
tokens:
  USDC:
    address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
    decimals: 6
    price_usd: 1
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.org", cfg.APIURL)
	require.Equal(t, uint64(8453), cfg.ChainID)
	require.Equal(t, 1.5, cfg.Slippage)
	require.Equal(t, 30*time.Second, cfg.FeeCacheTTL)
	require.Equal(t, DefaultPermit2Address, cfg.Permit2Address)
	require.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	require.True(t, cfg.UnlimitedApproval)

	usdc, ok := cfg.Token("usdc")
	require.True(t, ok)
	require.Equal(t, uint8(6), usdc.Decimals)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "chain_id: 1\n")
	t.Setenv("DEX_SWAP_CHAIN_ID", "10")
	t.Setenv("DEX_SWAP_RPC_URL", "http://localhost:8545")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, uint64(10), cfg.ChainID)
	require.Equal(t, "http://localhost:8545", cfg.RPCURL)
	require.Error(t, cfg.RequireWallet())
}

func TestValidate(t *testing.T) {
	_, err := LoadFrom(writeConfig(t, "slippage: 120\n"))
	require.Error(t, err)

	_, err = LoadFrom(writeConfig(t, "router: nope\n"))
	require.Error(t, err)

	_, err = LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
