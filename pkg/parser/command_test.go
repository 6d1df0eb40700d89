package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dex-swap/pkg/types"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		input string
		want  types.SwapRequest
	}{
		{"swap 100 usdc to weth", types.SwapRequest{Amount: "100", SourceToken: "USDC", DestToken: "WETH", Direction: types.ExactInput}},
		{"1.5 WETH for DAI", types.SwapRequest{Amount: "1.5", SourceToken: "WETH", DestToken: "DAI", Direction: types.ExactInput}},
		{"  swap   A  to   B ", types.SwapRequest{}},
		{"swap A for 95 B", types.SwapRequest{Amount: "95", SourceToken: "A", DestToken: "B", Direction: types.ExactOutput}},
		{"usdc to 0.25 weth", types.SwapRequest{Amount: "0.25", SourceToken: "USDC", DestToken: "WETH", Direction: types.ExactOutput}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSwapCommand(tt.input)
			if tt.want.Amount == "" {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, *got)
		})
	}
}

func TestParseSwapCommandRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "swap", "100 A B", "swap 1 A to", "-1 A to B", "1 A to 2 B"} {
		_, err := ParseSwapCommand(input)
		require.Error(t, err, input)
	}
}

func TestValidateSwapRequest(t *testing.T) {
	ok := &types.SwapRequest{Amount: "1", SourceToken: "A", DestToken: "B", Direction: types.ExactInput}
	require.NoError(t, ValidateSwapRequest(ok))

	same := *ok
	same.DestToken = "A"
	require.Error(t, ValidateSwapRequest(&same))

	noDir := *ok
	noDir.Direction = ""
	require.Error(t, ValidateSwapRequest(&noDir))

	require.Error(t, ValidateSwapRequest(&types.SwapRequest{SourceToken: "A", DestToken: "B", Direction: types.ExactInput}))
}

func TestNormalizeTokenSymbol(t *testing.T) {
	require.Equal(t, "ETH", NormalizeTokenSymbol(" ether "))
	require.Equal(t, "USDC", NormalizeTokenSymbol("usdc"))
}
