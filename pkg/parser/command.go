package parser

import (
	"fmt"
	"regexp"
	"strings"

	"dex-swap/pkg/types"
)

var (
	// <amount> <source_token> TO <dest_token>
	exactInputPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+(?:TO|FOR)\s+([A-Z0-9]+)$`)
	// <source_token> FOR <amount> <dest_token>
	exactOutputPattern = regexp.MustCompile(`^([A-Z0-9]+)\s+(?:TO|FOR)\s+(\d+\.?\d*)\s+([A-Z0-9]+)$`)
)

// ParseSwapCommand parses a natural language swap command.
// The side that carries the amount is the fixed side of the swap.
// Examples:
//   - "swap 100 USDC to WETH" (exact input)
//   - "1.5 WETH for DAI" (exact input)
//   - "swap USDC for 0.5 WETH" (exact output)
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")
	command = strings.TrimPrefix(command, "SWAP ")

	if m := exactInputPattern.FindStringSubmatch(command); m != nil {
		return &types.SwapRequest{
			Amount:      m[1],
			SourceToken: m[2],
			DestToken:   m[3],
			Direction:   types.ExactInput,
		}, nil
	}

	if m := exactOutputPattern.FindStringSubmatch(command); m != nil {
		return &types.SwapRequest{
			Amount:      m[2],
			SourceToken: m[1],
			DestToken:   m[3],
			Direction:   types.ExactOutput,
		}, nil
	}

	return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' or 'swap <token> for <amount> <token>'")
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if req.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	if req.SourceToken == req.DestToken {
		return fmt.Errorf("source and destination token are the same")
	}
	if !req.Direction.Valid() {
		return fmt.Errorf("unknown swap direction %q", req.Direction)
	}
	return nil
}

// NormalizeTokenSymbol upper-cases a symbol and maps the native coin's
// common spellings onto ETH
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"ETHER":  "ETH",
		"NATIVE": "ETH",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
