package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Direction tells which side of the swap the user fixed
type Direction string

const (
	ExactInput  Direction = "exactIn"  // Sell amount fixed, buy amount derived
	ExactOutput Direction = "exactOut" // Buy amount fixed, sell amount derived
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	return d == ExactInput || d == ExactOutput
}

// SwapType returns the name the transaction builder expects for d
func (d Direction) SwapType() string {
	if d == ExactOutput {
		return "EXACT_OUTPUT"
	}
	return "EXACT_INPUT"
}

// NativeSentinel is the pseudo address routers use for the chain's gas token
var NativeSentinel = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

var (
	ErrEmptyRoute  = errors.New("route has no hops")
	ErrBrokenRoute = errors.New("route hops are not contiguous")
)

// Token is a snapshot of an asset as seen by the UI layer
type Token struct {
	Address  common.Address  `json:"address"`
	Symbol   string          `json:"symbol"`
	Decimals uint8           `json:"decimals"`
	Balance  string          `json:"balance,omitempty"`  // Human-readable cached balance
	PriceUSD decimal.Decimal `json:"priceUsd,omitempty"` // USD price of one whole unit
}

// IsNative returns true for the chain's gas token
func (t Token) IsNative() bool {
	return t.Address == (common.Address{}) || t.Address == NativeSentinel
}

// String returns the symbol, or the address when no symbol is known
func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// PoolHop is a single pool traversed by a route
type PoolHop struct {
	Token0 common.Address `json:"token0"`
	Token1 common.Address `json:"token1"`
	PoolID string         `json:"poolId"`
	Name   string         `json:"name"`
}

// Label returns the human readable name of the hop, falling back to the pool id
func (h PoolHop) Label() string {
	if h.Name != "" {
		return h.Name
	}
	return h.PoolID
}

// SwapRoute is an ordered path of pools from the input token to the output token.
// Routes are never mutated; a new route replaces the old one when inputs change.
type SwapRoute struct {
	Hops []PoolHop `json:"hops"`
}

// IsDirectRoute holds iff the route crosses exactly one pool
func (r SwapRoute) IsDirectRoute() bool {
	return len(r.Hops) == 1
}

// Validate checks that hops connect from to to without gaps.
// A hop may be oriented either way.
func (r SwapRoute) Validate(from, to common.Address) error {
	if len(r.Hops) == 0 {
		return ErrEmptyRoute
	}

	current := from
	for i, hop := range r.Hops {
		switch current {
		case hop.Token0:
			current = hop.Token1
		case hop.Token1:
			current = hop.Token0
		default:
			return fmt.Errorf("%w: hop %d (%s) does not touch %s", ErrBrokenRoute, i, hop.Label(), current.Hex())
		}
	}

	if current != to {
		return fmt.Errorf("%w: route ends at %s, expected %s", ErrBrokenRoute, current.Hex(), to.Hex())
	}

	return nil
}

// TouchedPools returns the pool ids in route order
func (r SwapRoute) TouchedPools() []string {
	pools := make([]string, 0, len(r.Hops))
	for _, hop := range r.Hops {
		pools = append(pools, hop.PoolID)
	}
	return pools
}

// String renders the route as "A/B -> B/C"
func (r SwapRoute) String() string {
	labels := make([]string, 0, len(r.Hops))
	for _, hop := range r.Hops {
		labels = append(labels, hop.Label())
	}
	return strings.Join(labels, " -> ")
}

// SwapRequest represents a user's swap command before tokens are resolved
type SwapRequest struct {
	Amount      string
	SourceToken string
	DestToken   string
	Direction   Direction
}

// SuccessRecord is emitted once a swap is confirmed on-chain
type SuccessRecord struct {
	ID           string    `json:"id"`
	TxHash       string    `json:"txHash"`
	FromAmount   string    `json:"fromAmount"`
	FromSymbol   string    `json:"fromSymbol"`
	ToAmount     string    `json:"toAmount"`
	ToSymbol     string    `json:"toSymbol"`
	ExplorerURL  string    `json:"explorerUrl"`
	TouchedPools []string  `json:"touchedPools"`
	ChainID      uint64    `json:"chainId"`
	CompletedAt  time.Time `json:"completedAt"`
}
