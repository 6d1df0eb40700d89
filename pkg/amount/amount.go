// Package amount converts between human-readable decimal amounts and integer
// smallest units, and computes slippage bounds without floating point.
package amount

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// BpsDenominator is 100% expressed in basis points
const BpsDenominator = 10000

// maxIntegerDigits bounds parsed amounts to what fits in a uint256
const maxIntegerDigits = 78

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidSlippage = errors.New("invalid slippage")
)

// Bound selects which side of a quote a slippage bound protects
type Bound int

const (
	MinOutput Bound = iota // Lowest acceptable output for exact-input swaps
	MaxInput               // Highest acceptable input for exact-output swaps
)

func (b Bound) String() string {
	if b == MaxInput {
		return "maxInput"
	}
	return "minOutput"
}

// Bounded is the result of ApplySlippageBound
type Bounded struct {
	Amount    *big.Int
	Formatted string
	Bps       uint32
	// Degraded is set when the value came from the floating point fallback
	Degraded bool
}

// ToSmallestUnits parses a non-negative decimal string (scientific notation allowed)
// and converts it to integer smallest units, truncating extra fractional digits.
func ToSmallestUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}

	// Bound the magnitude from the coefficient and exponent before expanding,
	// so an exponent like 1e200000000 never materializes its digits.
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return new(big.Int), nil
	}
	magnitude := int64(len(coef.Text(10))) + int64(d.Exponent())
	if magnitude > maxIntegerDigits {
		return nil, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, s)
	}
	if magnitude <= -int64(decimals) {
		return new(big.Int), nil
	}

	// Expand to a fixed-decimal string with exactly `decimals` fractional digits.
	fixed := d.Truncate(int32(decimals)).StringFixed(int32(decimals))
	intPart, fracPart, _ := strings.Cut(fixed, ".")
	if len(intPart) > maxIntegerDigits {
		return nil, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, s)
	}

	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// FormatFromSmallestUnits renders v with the given decimals, trimming trailing zeros
func FormatFromSmallestUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}

	sign := ""
	if v.Sign() < 0 {
		sign = "-"
	}
	digits := new(big.Int).Abs(v).String()

	d := int(decimals)
	if d == 0 {
		return sign + digits
	}
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}

	intPart := digits[:len(digits)-d]
	fracPart := strings.TrimRight(digits[len(digits)-d:], "0")
	if fracPart == "" {
		return sign + intPart
	}
	return sign + intPart + "." + fracPart
}

// SlippageBps converts a slippage percentage in [0, 100) to basis points, rounding to nearest
func SlippageBps(percent float64) (uint32, error) {
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 || percent >= 100 {
		return 0, fmt.Errorf("%w: %v%% must be in [0, 100)", ErrInvalidSlippage, percent)
	}
	return uint32(math.Round(percent * 100)), nil
}

// ApplySlippageBound returns floor(quoted * (10000 ∓ bps) / 10000).
// The uint256 path is exact; quotes that do not fit in 256 bits fall back to
// big.Float and are flagged Degraded.
func ApplySlippageBound(quoted *big.Int, decimals uint8, slippagePercent float64, bound Bound) (Bounded, error) {
	if quoted == nil || quoted.Sign() < 0 {
		return Bounded{}, fmt.Errorf("%w: quoted amount must be non-negative", ErrInvalidAmount)
	}

	bps, err := SlippageBps(slippagePercent)
	if err != nil {
		return Bounded{}, err
	}

	factor := uint64(BpsDenominator - bps)
	if bound == MaxInput {
		factor = uint64(BpsDenominator + bps)
	}

	result := Bounded{Bps: bps}
	if q, overflow := uint256.FromBig(quoted); !overflow {
		v, overflow := new(uint256.Int).MulDivOverflow(q, uint256.NewInt(factor), uint256.NewInt(BpsDenominator))
		if !overflow {
			result.Amount = v.ToBig()
		}
	}

	if result.Amount == nil {
		result.Amount = floatBound(quoted, factor)
		result.Degraded = true
	}

	result.Formatted = FormatFromSmallestUnits(result.Amount, decimals)
	return result, nil
}

func floatBound(quoted *big.Int, factor uint64) *big.Int {
	prec := uint(quoted.BitLen()) + 64
	f := new(big.Float).SetPrec(prec).SetInt(quoted)
	f.Mul(f, new(big.Float).SetPrec(prec).SetUint64(factor))
	f.Quo(f, new(big.Float).SetPrec(prec).SetUint64(BpsDenominator))

	out, _ := f.Int(nil)
	return out
}

// ParseBps parses a basis point string such as "30" or "30.4", rounding to the nearest integer
func ParseBps(s string) (uint32, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid basis points %q: %w", s, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(BpsDenominator)) {
		return 0, fmt.Errorf("basis points %q out of range", s)
	}
	return uint32(d.Round(0).IntPart()), nil
}

// FormatBps renders basis points as a percentage, e.g. 50 -> "0.5%"
func FormatBps(bps uint32) string {
	return decimal.New(int64(bps), -2).String() + "%"
}

// USDValue prices an amount of smallest units at a per-unit USD price
func USDValue(v *big.Int, decimals uint8, priceUSD decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).Mul(priceUSD)
}
