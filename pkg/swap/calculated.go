package swap

import (
	"github.com/shopspring/decimal"

	"dex-swap/pkg/amount"
	"dex-swap/pkg/fees"
	"dex-swap/pkg/types"
)

// Inputs is everything the review screen values are derived from
type Inputs struct {
	From            types.Token
	To              types.Token
	Direction       types.Direction
	InputAmount     string
	OutputAmount    string
	Fees            []fees.HopFee
	SlippagePercent float64
	PriceImpact     float64
}

// FeeLine is one hop of the fee breakdown
type FeeLine struct {
	Label  string
	FeeBps uint32
	Fee    string
}

// CalculatedValues is a derived view, rebuilt from Inputs on every change
type CalculatedValues struct {
	InputAmount     string
	OutputAmount    string
	InputUSD        decimal.Decimal
	OutputUSD       decimal.Decimal
	Fees            []FeeLine
	EffectiveFeeBps uint32
	EffectiveFee    string
	SlippagePercent float64
	// MinimumReceived is set for exact-input swaps
	MinimumReceived string
	// MaximumSold is set for exact-output swaps
	MaximumSold string
	PriceImpact float64
	Degraded    bool
}

// Calculate derives the display values. Amounts that do not parse are left blank.
func Calculate(in Inputs) CalculatedValues {
	out := CalculatedValues{
		InputAmount:     in.InputAmount,
		OutputAmount:    in.OutputAmount,
		InputUSD:        decimal.Zero,
		OutputUSD:       decimal.Zero,
		SlippagePercent: in.SlippagePercent,
		PriceImpact:     in.PriceImpact,
	}

	inUnits, inErr := amount.ToSmallestUnits(in.InputAmount, in.From.Decimals)
	if inErr == nil {
		out.InputUSD = amount.USDValue(inUnits, in.From.Decimals, in.From.PriceUSD)
	}
	outUnits, outErr := amount.ToSmallestUnits(in.OutputAmount, in.To.Decimals)
	if outErr == nil {
		out.OutputUSD = amount.USDValue(outUnits, in.To.Decimals, in.To.PriceUSD)
	}

	if len(in.Fees) > 0 {
		out.Fees = make([]FeeLine, 0, len(in.Fees))
		for _, f := range in.Fees {
			out.Fees = append(out.Fees, FeeLine{
				Label:  f.Hop.Label(),
				FeeBps: f.FeeBps,
				Fee:    amount.FormatBps(f.FeeBps),
			})
		}
		out.EffectiveFeeBps = fees.EffectiveFeeBps(in.Fees)
		out.EffectiveFee = amount.FormatBps(out.EffectiveFeeBps)
	}

	switch {
	case in.Direction == types.ExactOutput && inErr == nil:
		if b, err := amount.ApplySlippageBound(inUnits, in.From.Decimals, in.SlippagePercent, amount.MaxInput); err == nil {
			out.MaximumSold = b.Formatted
			out.Degraded = b.Degraded
		}
	case in.Direction != types.ExactOutput && outErr == nil:
		if b, err := amount.ApplySlippageBound(outUnits, in.To.Decimals, in.SlippagePercent, amount.MinOutput); err == nil {
			out.MinimumReceived = b.Formatted
			out.Degraded = b.Degraded
		}
	}

	return out
}
