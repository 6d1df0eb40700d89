package swap

import (
	"context"
	"errors"
	"sync"
	"time"

	"dex-swap/pkg/amount"
	"dex-swap/pkg/route"
	"dex-swap/pkg/types"
)

// ErrStaleQuote is returned when the inputs changed while a quote was in flight
var ErrStaleQuote = errors.New("quote inputs changed before the result arrived")

// QuoteState is the pair of amounts shown to the user
type QuoteState struct {
	From         types.Token
	To           types.Token
	Direction    types.Direction
	InputAmount  string
	OutputAmount string
	Route        types.SwapRoute
	PriceImpact  float64
}

// Authoritative returns the amount the user typed
func (q QuoteState) Authoritative() string {
	if q.Direction == types.ExactOutput {
		return q.OutputAmount
	}
	return q.InputAmount
}

// QuoteBook keeps the input and output amounts in sync. The side the user edited
// last is authoritative; the other side is only ever written by a quote whose
// request still matches the current direction, amount and pair.
type QuoteBook struct {
	resolver route.Resolver

	mu    sync.Mutex
	state QuoteState
	timer *time.Timer
}

// NewQuoteBook creates a new quote book for a token pair
func NewQuoteBook(resolver route.Resolver, from, to types.Token) *QuoteBook {
	return &QuoteBook{
		resolver: resolver,
		state:    QuoteState{From: from, To: to, Direction: types.ExactInput},
	}
}

// State returns the current amounts
func (b *QuoteBook) State() QuoteState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetTokens changes the pair; the derived amount is cleared
func (b *QuoteBook) SetTokens(from, to types.Token) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.From, b.state.To = from, to
	b.clearDerivedLocked()
}

// EditInput makes the input amount authoritative
func (b *QuoteBook) EditInput(value string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Direction = types.ExactInput
	b.state.InputAmount = value
	b.clearDerivedLocked()
}

// EditOutput makes the output amount authoritative
func (b *QuoteBook) EditOutput(value string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Direction = types.ExactOutput
	b.state.OutputAmount = value
	b.clearDerivedLocked()
}

func (b *QuoteBook) clearDerivedLocked() {
	if b.state.Direction == types.ExactOutput {
		b.state.InputAmount = ""
	} else {
		b.state.OutputAmount = ""
	}
	b.state.Route = types.SwapRoute{}
	b.state.PriceImpact = 0
}

func sameRequest(a, b QuoteState) bool {
	return a.Direction == b.Direction &&
		a.Authoritative() == b.Authoritative() &&
		a.From.Address == b.From.Address &&
		a.To.Address == b.To.Address
}

// Refresh quotes the current amount. The result is applied only if the request
// still matches the current inputs; otherwise ErrStaleQuote is returned and
// nothing changes.
func (b *QuoteBook) Refresh(ctx context.Context) (QuoteState, error) {
	req := b.State()

	fixed := req.From
	derived := req.To
	if req.Direction == types.ExactOutput {
		fixed, derived = req.To, req.From
	}

	value := req.Authoritative()
	if value == "" {
		return req, nil
	}
	units, err := amount.ToSmallestUnits(value, fixed.Decimals)
	if err != nil {
		return req, err
	}
	if units.Sign() == 0 {
		return req, nil
	}

	res, err := b.resolver.Resolve(ctx, req.From, req.To, units, req.Direction)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !sameRequest(req, b.state) {
		return b.state, ErrStaleQuote
	}
	if err != nil {
		return b.state, err
	}
	if res.CounterAmount == nil {
		return b.state, route.ErrNoRoute
	}

	counter := amount.FormatFromSmallestUnits(res.CounterAmount, derived.Decimals)
	if req.Direction == types.ExactOutput {
		b.state.InputAmount = counter
	} else {
		b.state.OutputAmount = counter
	}
	b.state.Route = res.Route
	b.state.PriceImpact = res.PriceImpact

	return b.state, nil
}

// Schedule runs Refresh after delay, restarting the wait on every call.
// done receives the outcome of the refresh that actually ran.
func (b *QuoteBook) Schedule(ctx context.Context, delay time.Duration, done func(QuoteState, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(delay, func() {
		state, err := b.Refresh(ctx)
		if done != nil {
			done(state, err)
		}
	})
}

// Stop cancels a scheduled refresh
func (b *QuoteBook) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
