package swap

import (
	"github.com/ethereum/go-ethereum/common"

	"dex-swap/pkg/types"
)

// EventType names a notification the UI layer may render
type EventType string

const (
	EventStateChanged      EventType = "state_changed"
	EventApprovalSubmitted EventType = "approval_submitted"
	EventApprovalConfirmed EventType = "approval_confirmed"
	EventSignatureObtained EventType = "signature_obtained"
	EventSwapSubmitted     EventType = "swap_submitted"
	EventSwapConfirmed     EventType = "swap_confirmed"
	EventError             EventType = "error"
	EventSuccess           EventType = "success"
	EventBalanceRefresh    EventType = "balance_refresh"
)

// Event is emitted by the orchestrator as the attempt progresses
type Event struct {
	Type      EventType
	AttemptID string
	From      State
	To        State
	TxHash    common.Hash
	Error     *Error
	Success   *types.SuccessRecord
	// Tokens lists the tokens whose balances changed, set on balance_refresh
	Tokens []types.Token
}

// Sink receives events. Emit must not call back into the orchestrator synchronously
// with blocking operations.
type Sink interface {
	Emit(Event)
}

// FuncSink adapts a function to a Sink
type FuncSink func(Event)

// Emit calls f
func (f FuncSink) Emit(e Event) {
	f(e)
}

// ChannelSink forwards events to a channel, dropping them when it is full
type ChannelSink chan Event

// Emit sends e without blocking
func (c ChannelSink) Emit(e Event) {
	select {
	case c <- e:
	default:
	}
}

type nopSink struct{}

func (nopSink) Emit(Event) {}
