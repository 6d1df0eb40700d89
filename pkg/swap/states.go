package swap

// State is the position of a swap attempt in the progress state machine
type State string

const (
	StateInit                State = "init"
	StateCheckingAllowance   State = "checking_allowance"
	StateNeedsApproval       State = "needs_approval"
	StateApproving           State = "approving"
	StateWaitingApproval     State = "waiting_approval"
	StateApprovalComplete    State = "approval_complete"
	StateNeedsSignature      State = "needs_signature"
	StateSigningPermit       State = "signing_permit"
	StateSignatureComplete   State = "signature_complete"
	StateReadyToSwap         State = "ready_to_swap"
	StateBuildingTx          State = "building_tx"
	StateExecutingSwap       State = "executing_swap"
	StateWaitingConfirmation State = "waiting_confirmation"
	StateComplete            State = "complete"
	StateError               State = "error"
)

// stateOrder is the nominal progression, used for ordering completed steps
var stateOrder = []State{
	StateInit,
	StateCheckingAllowance,
	StateNeedsApproval,
	StateApproving,
	StateWaitingApproval,
	StateApprovalComplete,
	StateNeedsSignature,
	StateSigningPermit,
	StateSignatureComplete,
	StateReadyToSwap,
	StateBuildingTx,
	StateExecutingSwap,
	StateWaitingConfirmation,
	StateComplete,
	StateError,
}

// IsIdle reports whether the state waits for an explicit user confirmation
func (s State) IsIdle() bool {
	switch s {
	case StateInit, StateNeedsApproval, StateNeedsSignature, StateReadyToSwap:
		return true
	}
	return false
}

// IsTerminal reports whether the attempt has ended
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateError
}

func (s State) index() int {
	for i, st := range stateOrder {
		if st == s {
			return i
		}
	}
	return len(stateOrder)
}

func (s State) String() string {
	return string(s)
}

// transitions lists every permitted move. Any non-terminal state may also move to error.
var transitions = map[State][]State{
	StateInit:                {StateCheckingAllowance, StateReadyToSwap},
	StateCheckingAllowance:   {StateNeedsApproval, StateNeedsSignature, StateReadyToSwap},
	StateNeedsApproval:       {StateApproving},
	StateApproving:           {StateWaitingApproval, StateNeedsApproval},
	StateWaitingApproval:     {StateApprovalComplete},
	StateApprovalComplete:    {StateNeedsSignature, StateReadyToSwap},
	StateNeedsSignature:      {StateSigningPermit},
	StateSigningPermit:       {StateSignatureComplete, StateNeedsSignature},
	StateSignatureComplete:   {StateReadyToSwap},
	StateReadyToSwap:         {StateBuildingTx},
	StateBuildingTx:          {StateExecutingSwap},
	StateExecutingSwap:       {StateWaitingConfirmation, StateReadyToSwap},
	StateWaitingConfirmation: {StateComplete},
	StateError: {
		StateInit,
		StateCheckingAllowance,
		StateNeedsApproval,
		StateWaitingApproval,
		StateApprovalComplete,
		StateNeedsSignature,
		StateReadyToSwap,
		StateWaitingConfirmation,
	},
}

// CanTransition reports whether from may move to to
func CanTransition(from, to State) bool {
	if to == StateError {
		return !from.IsTerminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// rejectionRewind is where a declined wallet prompt sends each action state
var rejectionRewind = map[State]State{
	StateApproving:     StateNeedsApproval,
	StateSigningPermit: StateNeedsSignature,
	StateExecutingSwap: StateReadyToSwap,
}

// resumeAfter is where Retry picks up after a failure in each state
var resumeAfter = map[State]State{
	StateInit:                StateInit,
	StateCheckingAllowance:   StateCheckingAllowance,
	StateNeedsApproval:       StateNeedsApproval,
	StateApproving:           StateNeedsApproval,
	StateWaitingApproval:     StateCheckingAllowance,
	StateApprovalComplete:    StateApprovalComplete,
	StateNeedsSignature:      StateNeedsSignature,
	StateSigningPermit:       StateNeedsSignature,
	StateSignatureComplete:   StateReadyToSwap,
	StateReadyToSwap:         StateReadyToSwap,
	StateBuildingTx:          StateReadyToSwap,
	StateExecutingSwap:       StateReadyToSwap,
	StateWaitingConfirmation: StateReadyToSwap,
}
