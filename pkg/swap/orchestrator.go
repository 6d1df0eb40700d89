// Package swap drives a token swap through allowance, permit, build and
// confirmation steps as an explicit state machine.
package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dex-swap/pkg/amount"
	"dex-swap/pkg/client"
	"dex-swap/pkg/fees"
	"dex-swap/pkg/permit"
	"dex-swap/pkg/route"
	"dex-swap/pkg/types"
	"dex-swap/pkg/wallet"
)

// FeeResolver aggregates per-hop fees for a route
type FeeResolver interface {
	ResolveFees(ctx context.Context, route types.SwapRoute) ([]fees.HopFee, error)
}

// PermitStore fetches permits and remembers signatures
type PermitStore interface {
	Fetch(ctx context.Context, req permit.Request) (permit.Decision, error)
	Store(req permit.Request, payload *types.PermitPayload, signature []byte) error
}

// TxBuilder encodes the router transaction
type TxBuilder interface {
	BuildTx(ctx context.Context, req client.BuildTxRequest) (*client.SwapTx, error)
}

// Recorder persists completed swaps
type Recorder interface {
	Append(record types.SuccessRecord) error
}

// Deps are the collaborators of an Orchestrator
type Deps struct {
	Wallet   wallet.Wallet
	Resolver route.Resolver
	Fees     FeeResolver
	Permits  PermitStore
	Builder  TxBuilder
	Sink     Sink
	History  Recorder // optional
	Logger   *zap.Logger
}

// Options configure an Orchestrator
type Options struct {
	ChainID uint64
	// Permit2 is the contract ERC-20 allowances are granted to
	Permit2 common.Address
	// Router is the spender named in permits and the target of swap transactions
	Router            common.Address
	ExplorerURL       string
	UnlimitedApproval bool
	ReceiptTimeout    time.Duration
}

// Snapshot is a consistent view of the orchestrator
type Snapshot struct {
	AttemptID      string
	State          State
	Resume         State
	InFlight       bool
	CompletedSteps []State
	LastError      *Error
	ApprovalTx     common.Hash
	SwapTx         common.Hash
	Route          types.SwapRoute
	Fees           []fees.HopFee
	Limit          *big.Int
	LimitFormatted string
	Degraded       bool
}

// Orchestrator owns the progress of one swap attempt at a time
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	resume     State
	generation uint64
	inFlight   bool
	attempt    *attemptContext
	completed  map[State]struct{}
	lastErr    *Error
}

// New creates a new orchestrator in the init state with no attempt prepared
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{
		deps:      deps,
		opts:      opts,
		logger:    deps.Logger,
		state:     StateInit,
		completed: make(map[State]struct{}),
	}
}

// Prepare installs a new attempt. Work still running for an older attempt is
// invalidated; its results are dropped.
func (o *Orchestrator) Prepare(a Attempt) string {
	o.mu.Lock()
	o.generation++
	o.inFlight = false
	o.attempt = newAttemptContext(a)
	from := o.state
	o.state = StateInit
	o.resume = ""
	o.lastErr = nil
	o.completed = make(map[State]struct{})
	id := o.attempt.ID
	o.mu.Unlock()

	o.logger.Debug("swap attempt prepared",
		zap.String("attempt", id),
		zap.String("from", a.From.String()),
		zap.String("to", a.To.String()),
		zap.String("amount", a.Amount),
		zap.String("direction", string(a.Direction)))

	if from != StateInit {
		o.deps.Sink.Emit(Event{Type: EventStateChanged, AttemptID: id, From: from, To: StateInit})
	}
	return id
}

// Reset abandons the current attempt and starts a fresh one with the same intent.
// Permit signatures and fee caches live in the collaborators and survive.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.attempt == nil {
		o.mu.Unlock()
		return
	}
	a := o.attempt.Attempt
	o.mu.Unlock()

	a.ID = ""
	o.Prepare(a)
}

// UpdateSlippage changes the tolerance of the current attempt while it is not running
func (o *Orchestrator) UpdateSlippage(percent float64) error {
	if _, err := amount.SlippageBps(percent); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.attempt == nil {
		return ErrNoAttempt
	}
	if o.inFlight {
		return fmt.Errorf("cannot change slippage while a step is running")
	}
	o.attempt.Slippage = percent
	if o.attempt.Direction == types.ExactOutput {
		o.attempt.requiredIn = nil
	}
	return nil
}

// State returns the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CompletedSteps returns the completed steps in progression order
func (o *Orchestrator) CompletedSteps() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.completedLocked()
}

func (o *Orchestrator) completedLocked() []State {
	steps := make([]State, 0, len(o.completed))
	for s := range o.completed {
		steps = append(steps, s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].index() < steps[j].index() })
	return steps
}

// LastError returns the most recent failure of the current attempt
func (o *Orchestrator) LastError() *Error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Snapshot returns the current state with everything the attempt produced so far
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		State:          o.state,
		Resume:         o.resume,
		InFlight:       o.inFlight,
		CompletedSteps: o.completedLocked(),
		LastError:      o.lastErr,
	}
	if att := o.attempt; att != nil {
		snap.AttemptID = att.ID
		snap.ApprovalTx = att.approvalHash
		snap.SwapTx = att.swapHash
		snap.Route = att.resolution.Route
		snap.Fees = append([]fees.HopFee(nil), att.fees...)
		if att.limit.Amount != nil {
			snap.Limit = new(big.Int).Set(att.limit.Amount)
			snap.LimitFormatted = att.limit.Formatted
			snap.Degraded = att.limit.Degraded
		}
	}
	return snap
}

// Retry resumes a failed attempt from the step preceding the failure
func (o *Orchestrator) Retry(ctx context.Context) (State, error) {
	if s := o.State(); s != StateError {
		return s, fmt.Errorf("nothing to retry in state %s", s)
	}
	return o.HandleSwap(ctx)
}

// SwitchNetwork asks the wallet to move to the swap chain
func (o *Orchestrator) SwitchNetwork(ctx context.Context) error {
	if err := o.deps.Wallet.SwitchChain(ctx, o.opts.ChainID); err != nil {
		e := *Classify(err)
		e.Op = "switch_network"

		o.mu.Lock()
		e.State = o.state
		o.lastErr = &e
		id := o.attemptIDLocked()
		o.mu.Unlock()

		o.deps.Sink.Emit(Event{Type: EventError, AttemptID: id, From: e.State, To: e.State, Error: &e})
		return &e
	}

	o.mu.Lock()
	if o.lastErr != nil && o.lastErr.Kind == KindChainMismatch {
		o.lastErr = nil
	}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) attemptIDLocked() string {
	if o.attempt == nil {
		return ""
	}
	return o.attempt.ID
}

// HandleSwap is the single user trigger: it submits from init, confirms in the
// idle states and retries from error, then runs the automatic steps until the
// attempt waits for the user again or ends. A call while another one is running
// is a no-op returning the current state.
func (o *Orchestrator) HandleSwap(ctx context.Context) (State, error) {
	o.mu.Lock()
	if o.inFlight {
		state := o.state
		o.mu.Unlock()
		o.logger.Debug("swap step already running", zap.String("state", string(state)))
		return state, nil
	}
	if o.attempt == nil {
		o.mu.Unlock()
		return StateInit, ErrNoAttempt
	}
	o.inFlight = true
	r := &run{gen: o.generation, att: o.attempt}
	state := o.state
	resume := o.resume
	o.mu.Unlock()

	defer o.land(r)

	var next State
	switch state {
	case StateComplete:
		return state, nil
	case StateInit:
		return o.submit(ctx, r)
	case StateNeedsApproval:
		next = StateApproving
	case StateNeedsSignature:
		next = StateSigningPermit
	case StateReadyToSwap:
		next = StateBuildingTx
	case StateError:
		next = resume
		if next == "" {
			next = StateInit
		}
	default:
		return o.drive(ctx, r, state)
	}

	if err := o.checkChain(ctx); err != nil {
		return o.fail(r, state, err)
	}

	if !o.advance(r, state, next) {
		return o.State(), nil
	}
	if next == StateInit {
		return next, nil
	}
	return o.drive(ctx, r, next)
}

// land clears the in-flight flag unless a newer attempt took over
func (o *Orchestrator) land(r *run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generation == r.gen {
		o.inFlight = false
	}
}

func (o *Orchestrator) current(r *run) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation == r.gen
}

// record applies fn to the attempt under the lock
func (o *Orchestrator) record(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
}

func (o *Orchestrator) submit(ctx context.Context, r *run) (State, error) {
	if err := o.validate(r); err != nil {
		return o.fail(r, StateInit, err)
	}
	if err := o.checkChain(ctx); err != nil {
		return o.fail(r, StateInit, err)
	}

	if r.att.From.IsNative() {
		if !o.advance(r, StateInit, StateReadyToSwap) {
			return o.State(), nil
		}
		return StateReadyToSwap, nil
	}

	if !o.advance(r, StateInit, StateCheckingAllowance) {
		return o.State(), nil
	}
	return o.drive(ctx, r, StateCheckingAllowance)
}

// drive runs automatic states in order until an idle or terminal state
func (o *Orchestrator) drive(ctx context.Context, r *run, state State) (State, error) {
	for !state.IsIdle() && !state.IsTerminal() {
		next, events, err := o.step(ctx, r, state)
		if err != nil {
			return o.fail(r, state, err)
		}
		if !o.advance(r, state, next, events...) {
			return o.State(), nil
		}
		state = next
	}

	if state == StateComplete {
		o.finish(r)
	}
	return state, nil
}

// advance moves from -> to when r is still the current attempt, then emits
// the state change followed by extra events
func (o *Orchestrator) advance(r *run, from, to State, extra ...Event) bool {
	o.mu.Lock()
	if o.generation != r.gen {
		o.mu.Unlock()
		o.logger.Debug("dropping stale step result",
			zap.String("attempt", r.att.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return false
	}
	if !CanTransition(from, to) {
		o.mu.Unlock()
		o.logger.DPanic("invalid swap transition", zap.String("from", string(from)), zap.String("to", string(to)))
		return false
	}

	o.state = to
	switch to {
	case StateApprovalComplete, StateSignatureComplete:
		o.completed[to] = struct{}{}
	case StateReadyToSwap:
		if len(r.att.signature) > 0 {
			o.completed[StateSignatureComplete] = struct{}{}
		}
	case StateComplete:
		o.completed[StateComplete] = struct{}{}
	}
	if from == StateError {
		o.resume = ""
	}
	o.mu.Unlock()

	o.logger.Debug("swap state changed",
		zap.String("attempt", r.att.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	o.deps.Sink.Emit(Event{Type: EventStateChanged, AttemptID: r.att.ID, From: from, To: to})
	for _, e := range extra {
		e.AttemptID = r.att.ID
		e.From, e.To = from, to
		o.deps.Sink.Emit(e)
	}
	return true
}

// fail classifies err raised in state from and moves the attempt to where the
// failure kind sends it. Exactly one error event is emitted.
func (o *Orchestrator) fail(r *run, from State, err error) (State, error) {
	e := *Classify(err)
	e.State = from
	if e.Op == "" {
		e.Op = string(from)
	}

	o.mu.Lock()
	if o.generation != r.gen {
		state := o.state
		o.mu.Unlock()
		o.logger.Debug("dropping stale failure", zap.String("attempt", r.att.ID), zap.Error(err))
		return state, nil
	}

	to := StateError
	switch {
	case from == StateError:
		to = StateError
	case e.Kind == KindValidation && from == StateInit:
		to = StateInit
	case e.Kind == KindChainMismatch && from.IsIdle():
		to = from
	case e.Kind == KindUserRejection:
		if rewind, ok := rejectionRewind[from]; ok {
			to = rewind
		} else if from.IsIdle() {
			to = from
		}
	}

	if to == StateError && from != StateError {
		o.resume = o.resumeFor(r, from, &e)
	}
	o.state = to
	o.lastErr = &e
	o.mu.Unlock()

	o.logger.Info("swap step failed",
		zap.String("attempt", r.att.ID),
		zap.String("state", string(from)),
		zap.String("kind", string(e.Kind)),
		zap.String("code", e.Code),
		zap.Error(err))

	if to != from {
		o.deps.Sink.Emit(Event{Type: EventStateChanged, AttemptID: r.att.ID, From: from, To: to})
	}
	o.deps.Sink.Emit(Event{Type: EventError, AttemptID: r.att.ID, From: from, To: to, Error: &e})

	return to, &e
}

// resumeFor picks the retry state. A wait that failed for any reason other than a
// revert keeps waiting on the same transaction instead of sending a new one. An
// input limit above the approved amount goes back to the allowance check.
func (o *Orchestrator) resumeFor(r *run, from State, e *Error) State {
	reverted := e.Kind == KindReverted || e.Kind == KindSlippage
	switch {
	case errors.Is(e, ErrInputAboveApproval):
		return StateCheckingAllowance
	case from == StateWaitingApproval && !reverted && r.att.approvalHash != (common.Hash{}):
		return StateWaitingApproval
	case from == StateWaitingConfirmation && !reverted && r.att.swapHash != (common.Hash{}):
		return StateWaitingConfirmation
	}
	if s, ok := resumeAfter[from]; ok {
		return s
	}
	return StateInit
}

func (o *Orchestrator) checkChain(ctx context.Context) error {
	if o.opts.ChainID == 0 {
		return nil
	}
	id, err := o.deps.Wallet.ChainID(ctx)
	if err != nil {
		return err
	}
	if id != o.opts.ChainID {
		return fmt.Errorf("%w: wallet is on chain %d, swap is on chain %d", ErrChainMismatch, id, o.opts.ChainID)
	}
	return nil
}

// validate checks the attempt locally, before any network call
func (o *Orchestrator) validate(r *run) error {
	att := r.att

	if !att.Direction.Valid() {
		return fmt.Errorf("%w: unknown direction %q", amount.ErrInvalidAmount, att.Direction)
	}
	if att.From.Address == att.To.Address {
		return ErrSameToken
	}
	if _, err := amount.SlippageBps(att.Slippage); err != nil {
		return err
	}

	fixed, err := amount.ToSmallestUnits(att.Amount, att.fixedToken().Decimals)
	if err != nil {
		return err
	}
	if fixed.Sign() == 0 {
		return fmt.Errorf("%w: amount must be greater than zero", amount.ErrInvalidAmount)
	}

	var required *big.Int
	switch {
	case att.Direction == types.ExactInput:
		required = fixed
	case att.CounterAmount != "":
		quoted, err := amount.ToSmallestUnits(att.CounterAmount, att.From.Decimals)
		if err != nil {
			return err
		}
		bound, err := amount.ApplySlippageBound(quoted, att.From.Decimals, att.Slippage, amount.MaxInput)
		if err != nil {
			return err
		}
		required = bound.Amount
	}

	// Exact output without a known counter amount is checked once the quote resolves.
	if required != nil {
		if err := checkBalance(att, required); err != nil {
			return err
		}
	}

	o.record(func() {
		att.amount = fixed
		att.requiredIn = required
	})
	return nil
}

// checkBalance fails when the known input balance cannot cover required
func checkBalance(att *attemptContext, required *big.Int) error {
	if att.From.Balance == "" {
		return nil
	}
	balance, err := amount.ToSmallestUnits(att.From.Balance, att.From.Decimals)
	if err != nil {
		return fmt.Errorf("%w: unreadable balance %q", amount.ErrInvalidAmount, att.From.Balance)
	}
	if balance.Cmp(required) < 0 {
		return fmt.Errorf("%w: have %s %s, need %s", ErrInsufficientFunds,
			att.From.Balance, att.From.Symbol, amount.FormatFromSmallestUnits(required, att.From.Decimals))
	}
	return nil
}

// step runs the entry action of an automatic state
func (o *Orchestrator) step(ctx context.Context, r *run, state State) (State, []Event, error) {
	switch state {
	case StateCheckingAllowance:
		return o.checkAllowance(ctx, r)
	case StateApproving:
		return o.approve(ctx, r)
	case StateWaitingApproval:
		if _, err := o.waitReceipt(ctx, r.att.approvalHash); err != nil {
			return "", nil, err
		}
		return StateApprovalComplete, []Event{{Type: EventApprovalConfirmed, TxHash: r.att.approvalHash}}, nil
	case StateApprovalComplete:
		return o.fetchPermit(ctx, r)
	case StateSigningPermit:
		return o.signPermit(ctx, r)
	case StateSignatureComplete:
		return StateReadyToSwap, nil, nil
	case StateBuildingTx:
		return o.buildTx(ctx, r)
	case StateExecutingSwap:
		return o.executeSwap(ctx, r)
	case StateWaitingConfirmation:
		if _, err := o.waitReceipt(ctx, r.att.swapHash); err != nil {
			return "", nil, err
		}
		return StateComplete, []Event{{Type: EventSwapConfirmed, TxHash: r.att.swapHash}}, nil
	}
	return "", nil, fmt.Errorf("no action for state %s", state)
}

// requiredInput is the most input the router may pull, resolving a quote when the
// exact-output counter amount is not known yet
func (o *Orchestrator) requiredInput(ctx context.Context, r *run) (*big.Int, error) {
	att := r.att
	if att.requiredIn != nil {
		return att.requiredIn, nil
	}

	res, err := o.deps.Resolver.Resolve(ctx, att.From, att.To, att.amount, att.Direction)
	if err != nil {
		return nil, err
	}
	if res.CounterAmount == nil {
		return nil, route.ErrNoRoute
	}
	bound, err := amount.ApplySlippageBound(res.CounterAmount, att.From.Decimals, att.Slippage, amount.MaxInput)
	if err != nil {
		return nil, err
	}
	if err := checkBalance(att, bound.Amount); err != nil {
		return nil, err
	}

	o.record(func() { att.requiredIn = bound.Amount })
	return bound.Amount, nil
}

func (o *Orchestrator) checkAllowance(ctx context.Context, r *run) (State, []Event, error) {
	required, err := o.requiredInput(ctx, r)
	if err != nil {
		return "", nil, err
	}

	owner := o.deps.Wallet.Address()
	allowance, err := wallet.Allowance(ctx, o.deps.Wallet, r.att.From.Address, owner, o.opts.Permit2)
	if err != nil {
		return "", nil, err
	}

	o.logger.Debug("allowance checked",
		zap.String("token", r.att.From.String()),
		zap.String("allowance", allowance.String()),
		zap.String("required", required.String()))

	if allowance.Cmp(required) < 0 {
		return StateNeedsApproval, nil, nil
	}
	return o.fetchPermit(ctx, r)
}

func (o *Orchestrator) approve(ctx context.Context, r *run) (State, []Event, error) {
	value := r.att.requiredIn
	if o.opts.UnlimitedApproval || value == nil {
		value = math.MaxBig256
	}

	hash, err := o.deps.Wallet.WriteContract(ctx, wallet.Call{
		Address: r.att.From.Address,
		ABI:     wallet.ERC20ABI,
		Method:  "approve",
		Args:    []interface{}{o.opts.Permit2, new(big.Int).Set(value)},
	})
	if err != nil {
		return "", nil, err
	}

	o.record(func() { r.att.approvalHash = hash })
	return StateWaitingApproval, []Event{{Type: EventApprovalSubmitted, TxHash: hash}}, nil
}

// fetchPermit asks for the permit and decides whether the user must sign
func (o *Orchestrator) fetchPermit(ctx context.Context, r *run) (State, []Event, error) {
	att := r.att
	required, err := o.requiredInput(ctx, r)
	if err != nil {
		return "", nil, err
	}
	req := permit.Request{
		Owner:    o.deps.Wallet.Address(),
		Token:    att.From,
		Spender:  o.opts.Router,
		ChainID:  o.opts.ChainID,
		AmountIn: required.String(),
	}

	decision, err := o.deps.Permits.Fetch(ctx, req)
	if err != nil {
		return "", nil, err
	}

	o.record(func() {
		att.permitReq = req
		att.decision = decision
		att.signature = decision.Signature
	})

	switch {
	case !decision.NeedsPermit():
		return StateReadyToSwap, nil, nil
	case decision.NeedsSignature:
		return StateNeedsSignature, nil, nil
	}
	o.logger.Debug("reusing permit signature", zap.String("nonce", decision.Payload.Nonce().String()))
	return StateReadyToSwap, nil, nil
}

func (o *Orchestrator) signPermit(ctx context.Context, r *run) (State, []Event, error) {
	att := r.att
	if !att.decision.NeedsPermit() {
		return "", nil, fmt.Errorf("no permit to sign")
	}

	data, err := att.decision.Payload.TypedData()
	if err != nil {
		return "", nil, err
	}

	sig, err := o.deps.Wallet.SignTypedData(ctx, data)
	if err != nil {
		return "", nil, err
	}
	if !o.current(r) {
		return "", nil, nil
	}
	if err := o.deps.Permits.Store(att.permitReq, att.decision.Payload, sig); err != nil {
		return "", nil, err
	}

	o.record(func() { att.signature = sig })
	return StateSignatureComplete, []Event{{Type: EventSignatureObtained}}, nil
}

func (o *Orchestrator) buildTx(ctx context.Context, r *run) (State, []Event, error) {
	att := r.att

	res, err := o.deps.Resolver.Resolve(ctx, att.From, att.To, att.amount, att.Direction)
	if err != nil {
		return "", nil, err
	}
	if res.CounterAmount == nil {
		return "", nil, route.ErrNoRoute
	}

	hopFees, err := o.deps.Fees.ResolveFees(ctx, res.Route)
	if err != nil {
		return "", nil, err
	}

	var limit amount.Bounded
	if att.Direction == types.ExactOutput {
		limit, err = amount.ApplySlippageBound(res.CounterAmount, att.From.Decimals, att.Slippage, amount.MaxInput)
	} else {
		limit, err = amount.ApplySlippageBound(res.CounterAmount, att.To.Decimals, att.Slippage, amount.MinOutput)
	}
	if err != nil {
		return "", nil, err
	}
	if limit.Degraded {
		o.logger.Warn("slippage bound computed with reduced precision", zap.String("limit", limit.Formatted))
	}
	if att.Direction == types.ExactOutput && att.requiredIn != nil && limit.Amount.Cmp(att.requiredIn) > 0 {
		if err := checkBalance(att, limit.Amount); err != nil {
			return "", nil, err
		}
		approved := att.requiredIn
		o.record(func() { att.requiredIn = limit.Amount })
		return "", nil, fmt.Errorf("%w: need up to %s %s, approved %s", ErrInputAboveApproval,
			limit.Formatted, att.From.Symbol, amount.FormatFromSmallestUnits(approved, att.From.Decimals))
	}

	req := client.BuildTxRequest{
		UserAddress: o.deps.Wallet.Address(),
		FromToken:   att.From.Address,
		ToToken:     att.To.Address,
		Direction:   att.Direction,
		Amount:      att.amount,
		LimitAmount: limit.Amount,
	}
	if att.decision.NeedsPermit() {
		if len(att.signature) == 0 {
			return "", nil, fmt.Errorf("permit signature missing")
		}
		req.PermitSignature = att.signature
		req.PermitFields = &att.decision.Payload.Message
	}

	tx, err := o.deps.Builder.BuildTx(ctx, req)
	if err != nil {
		return "", nil, err
	}

	o.record(func() {
		att.resolution = res
		att.fees = hopFees
		att.limit = limit
		att.tx = tx
	})
	return StateExecutingSwap, nil, nil
}

func (o *Orchestrator) executeSwap(ctx context.Context, r *run) (State, []Event, error) {
	tx := r.att.tx
	if tx == nil {
		return "", nil, fmt.Errorf("no transaction built")
	}

	hash, err := o.deps.Wallet.WriteContract(ctx, wallet.Call{
		Address: tx.To,
		ABI:     wallet.RouterABI,
		Method:  "execute",
		Args:    []interface{}{[]byte(tx.Commands), tx.InputsBytes(), tx.Deadline.Int},
		Value:   tx.ValueWei(),
	})
	if err != nil {
		return "", nil, err
	}

	o.record(func() { r.att.swapHash = hash })
	return StateWaitingConfirmation, []Event{{Type: EventSwapSubmitted, TxHash: hash}}, nil
}

func (o *Orchestrator) waitReceipt(ctx context.Context, hash common.Hash) (wallet.Receipt, error) {
	if o.opts.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.ReceiptTimeout)
		defer cancel()
	}

	receipt, err := o.deps.Wallet.WaitForReceipt(ctx, hash)
	if err != nil {
		return receipt, err
	}
	if !receipt.Succeeded() {
		return receipt, &RevertedError{TxHash: hash, Reason: receipt.RevertReason}
	}
	return receipt, nil
}

// finish publishes the success record and asks for balance refreshes
func (o *Orchestrator) finish(r *run) {
	if !o.current(r) {
		return
	}

	att := r.att
	record := o.successRecord(att)

	if o.deps.History != nil {
		if err := o.deps.History.Append(record); err != nil {
			o.logger.Warn("failed to record swap history", zap.String("tx", record.TxHash), zap.Error(err))
		}
	}

	o.logger.Info("swap complete",
		zap.String("attempt", att.ID),
		zap.String("tx", record.TxHash),
		zap.Strings("pools", record.TouchedPools))

	o.deps.Sink.Emit(Event{Type: EventSuccess, AttemptID: att.ID, To: StateComplete, TxHash: att.swapHash, Success: &record})
	o.deps.Sink.Emit(Event{Type: EventBalanceRefresh, AttemptID: att.ID, To: StateComplete, Tokens: []types.Token{att.From, att.To}})
}

func (o *Orchestrator) successRecord(att *attemptContext) types.SuccessRecord {
	record := types.SuccessRecord{
		ID:          uuid.NewString(),
		TxHash:      att.swapHash.Hex(),
		FromSymbol:  att.From.Symbol,
		ToSymbol:    att.To.Symbol,
		ChainID:     o.opts.ChainID,
		CompletedAt: time.Now().UTC(),
	}

	counter := att.resolution.CounterAmount
	if att.Direction == types.ExactOutput {
		record.ToAmount = att.Amount
		if counter != nil {
			record.FromAmount = amount.FormatFromSmallestUnits(counter, att.From.Decimals)
		}
	} else {
		record.FromAmount = att.Amount
		if counter != nil {
			record.ToAmount = amount.FormatFromSmallestUnits(counter, att.To.Decimals)
		}
	}

	if att.tx != nil && len(att.tx.TouchedPools) > 0 {
		record.TouchedPools = att.tx.TouchedPools
	} else {
		record.TouchedPools = att.resolution.Route.TouchedPools()
	}

	if o.opts.ExplorerURL != "" {
		record.ExplorerURL = strings.TrimRight(o.opts.ExplorerURL, "/") + "/tx/" + record.TxHash
	}
	return record
}
