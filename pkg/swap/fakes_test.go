package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"dex-swap/pkg/amount"
	"dex-swap/pkg/client"
	"dex-swap/pkg/fees"
	"dex-swap/pkg/route"
	"dex-swap/pkg/types"
	"dex-swap/pkg/wallet"
)

var (
	ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	permit2Addr = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
	routerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e1")

	tokenA = types.Token{Address: common.HexToAddress("0x00000000000000000000000000000000000000a1"), Symbol: "A", Decimals: 18}
	tokenB = types.Token{Address: common.HexToAddress("0x00000000000000000000000000000000000000b1"), Symbol: "B", Decimals: 18}
	tokenC = types.Token{Address: common.HexToAddress("0x00000000000000000000000000000000000000c1"), Symbol: "C", Decimals: 6}
	native = types.Token{Address: types.NativeSentinel, Symbol: "ETH", Decimals: 18}
)

func units(s string, decimals uint8) *big.Int {
	v, err := amount.ToSmallestUnits(s, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeWallet struct {
	mu sync.Mutex

	chainID   uint64
	allowance *big.Int

	approveErr error
	signErr    error
	swapErr    error

	revertApproval bool
	revertSwap     string // revert reason; empty means success
	receiptErr     error

	// gate, when set, blocks WaitForReceipt until closed
	gate    chan struct{}
	waiting chan struct{}

	nextHash    int64
	writes      []wallet.Call
	signed      []apitypes.TypedData
	approvals   map[common.Hash]*big.Int
	swaps       map[common.Hash]bool
	chainCalls  int
	allowReads  int
	switchCalls int
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		chainID:   1,
		allowance: new(big.Int),
		approvals: make(map[common.Hash]*big.Int),
		swaps:     make(map[common.Hash]bool),
	}
}

func (w *fakeWallet) Address() common.Address {
	return ownerAddr
}

func (w *fakeWallet) ChainID(context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chainCalls++
	return w.chainID, nil
}

func (w *fakeWallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.signErr != nil {
		return nil, w.signErr
	}
	w.signed = append(w.signed, data)
	return []byte{0x5e, 0x16, byte(len(w.signed))}, nil
}

func (w *fakeWallet) WriteContract(_ context.Context, call wallet.Call) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch call.Method {
	case "approve":
		if w.approveErr != nil {
			return common.Hash{}, w.approveErr
		}
	case "execute":
		if w.swapErr != nil {
			return common.Hash{}, w.swapErr
		}
	}

	w.nextHash++
	hash := common.BigToHash(big.NewInt(w.nextHash))
	w.writes = append(w.writes, call)

	if call.Method == "approve" {
		w.approvals[hash] = call.Args[1].(*big.Int)
	} else {
		w.swaps[hash] = true
	}
	return hash, nil
}

func (w *fakeWallet) WaitForReceipt(ctx context.Context, hash common.Hash) (wallet.Receipt, error) {
	w.mu.Lock()
	gate, waiting := w.gate, w.waiting
	w.waiting = nil
	w.mu.Unlock()

	if waiting != nil {
		close(waiting)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return wallet.Receipt{}, ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.receiptErr != nil {
		return wallet.Receipt{}, w.receiptErr
	}

	receipt := wallet.Receipt{TxHash: hash, Status: 1, BlockNumber: 100}
	if value, ok := w.approvals[hash]; ok {
		if w.revertApproval {
			receipt.Status = 0
			receipt.RevertReason = "execution reverted"
		} else {
			w.allowance = value
		}
	}
	if w.swaps[hash] && w.revertSwap != "" {
		receipt.Status = 0
		receipt.RevertReason = w.revertSwap
	}
	return receipt, nil
}

func (w *fakeWallet) ReadContract(_ context.Context, call wallet.Call) ([]interface{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if call.Method != "allowance" {
		return nil, fmt.Errorf("unexpected read %s", call.Method)
	}
	w.allowReads++
	return []interface{}{new(big.Int).Set(w.allowance)}, nil
}

func (w *fakeWallet) SwitchChain(_ context.Context, chainID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switchCalls++
	w.chainID = chainID
	return nil
}

func (w *fakeWallet) methods() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.writes))
	for _, c := range w.writes {
		out = append(out, c.Method)
	}
	return out
}

type fakeResolver struct {
	mu      sync.Mutex
	counter *big.Int
	route   types.SwapRoute
	err     error
	calls   int
	// block, when set, is waited on before answering
	block chan struct{}
	// started, when set, receives a value as each call begins
	started chan struct{}
}

func (r *fakeResolver) Resolve(ctx context.Context, _, _ types.Token, _ *big.Int, _ types.Direction) (route.Resolution, error) {
	r.mu.Lock()
	block, started := r.block, r.started
	r.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return route.Resolution{}, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return route.Resolution{}, r.err
	}
	return route.Resolution{Route: r.route, CounterAmount: new(big.Int).Set(r.counter)}, nil
}

type fakeFees struct {
	fees []fees.HopFee
	err  error
}

func (f *fakeFees) ResolveFees(context.Context, types.SwapRoute) ([]fees.HopFee, error) {
	return f.fees, f.err
}

type fakeFetcher struct {
	mu      sync.Mutex
	nonce   int64
	noNeed  bool
	err     error
	fetches int
	issued  []*types.PermitPayload
}

func (f *fakeFetcher) PreparePermit(_ context.Context, req client.PermitRequest) (*types.PermitPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	if f.noNeed {
		return &types.PermitPayload{NeedsPermit: false}, nil
	}
	// Every call re-issues the permit with a later deadline.
	deadline := big.NewInt(time.Now().Add(time.Hour + time.Duration(f.fetches)*time.Minute).Unix())
	payload := &types.PermitPayload{
		NeedsPermit: true,
		Domain:      apitypes.TypedDataDomain{Name: "Permit2", VerifyingContract: permit2Addr.Hex()},
		Types: apitypes.Types{
			"PermitSingle": {
				{Name: "details", Type: "PermitDetails"},
				{Name: "spender", Type: "address"},
				{Name: "sigDeadline", Type: "uint256"},
			},
			"PermitDetails": {
				{Name: "token", Type: "address"},
				{Name: "amount", Type: "uint160"},
				{Name: "expiration", Type: "uint48"},
				{Name: "nonce", Type: "uint48"},
			},
		},
		Message: types.PermitMessage{
			Details: types.PermitDetails{
				Token:      req.Token,
				Amount:     types.NewBigInt(big.NewInt(1_000_000)),
				Expiration: types.NewBigInt(deadline),
				Nonce:      types.NewBigInt(big.NewInt(f.nonce)),
			},
			Spender:     routerAddr,
			SigDeadline: types.NewBigInt(deadline),
		},
	}
	f.issued = append(f.issued, payload)
	return payload, nil
}

func (f *fakeFetcher) setNonce(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce = n
}

type fakeBuilder struct {
	mu   sync.Mutex
	last client.BuildTxRequest
	err  error
	n    int
}

func (b *fakeBuilder) BuildTx(_ context.Context, req client.BuildTxRequest) (*client.SwapTx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	b.last = req
	if b.err != nil {
		return nil, b.err
	}
	return &client.SwapTx{
		To:           routerAddr,
		Commands:     []byte{0x0b},
		Inputs:       nil,
		Deadline:     types.NewBigInt(big.NewInt(time.Now().Add(30 * time.Minute).Unix())),
		TouchedPools: []string{"pool-ab"},
	}, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []types.SuccessRecord
}

func (h *fakeHistory) Append(r types.SuccessRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) ofType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) transitions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.Type == EventStateChanged {
			out = append(out, string(e.From)+">"+string(e.To))
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
