// Package permit fetches Permit2 payloads and caches the signatures made over them.
package permit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dex-swap/pkg/client"
	"dex-swap/pkg/types"
)

// ErrPermitService marks failures of the permit preparation endpoint
var ErrPermitService = errors.New("permit service error")

// Fetcher prepares permit payloads
type Fetcher interface {
	PreparePermit(ctx context.Context, req client.PermitRequest) (*types.PermitPayload, error)
}

// Request identifies the permit for one owner, token, spender and chain
type Request struct {
	Owner    common.Address
	Token    types.Token
	Spender  common.Address
	ChainID  uint64
	AmountIn string
}

type cacheKey struct {
	owner   common.Address
	token   common.Address
	spender common.Address
	chainID uint64
}

func (r Request) key() cacheKey {
	return cacheKey{owner: r.Owner, token: r.Token.Address, spender: r.Spender, chainID: r.ChainID}
}

// Entry is a signature together with the nonce it was made for
type Entry struct {
	Signature []byte
	Nonce     *big.Int
	Payload   *types.PermitPayload
	SignedAt  time.Time
}

// Decision tells the caller what to do after fetching a permit
type Decision struct {
	Payload        *types.PermitPayload
	NeedsSignature bool
	// Signature is set when a cached signature is still valid for Payload
	Signature []byte
}

// NeedsPermit reports whether a permit is part of the swap at all
func (d Decision) NeedsPermit() bool {
	return d.Payload != nil && d.Payload.NeedsPermit
}

// Manager owns the signature cache of one swap session
type Manager struct {
	fetcher Fetcher
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]Entry
}

// NewManager creates a new permit manager
func NewManager(fetcher Fetcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
		entries: make(map[cacheKey]Entry),
	}
}

// Fetch prepares the permit for req and decides whether a new signature is needed.
// A cached signature is reused only when its nonce equals the fresh payload's nonce
// and its deadline has not passed; otherwise it is discarded.
func (m *Manager) Fetch(ctx context.Context, req Request) (Decision, error) {
	payload, err := m.fetcher.PreparePermit(ctx, client.PermitRequest{
		Owner:       req.Owner,
		Token:       req.Token.Address,
		TokenSymbol: req.Token.Symbol,
		AmountIn:    req.AmountIn,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrPermitService, err)
	}

	if !payload.NeedsPermit {
		return Decision{Payload: payload}, nil
	}
	if payload.Nonce() == nil {
		return Decision{}, fmt.Errorf("%w: permit payload has no nonce", ErrPermitService)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := req.key()
	entry, ok := m.entries[key]
	if !ok {
		return Decision{Payload: payload, NeedsSignature: true}, nil
	}

	if entry.Nonce.Cmp(payload.Nonce()) != 0 {
		m.logger.Debug("permit nonce changed, discarding signature",
			zap.String("token", req.Token.String()),
			zap.String("cachedNonce", entry.Nonce.String()),
			zap.String("nonce", payload.Nonce().String()))
		delete(m.entries, key)
		return Decision{Payload: payload, NeedsSignature: true}, nil
	}

	if entry.Payload.Expired(m.now()) {
		m.logger.Debug("permit signature deadline passed, discarding signature",
			zap.String("token", req.Token.String()))
		delete(m.entries, key)
		return Decision{Payload: payload, NeedsSignature: true}, nil
	}

	if !coversAmount(entry.Payload, payload) {
		m.logger.Debug("permit amount grew past the signed amount, discarding signature",
			zap.String("token", req.Token.String()))
		delete(m.entries, key)
		return Decision{Payload: payload, NeedsSignature: true}, nil
	}

	// The signature only verifies against the message it was made over.
	return Decision{Payload: entry.Payload, Signature: entry.Signature}, nil
}

// coversAmount reports whether the signed permit allows at least the amount the fresh one asks for
func coversAmount(signed, fresh *types.PermitPayload) bool {
	want := fresh.Message.Details.Amount
	if want == nil || want.Int == nil {
		return true
	}
	have := signed.Message.Details.Amount
	if have == nil || have.Int == nil {
		return false
	}
	return have.Int.Cmp(want.Int) >= 0
}

// Store records a signature made over payload
func (m *Manager) Store(req Request, payload *types.PermitPayload, signature []byte) error {
	nonce := payload.Nonce()
	if nonce == nil {
		return fmt.Errorf("cannot store signature for payload without a permit nonce")
	}
	if len(signature) == 0 {
		return fmt.Errorf("empty signature")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[req.key()] = Entry{
		Signature: append([]byte(nil), signature...),
		Nonce:     new(big.Int).Set(nonce),
		Payload:   payload,
		SignedAt:  m.now(),
	}
	return nil
}

// Cached returns the stored signature for req
func (m *Manager) Cached(req Request) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[req.key()]
	return entry, ok
}

// Invalidate forgets the signature for req
func (m *Manager) Invalidate(req Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, req.key())
}

// Reset forgets every signature
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[cacheKey]Entry)
}
