package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"dex-swap/pkg/amount"
	"dex-swap/pkg/client"
	"dex-swap/pkg/fees"
	"dex-swap/pkg/permit"
	"dex-swap/pkg/route"
	"dex-swap/pkg/types"
)

// Attempt is one swap the user asked for. Token values are snapshots taken when
// the attempt was prepared; later balance or price refreshes do not affect it.
type Attempt struct {
	ID        string
	From      types.Token
	To        types.Token
	Direction types.Direction
	// Amount is the human-readable amount of the side fixed by Direction
	Amount string
	// CounterAmount is the latest quoted amount of the other side, if known
	CounterAmount string
	// Slippage is the tolerance in percent
	Slippage float64
}

// fixedToken is the token Amount is denominated in
func (a Attempt) fixedToken() types.Token {
	if a.Direction == types.ExactOutput {
		return a.To
	}
	return a.From
}

// attemptContext carries everything one attempt produces between steps.
// Fields are written by the running dispatch only, under the orchestrator lock.
type attemptContext struct {
	Attempt

	amount     *big.Int // Amount in smallest units
	requiredIn *big.Int // Most input the router may pull

	permitReq permit.Request
	decision  permit.Decision
	signature []byte

	approvalHash common.Hash

	resolution route.Resolution
	fees       []fees.HopFee
	limit      amount.Bounded
	tx         *client.SwapTx
	swapHash   common.Hash
}

func newAttemptContext(a Attempt) *attemptContext {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return &attemptContext{Attempt: a}
}

// run ties a dispatch to the attempt generation it started in
type run struct {
	gen uint64
	att *attemptContext
}
