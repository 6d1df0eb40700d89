package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Prompter asks the account holder to approve an action
type Prompter func(action string) bool

// ConfirmingWallet asks before every signature or transaction, the way a browser
// wallet pops up a confirmation. A declined prompt is reported as a user rejection.
type ConfirmingWallet struct {
	Wallet
	confirm Prompter
}

// NewConfirmingWallet wraps w so that signing and sending require confirmation
func NewConfirmingWallet(w Wallet, confirm Prompter) *ConfirmingWallet {
	return &ConfirmingWallet{Wallet: w, confirm: confirm}
}

// SignTypedData prompts, then signs
func (c *ConfirmingWallet) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	action := fmt.Sprintf("signing %s", data.PrimaryType)
	if !c.confirm(action) {
		return nil, Rejected(action)
	}
	return c.Wallet.SignTypedData(ctx, data)
}

// WriteContract prompts, then sends
func (c *ConfirmingWallet) WriteContract(ctx context.Context, call Call) (common.Hash, error) {
	action := fmt.Sprintf("sending %s to %s", call.Method, call.Address.Hex())
	if !c.confirm(action) {
		return common.Hash{}, Rejected(action)
	}
	return c.Wallet.WriteContract(ctx, call)
}
