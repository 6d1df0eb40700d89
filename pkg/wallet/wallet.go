// Package wallet is the boundary between the swap flow and an account that can
// read chain state, sign typed data and send transactions.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Wallet error codes (EIP-1193 and EIP-3085)
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnknownChain      = 4902
	CodeChainDisconnected = 4901
)

var ErrReceiptTimeout = errors.New("timed out waiting for receipt")

// RPCError is a structured wallet error
type RPCError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Rejected returns the error a wallet reports when the user declines a request
func Rejected(action string) *RPCError {
	return &RPCError{Code: CodeUserRejected, Message: "user rejected " + action}
}

// Call is a contract function invocation
type Call struct {
	Address common.Address
	ABI     abi.ABI
	Method  string
	Args    []interface{}
	Value   *big.Int
}

// Pack encodes the call data
func (c Call) Pack() ([]byte, error) {
	data, err := c.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s data: %w", c.Method, err)
	}
	return data, nil
}

// Receipt is the outcome of a mined transaction
type Receipt struct {
	TxHash       common.Hash
	Status       uint64
	BlockNumber  uint64
	GasUsed      uint64
	RevertReason string
}

// Succeeded reports whether the transaction executed without reverting
func (r Receipt) Succeeded() bool {
	return r.Status == 1
}

// Wallet is what the swap flow needs from a connected account
type Wallet interface {
	Address() common.Address
	ChainID(ctx context.Context) (uint64, error)
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
	WriteContract(ctx context.Context, call Call) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (Receipt, error)
	ReadContract(ctx context.Context, call Call) ([]interface{}, error)
	SwitchChain(ctx context.Context, chainID uint64) error
}

// Allowance reads the ERC-20 allowance of owner for spender
func Allowance(ctx context.Context, w Wallet, token, owner, spender common.Address) (*big.Int, error) {
	return readUint(ctx, w, Call{Address: token, ABI: ERC20ABI, Method: "allowance", Args: []interface{}{owner, spender}})
}

// BalanceOf reads the ERC-20 balance of account
func BalanceOf(ctx context.Context, w Wallet, token, account common.Address) (*big.Int, error) {
	return readUint(ctx, w, Call{Address: token, ABI: ERC20ABI, Method: "balanceOf", Args: []interface{}{account}})
}

func readUint(ctx context.Context, w Wallet, call Call) (*big.Int, error) {
	out, err := w.ReadContract(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", call.Method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected %s result length %d", call.Method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", call.Method, out[0])
	}
	return v, nil
}
