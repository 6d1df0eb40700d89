package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dex-swap/pkg/amount"
	"dex-swap/pkg/client"
	"dex-swap/pkg/permit"
	"dex-swap/pkg/route"
	"dex-swap/pkg/wallet"
)

// Kind is the category of a swap failure
type Kind string

const (
	KindValidation    Kind = "ValidationError"
	KindUserRejection Kind = "UserRejection"
	KindSlippage      Kind = "SlippageError"
	KindService       Kind = "ServiceError"
	KindChainMismatch Kind = "ChainMismatch"
	KindPermitService Kind = "PermitServiceError"
	KindReverted      Kind = "TransactionReverted"
	KindUnknown       Kind = "Unknown"
)

var kindCodes = map[Kind]string{
	KindUnknown:       "SW-000",
	KindValidation:    "SW-001",
	KindUserRejection: "SW-002",
	KindSlippage:      "SW-003",
	KindService:       "SW-004",
	KindChainMismatch: "SW-005",
	KindPermitService: "SW-006",
	KindReverted:      "SW-007",
}

var (
	ErrNoAttempt         = errors.New("no swap attempt prepared")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrSameToken         = errors.New("cannot swap a token for itself")
	ErrChainMismatch     = errors.New("wallet is connected to a different network")
	// ErrInputAboveApproval means a fresh exact-output quote needs more input than was approved
	ErrInputAboveApproval = errors.New("required input grew past the approved amount")
)

// Error is a classified swap failure
type Error struct {
	Kind    Kind
	Code    string
	Op      string
	State   State
	Message string
	// NoRoute is set on service errors caused by missing routes or liquidity
	NoRoute bool
	Err     error
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Code: kindCodes[kind], Message: msg, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(" ")
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsService holds for service errors including permit service errors
func (e *Error) IsService() bool {
	return e.Kind == KindService || e.Kind == KindPermitService
}

// Hint returns guidance for the user, if any
func (e *Error) Hint() string {
	switch {
	case e.Kind == KindSlippage:
		return "increase the slippage tolerance or reduce the swap size"
	case e.NoRoute:
		return "no route is available for this amount; try a smaller amount or another pair"
	case e.Kind == KindChainMismatch:
		return "switch the wallet to the swap network"
	case e.Kind == KindUserRejection:
		return "the request was declined in the wallet; confirm again to continue"
	}
	return ""
}

// RevertedError reports a mined transaction that failed
type RevertedError struct {
	TxHash common.Hash
	Reason string
}

func (e *RevertedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s reverted", e.TxHash.Hex())
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.TxHash.Hex(), e.Reason)
}

var rejectionPatterns = []string{
	"user rejected",
	"user denied",
	"rejected the request",
	"request rejected",
	"user cancelled",
}

var slippagePatterns = []string{
	"toolittlereceived",
	"toomuchrequested",
	"too little received",
	"too much requested",
	"insufficient output amount",
	"excessive input amount",
}

var noRoutePatterns = []string{
	"no route",
	"insufficient liquidity",
}

var chainPatterns = []string{
	"chain mismatch",
	"wrong network",
	"unrecognized chain",
}

func matchAny(msg string, patterns []string) bool {
	msg = strings.ToLower(msg)
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Classify maps any failure to a swap error. Structured signals (wallet codes,
// API errors, sentinel errors) win; message patterns are the last resort.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var swapErr *Error
	if errors.As(err, &swapErr) {
		return swapErr
	}

	var rpcErr *wallet.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case wallet.CodeUserRejected:
			return newError(KindUserRejection, rpcErr.Message, err)
		case wallet.CodeUnknownChain, wallet.CodeChainDisconnected:
			return newError(KindChainMismatch, rpcErr.Message, err)
		}
	}

	var reverted *RevertedError
	if errors.As(err, &reverted) {
		if matchAny(reverted.Reason, slippagePatterns) {
			return newError(KindSlippage, "price moved beyond the slippage tolerance", err)
		}
		return newError(KindReverted, reverted.Error(), err)
	}

	if errors.Is(err, permit.ErrPermitService) {
		e := newError(KindPermitService, "permit service failed", err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			e.Message = apiErr.Message
		}
		return e
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		e := newError(KindService, apiErr.Message, err)
		e.NoRoute = apiErr.IsNoRoute()
		return e
	}

	if errors.Is(err, route.ErrNoRoute) {
		e := newError(KindService, route.ErrNoRoute.Error(), err)
		e.NoRoute = true
		return e
	}

	switch {
	case errors.Is(err, ErrChainMismatch):
		return newError(KindChainMismatch, err.Error(), err)
	case errors.Is(err, ErrInputAboveApproval):
		return newError(KindSlippage, err.Error(), err)
	case errors.Is(err, amount.ErrInvalidAmount),
		errors.Is(err, amount.ErrInvalidSlippage),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrSameToken):
		return newError(KindValidation, err.Error(), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(KindUnknown, err.Error(), err)
	}

	msg := err.Error()
	switch {
	case matchAny(msg, rejectionPatterns):
		return newError(KindUserRejection, msg, err)
	case matchAny(msg, slippagePatterns):
		return newError(KindSlippage, "price moved beyond the slippage tolerance", err)
	case matchAny(msg, chainPatterns):
		return newError(KindChainMismatch, msg, err)
	case matchAny(msg, noRoutePatterns):
		e := newError(KindService, msg, err)
		e.NoRoute = true
		return e
	}

	return newError(KindUnknown, msg, err)
}
