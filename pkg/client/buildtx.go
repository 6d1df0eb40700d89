package client

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"dex-swap/pkg/types"
)

// BuildTxRequest describes the swap the router transaction must perform
type BuildTxRequest struct {
	UserAddress     common.Address
	FromToken       common.Address
	ToToken         common.Address
	Direction       types.Direction
	Amount          *big.Int
	LimitAmount     *big.Int // Minimum output for exact-in, maximum input for exact-out
	PermitSignature []byte
	PermitFields    *types.PermitMessage
}

type buildTxBody struct {
	UserAddress     string               `json:"userAddress"`
	FromToken       string               `json:"fromToken"`
	ToToken         string               `json:"toToken"`
	SwapType        string               `json:"swapType"`
	Amount          string               `json:"amount"`
	LimitAmount     string               `json:"limitAmount"`
	PermitSignature string               `json:"permitSignature,omitempty"`
	PermitFields    *types.PermitMessage `json:"permitFields,omitempty"`
	ChainID         uint64               `json:"chainId"`
}

// SwapTx is a router call ready to be sent by the wallet
type SwapTx struct {
	To           common.Address  `json:"to"`
	Commands     hexutil.Bytes   `json:"commands"`
	Inputs       []hexutil.Bytes `json:"inputs"`
	Deadline     *types.BigInt   `json:"deadline"`
	Value        *types.BigInt   `json:"value"`
	TouchedPools []string        `json:"touchedPools"`
}

// InputsBytes returns the per-command inputs as plain byte slices
func (t *SwapTx) InputsBytes() [][]byte {
	out := make([][]byte, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		out = append(out, []byte(in))
	}
	return out
}

// ValueWei returns the native value to attach, zero when absent
func (t *SwapTx) ValueWei() *big.Int {
	if t.Value == nil || t.Value.Int == nil {
		return new(big.Int)
	}
	return t.Value.Int
}

// BuildTx asks the service to encode the router call for a swap
func (c *APIClient) BuildTx(ctx context.Context, req BuildTxRequest) (*SwapTx, error) {
	if req.Amount == nil || req.LimitAmount == nil {
		return nil, &APIError{Endpoint: buildTxPath, Message: "amount and limit amount are required"}
	}

	body := buildTxBody{
		UserAddress:  req.UserAddress.Hex(),
		FromToken:    req.FromToken.Hex(),
		ToToken:      req.ToToken.Hex(),
		SwapType:     req.Direction.SwapType(),
		Amount:       req.Amount.String(),
		LimitAmount:  req.LimitAmount.String(),
		PermitFields: req.PermitFields,
		ChainID:      c.chainID,
	}
	if len(req.PermitSignature) > 0 {
		body.PermitSignature = hexutil.Encode(req.PermitSignature)
	}

	var tx SwapTx
	if err := c.post(ctx, buildTxPath, body, &tx); err != nil {
		return nil, err
	}

	if tx.To == (common.Address{}) || len(tx.Commands) == 0 {
		return nil, &APIError{Endpoint: buildTxPath, StatusCode: 200, Message: "transaction payload is incomplete"}
	}
	if tx.Deadline == nil || tx.Deadline.Int == nil {
		return nil, &APIError{Endpoint: buildTxPath, StatusCode: 200, Message: "transaction payload has no deadline"}
	}

	return &tx, nil
}
