package client

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"dex-swap/pkg/types"
)

// PermitRequest asks the service for the permit the owner has to sign
type PermitRequest struct {
	Owner       common.Address
	Token       common.Address
	TokenSymbol string
	AmountIn    string
}

type permitBody struct {
	Owner        string `json:"owner"`
	TokenAddress string `json:"tokenAddress"`
	TokenSymbol  string `json:"tokenSymbol"`
	ChainID      uint64 `json:"chainId"`
	AmountIn     string `json:"amountIn"`
}

// PreparePermit fetches the permit payload for the owner and token
func (c *APIClient) PreparePermit(ctx context.Context, req PermitRequest) (*types.PermitPayload, error) {
	body := permitBody{
		Owner:        req.Owner.Hex(),
		TokenAddress: req.Token.Hex(),
		TokenSymbol:  req.TokenSymbol,
		ChainID:      c.chainID,
		AmountIn:     req.AmountIn,
	}

	var payload types.PermitPayload
	if err := c.post(ctx, preparePermitPath, body, &payload); err != nil {
		return nil, err
	}

	if payload.NeedsPermit && payload.Nonce() == nil {
		return nil, &APIError{Endpoint: preparePermitPath, StatusCode: 200, Message: "permit payload has no nonce"}
	}

	return &payload, nil
}
