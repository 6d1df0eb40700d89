package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dex-swap/pkg/amount"
)

// FeeRequest identifies a pool by its token pair
type FeeRequest struct {
	Token0 common.Address
	Token1 common.Address
}

type feeBody struct {
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	ChainID   uint64 `json:"chainId"`
}

// feeResponse carries the fee as a basis-points string
type feeResponse struct {
	DynamicFee *decimal.Decimal `json:"dynamicFee"`
}

// GetDynamicFee returns the current fee of a pool in basis points
func (c *APIClient) GetDynamicFee(ctx context.Context, req FeeRequest) (uint32, error) {
	body := feeBody{
		FromToken: strings.ToLower(req.Token0.Hex()),
		ToToken:   strings.ToLower(req.Token1.Hex()),
		ChainID:   c.chainID,
	}

	var resp feeResponse
	if err := c.post(ctx, dynamicFeePath, body, &resp); err != nil {
		return 0, err
	}

	if resp.DynamicFee == nil {
		return 0, &APIError{Endpoint: dynamicFeePath, StatusCode: 200, Message: "response has no dynamicFee"}
	}
	fee, err := amount.ParseBps(resp.DynamicFee.String())
	if err != nil || fee >= amount.BpsDenominator {
		return 0, &APIError{Endpoint: dynamicFeePath, StatusCode: 200, Message: fmt.Sprintf("fee %s out of range", resp.DynamicFee)}
	}

	return fee, nil
}
