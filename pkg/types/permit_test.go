package types

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

func testPayload(nonce int64, deadline int64) *PermitPayload {
	return &PermitPayload{
		NeedsPermit: true,
		Domain: apitypes.TypedDataDomain{
			Name:              "Permit2",
			ChainId:           math.NewHexOrDecimal256(1),
			VerifyingContract: "0x000000000022D473030F116dDEE9F6B43aC78BA3",
		},
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
		Message: PermitMessage{
			Details: PermitDetails{
				Token:      common.HexToAddress("0xa1"),
				Amount:     NewBigInt(big.NewInt(1000)),
				Expiration: NewBigInt(big.NewInt(deadline)),
				Nonce:      NewBigInt(big.NewInt(nonce)),
			},
			Spender:     common.HexToAddress("0xbeef"),
			SigDeadline: NewBigInt(big.NewInt(deadline)),
		},
	}
}

func TestPermitNonce(t *testing.T) {
	a := testPayload(3, 100)
	require.True(t, a.SameNonce(testPayload(3, 200)))
	require.False(t, a.SameNonce(testPayload(4, 100)))
	require.False(t, a.SameNonce(&PermitPayload{}))
	require.Nil(t, (*PermitPayload)(nil).Nonce())
}

func TestPermitExpired(t *testing.T) {
	p := testPayload(0, 1000)
	require.False(t, p.Expired(time.Unix(999, 0)))
	require.True(t, p.Expired(time.Unix(1000, 0)))
	require.False(t, (&PermitPayload{}).Expired(time.Unix(1<<40, 0)))
}

func TestPermitTypedData(t *testing.T) {
	td, err := testPayload(7, 1000).TypedData()
	require.NoError(t, err)
	require.Equal(t, PermitPrimaryType, td.PrimaryType)
	require.Len(t, td.Types["EIP712Domain"], 3)

	details := td.Message["details"].(map[string]interface{})
	require.Equal(t, "7", details["nonce"])

	_, _, err = apitypes.TypedDataAndHash(td)
	require.NoError(t, err)
}

func TestPermitTypedDataRejectsIncomplete(t *testing.T) {
	_, err := (&PermitPayload{}).TypedData()
	require.Error(t, err)

	p := testPayload(1, 1)
	p.Message.SigDeadline = nil
	_, err = p.TypedData()
	require.Error(t, err)
}
