package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

func TestConfirmingWalletDeclined(t *testing.T) {
	backend := &fakeBackend{chainID: 1}
	w := NewConfirmingWallet(newTestWallet(t, backend), func(string) bool { return false })

	_, err := w.SignTypedData(context.Background(), apitypes.TypedData{PrimaryType: "PermitSingle"})
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, CodeUserRejected, rpcErr.Code)

	_, err = w.WriteContract(context.Background(), Call{Address: common.HexToAddress("0xa"), ABI: ERC20ABI, Method: "approve"})
	require.True(t, errors.As(err, &rpcErr))
	require.Empty(t, backend.sent)
}

func TestConfirmingWalletAccepted(t *testing.T) {
	backend := &fakeBackend{chainID: 1}
	var asked []string
	w := NewConfirmingWallet(newTestWallet(t, backend), func(action string) bool {
		asked = append(asked, action)
		return true
	})

	_, err := w.WriteContract(context.Background(), Call{
		Address: common.HexToAddress("0xa"),
		ABI:     ERC20ABI,
		Method:  "approve",
		Args:    []interface{}{common.HexToAddress("0xb"), common.Big1},
	})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	require.Len(t, asked, 1)
	require.Contains(t, asked[0], "approve")
}
