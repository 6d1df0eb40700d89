package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type fakeBackend struct {
	mu            sync.Mutex
	chainID       int64
	baseFee       *big.Int
	receiptAfter  int
	receiptStatus uint64
	receiptCalls  int
	callResult    []byte
	callErr       error
	sent          []*types.Transaction
	estimateErr   error
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return tx, false, nil
		}
	}
	return nil, false, ethereum.NotFound
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptCalls++
	if f.receiptCalls <= f.receiptAfter {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: f.receiptStatus, BlockNumber: big.NewInt(101), GasUsed: 21000}, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callResult, f.callErr
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 50000, f.estimateErr
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(100_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func newTestWallet(t *testing.T, backend *fakeBackend) *EVMWallet {
	t.Helper()
	w, err := NewEVMWalletWithBackend(context.Background(), backend, "0x"+testKey, time.Millisecond, nil)
	require.NoError(t, err)
	return w
}

func TestNewEVMWalletInvalidKey(t *testing.T) {
	_, err := NewEVMWalletWithBackend(context.Background(), &fakeBackend{chainID: 1}, "not-a-key", time.Second, nil)
	require.Error(t, err)
}

func TestSignTypedDataRecoversSigner(t *testing.T) {
	w := newTestWallet(t, &fakeBackend{chainID: 1})

	chainID := math.NewHexOrDecimal256(1)
	data := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {{Name: "name", Type: "string"}, {Name: "chainId", Type: "uint256"}},
			"Mail":         {{Name: "contents", Type: "string"}},
		},
		PrimaryType: "Mail",
		Domain:      apitypes.TypedDataDomain{Name: "Test", ChainId: chainID},
		Message:     apitypes.TypedDataMessage{"contents": "hello"},
	}

	sig, err := w.SignTypedData(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.Contains(t, []byte{27, 28}, sig[64])

	hash, _, err := apitypes.TypedDataAndHash(data)
	require.NoError(t, err)

	recoverable := append([]byte(nil), sig...)
	recoverable[64] -= 27
	pub, err := crypto.SigToPub(hash, recoverable)
	require.NoError(t, err)
	require.Equal(t, w.Address(), crypto.PubkeyToAddress(*pub))
}

func TestWriteContractDynamicFee(t *testing.T) {
	backend := &fakeBackend{chainID: 1, baseFee: big.NewInt(10_000_000_000)}
	w := newTestWallet(t, backend)

	token := common.HexToAddress("0xa")
	spender := common.HexToAddress("0xb")
	hash, err := w.WriteContract(context.Background(), Call{
		Address: token,
		ABI:     ERC20ABI,
		Method:  "approve",
		Args:    []interface{}{spender, big.NewInt(50)},
	})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	require.Equal(t, hash, tx.Hash())
	require.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, uint64(60000), tx.Gas())
	require.Equal(t, token, *tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), tx)
	require.NoError(t, err)
	require.Equal(t, w.Address(), sender)
}

func TestWriteContractLegacyWithValue(t *testing.T) {
	backend := &fakeBackend{chainID: 56}
	w := newTestWallet(t, backend)

	_, err := w.WriteContract(context.Background(), Call{
		Address: common.HexToAddress("0xc"),
		ABI:     RouterABI,
		Method:  "execute",
		Args:    []interface{}{[]byte{0x0b}, [][]byte{{0x01}}, big.NewInt(1_900_000_000)},
		Value:   big.NewInt(5),
	})
	require.NoError(t, err)

	tx := backend.sent[0]
	require.Equal(t, uint8(types.LegacyTxType), tx.Type())
	require.Equal(t, int64(5), tx.Value().Int64())
}

func TestWriteContractEstimateFailure(t *testing.T) {
	backend := &fakeBackend{chainID: 1, estimateErr: errors.New("execution reverted: TooLittleReceived")}
	w := newTestWallet(t, backend)

	_, err := w.WriteContract(context.Background(), Call{
		Address: common.HexToAddress("0xc"),
		ABI:     RouterABI,
		Method:  "execute",
		Args:    []interface{}{[]byte{0x0b}, [][]byte{}, big.NewInt(1)},
	})
	require.ErrorContains(t, err, "TooLittleReceived")
	require.Empty(t, backend.sent)
}

func TestWaitForReceiptPollsUntilMined(t *testing.T) {
	backend := &fakeBackend{chainID: 1, receiptAfter: 3, receiptStatus: 1}
	w := newTestWallet(t, backend)

	receipt, err := w.WaitForReceipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	require.True(t, receipt.Succeeded())
	require.Equal(t, uint64(101), receipt.BlockNumber)
	require.Equal(t, 4, backend.receiptCalls)
}

func TestWaitForReceiptRevertReason(t *testing.T) {
	backend := &fakeBackend{chainID: 1, baseFee: big.NewInt(1), receiptStatus: 0, callErr: errors.New("execution reverted: TooLittleReceived")}
	w := newTestWallet(t, backend)

	hash, err := w.WriteContract(context.Background(), Call{
		Address: common.HexToAddress("0xc"),
		ABI:     RouterABI,
		Method:  "execute",
		Args:    []interface{}{[]byte{0x0b}, [][]byte{}, big.NewInt(1)},
	})
	require.NoError(t, err)

	receipt, err := w.WaitForReceipt(context.Background(), hash)
	require.NoError(t, err)
	require.False(t, receipt.Succeeded())
	require.Contains(t, receipt.RevertReason, "TooLittleReceived")
}

func TestWaitForReceiptTimeout(t *testing.T) {
	backend := &fakeBackend{chainID: 1, receiptAfter: 1 << 30}
	w := newTestWallet(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := w.WaitForReceipt(ctx, common.HexToHash("0x01"))
	require.ErrorIs(t, err, ErrReceiptTimeout)
}

func TestReadContractAllowance(t *testing.T) {
	encoded, err := ERC20ABI.Methods["allowance"].Outputs.Pack(big.NewInt(1234))
	require.NoError(t, err)

	backend := &fakeBackend{chainID: 1, callResult: encoded}
	w := newTestWallet(t, backend)

	allowance, err := Allowance(context.Background(), w, common.HexToAddress("0xa"), w.Address(), common.HexToAddress("0xb"))
	require.NoError(t, err)
	require.Equal(t, int64(1234), allowance.Int64())
}

func TestSwitchChain(t *testing.T) {
	w := newTestWallet(t, &fakeBackend{chainID: 1})

	require.NoError(t, w.SwitchChain(context.Background(), 1))

	err := w.SwitchChain(context.Background(), 10)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, CodeUnknownChain, rpcErr.Code)
}

func TestRouterABIPacksExecute(t *testing.T) {
	data, err := RouterABI.Pack("execute", []byte{0x0b, 0x00}, [][]byte{{0xde, 0xad}}, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, RouterABI.Methods["execute"].ID, data[:4])
	require.NotEmpty(t, hexutil.Encode(data))
}
