package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// Backend is the subset of ethclient.Client the EVM wallet uses
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// EVMWallet signs with a local private key and talks to an RPC node
type EVMWallet struct {
	backend      Backend
	closer       func()
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	chainID      *big.Int
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewEVMWallet connects to rpcURL and loads the hex-encoded private key
func NewEVMWallet(ctx context.Context, rpcURL, privateKeyHex string, pollInterval time.Duration, logger *zap.Logger) (*EVMWallet, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	w, err := NewEVMWalletWithBackend(ctx, client, privateKeyHex, pollInterval, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	w.closer = client.Close
	return w, nil
}

// NewEVMWalletWithBackend builds a wallet on top of an existing backend
func NewEVMWalletWithBackend(ctx context.Context, backend Backend, privateKeyHex string, pollInterval time.Duration, logger *zap.Logger) (*EVMWallet, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	return &EVMWallet{
		backend:      backend,
		privateKey:   privateKey,
		address:      crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:      chainID,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

// Address returns the account address
func (w *EVMWallet) Address() common.Address {
	return w.address
}

// ChainID returns the chain the RPC node serves
func (w *EVMWallet) ChainID(ctx context.Context) (uint64, error) {
	id, err := w.backend.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id.Uint64(), nil
}

// SignTypedData signs EIP-712 typed data, returning a 65 byte signature with v in {27, 28}
func (w *EVMWallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	sig, err := crypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}

// WriteContract signs and sends a contract call
func (w *EVMWallet) WriteContract(ctx context.Context, call Call) (common.Hash, error) {
	data, err := call.Pack()
	if err != nil {
		return common.Hash{}, err
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	to := call.Address
	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas for %s: %w", call.Method, err)
	}
	gas = gas * 120 / 100 // 20% buffer

	txData, err := w.txData(ctx, nonce, to, value, gas, data)
	if err != nil {
		return common.Hash{}, err
	}

	signedTx, err := types.SignNewTx(w.privateKey, types.LatestSignerForChainID(w.chainID), txData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	w.logger.Debug("transaction sent",
		zap.String("method", call.Method),
		zap.String("to", to.Hex()),
		zap.String("hash", signedTx.Hash().Hex()))

	return signedTx.Hash(), nil
}

// txData prices the transaction with EIP-1559 fees when the chain supports them
func (w *EVMWallet) txData(ctx context.Context, nonce uint64, to common.Address, value *big.Int, gas uint64, data []byte) (types.TxData, error) {
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err == nil && head.BaseFee != nil {
		tip, err := w.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		return &types.DynamicFeeTx{
			ChainID:   w.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		}, nil
	}

	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	}, nil
}

// WaitForReceipt polls for the receipt until it is mined or ctx is done.
// Reverted transactions return a receipt with status 0 and the revert reason when recoverable.
func (w *EVMWallet) WaitForReceipt(ctx context.Context, hash common.Hash) (Receipt, error) {
	var receipt *types.Receipt

	operation := func() error {
		r, err := w.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				w.logger.Debug("receipt lookup failed", zap.String("hash", hash.Hex()), zap.Error(err))
			}
			return err
		}
		receipt = r
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(w.pollInterval), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		if ctx.Err() != nil {
			return Receipt{}, fmt.Errorf("%w: %s", ErrReceiptTimeout, hash.Hex())
		}
		return Receipt{}, fmt.Errorf("failed to get receipt: %w", err)
	}

	result := Receipt{
		TxHash:      hash,
		Status:      receipt.Status,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
	if !result.Succeeded() {
		result.RevertReason = w.revertReason(ctx, hash, receipt.BlockNumber)
	}

	return result, nil
}

// revertReason replays the transaction at its block to recover the revert message
func (w *EVMWallet) revertReason(ctx context.Context, hash common.Hash, block *big.Int) string {
	tx, _, err := w.backend.TransactionByHash(ctx, hash)
	if err != nil {
		return ""
	}

	from, err := types.Sender(types.LatestSignerForChainID(w.chainID), tx)
	if err != nil {
		return ""
	}

	_, err = w.backend.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, block)
	if err == nil {
		return ""
	}
	return err.Error()
}

// ReadContract performs an eth_call and unpacks the outputs
func (w *EVMWallet) ReadContract(ctx context.Context, call Call) ([]interface{}, error) {
	data, err := call.Pack()
	if err != nil {
		return nil, err
	}

	to := call.Address
	result, err := w.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", call.Method, err)
	}

	out, err := call.ABI.Unpack(call.Method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", call.Method, err)
	}
	return out, nil
}

// SwitchChain succeeds only when the node already serves chainID.
// A key-based wallet is bound to its RPC endpoint.
func (w *EVMWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	current, err := w.ChainID(ctx)
	if err != nil {
		return err
	}
	if current == chainID {
		return nil
	}
	return &RPCError{
		Code:    CodeUnknownChain,
		Message: fmt.Sprintf("RPC endpoint serves chain %d, cannot switch to %d", current, chainID),
	}
}

// TxInfo summarises a transaction for display
type TxInfo struct {
	Hash        common.Hash
	From        common.Address
	To          *common.Address
	Value       *big.Int
	Nonce       uint64
	GasLimit    uint64
	Pending     bool
	Mined       bool
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

// TransactionInfo looks a transaction and its receipt up
func (w *EVMWallet) TransactionInfo(ctx context.Context, hash common.Hash) (*TxInfo, error) {
	tx, isPending, err := w.backend.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	info := &TxInfo{
		Hash:     tx.Hash(),
		To:       tx.To(),
		Value:    tx.Value(),
		Nonce:    tx.Nonce(),
		GasLimit: tx.Gas(),
		Pending:  isPending,
	}
	if from, err := types.Sender(types.LatestSignerForChainID(w.chainID), tx); err == nil {
		info.From = from
	}

	if isPending {
		return info, nil
	}

	receipt, err := w.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}
	info.Mined = true
	info.Status = receipt.Status
	info.BlockNumber = receipt.BlockNumber.Uint64()
	info.GasUsed = receipt.GasUsed

	return info, nil
}

// Close closes the RPC connection
func (w *EVMWallet) Close() {
	if w.closer != nil {
		w.closer()
	}
}
