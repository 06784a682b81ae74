package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"
	"tokendrip/contexts/treasury/disbursement-service/ports"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const (
	opSubmit   = "submit"
	opFinality = "finality"
)

var transferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// Backend is the subset of the JSON-RPC client the ledger needs.
// *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EVM submits ERC-20 transfers from the treasury and reads their receipts.
type EVM struct {
	backend Backend
	chainID *big.Int
	closer  func()
	logger  *slog.Logger
}

func NewEVM(backend Backend, chainID int64, logger *slog.Logger) *EVM {
	if logger == nil {
		logger = slog.Default()
	}
	return &EVM{
		backend: backend,
		chainID: big.NewInt(chainID),
		logger:  logger,
	}
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string, chainID int64, logger *slog.Logger) (*EVM, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, errors.New("ledger rpc url is required")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	evm := NewEVM(client, chainID, logger)
	evm.closer = client.Close
	return evm, nil
}

func (e *EVM) Close() {
	if e != nil && e.closer != nil {
		e.closer()
	}
}

func (e *EVM) SubmitTransfer(
	ctx context.Context,
	credential string,
	tokenRef string,
	toAddress string,
	amount string,
	decimals int,
) (string, error) {
	key, err := ParsePrivateKey(credential)
	if err != nil {
		return "", domainerrors.NewLedgerError(opSubmit, err)
	}
	if !common.IsHexAddress(tokenRef) {
		return "", domainerrors.NewLedgerError(opSubmit, fmt.Errorf("invalid token contract %q", tokenRef))
	}
	if !common.IsHexAddress(toAddress) {
		return "", domainerrors.NewLedgerError(opSubmit, fmt.Errorf("invalid recipient address %q", toAddress))
	}
	value, err := ScaleAmount(amount, decimals)
	if err != nil {
		return "", domainerrors.NewLedgerError(opSubmit, err)
	}

	token := common.HexToAddress(tokenRef)
	from := crypto.PubkeyToAddress(key.PublicKey)
	data := TransferCalldata(common.HexToAddress(toAddress), value)

	nonce, err := e.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", domainerrors.NewLedgerError(opSubmit, fmt.Errorf("pending nonce: %w", err))
	}
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", domainerrors.NewLedgerError(opSubmit, fmt.Errorf("suggest gas price: %w", err))
	}
	gas, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &token,
		Data: data,
	})
	if err != nil {
		return "", domainerrors.NewLedgerError(opSubmit, fmt.Errorf("estimate gas: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &token,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(e.chainID), key)
	if err != nil {
		return "", domainerrors.NewLedgerError(opSubmit, fmt.Errorf("sign transaction: %w", err))
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return "", domainerrors.NewLedgerError(opSubmit, fmt.Errorf("send transaction: %w", err))
	}

	txRef := signed.Hash().Hex()
	e.logger.Info("ledger transfer broadcast",
		"event", "ledger_transfer_broadcast",
		"module", "treasury/disbursement-service",
		"layer", "adapter",
		"tx_ref", txRef,
		"nonce", nonce,
		"gas", gas,
	)
	return txRef, nil
}

func (e *EVM) GetFinality(ctx context.Context, txRef string) (*ports.Finality, error) {
	if !isTxHash(txRef) {
		return nil, domainerrors.NewLedgerError(opFinality, fmt.Errorf("invalid transaction hash %q", txRef))
	}
	receipt, err := e.backend.TransactionReceipt(ctx, common.HexToHash(txRef))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, domainerrors.NewLedgerError(opFinality, fmt.Errorf("transaction receipt: %w", err))
	}
	if receipt == nil || receipt.BlockNumber == nil {
		return nil, nil
	}
	head, err := e.backend.BlockNumber(ctx)
	if err != nil {
		return nil, domainerrors.NewLedgerError(opFinality, fmt.Errorf("block number: %w", err))
	}

	confirmations := 0
	if included := receipt.BlockNumber.Uint64(); head >= included {
		confirmations = int(head-included) + 1
	}
	return &ports.Finality{
		Final:         true,
		Confirmations: confirmations,
		Success:       receipt.Status == types.ReceiptStatusSuccessful,
	}, nil
}

// ScaleAmount converts a whole-token decimal amount into base units.
func ScaleAmount(amount string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("invalid token decimals %d", decimals)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if !value.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", value.String())
	}
	scaled := value.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimals", value.String(), decimals)
	}
	return scaled.BigInt(), nil
}

// TransferCalldata encodes an ERC-20 transfer(address,uint256) call.
func TransferCalldata(to common.Address, value *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(value.Bytes(), 32)...)
	return data
}

// ParsePrivateKey accepts a hex secp256k1 key with or without the 0x prefix.
func ParsePrivateKey(credential string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(credential), "0x")
	if trimmed == "" {
		return nil, domainerrors.ErrMissingTreasuryCredential
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, errors.New("invalid treasury credential")
	}
	return key, nil
}

func isTxHash(value string) bool {
	raw, err := hexutil.Decode(strings.TrimSpace(value))
	return err == nil && len(raw) == common.HashLength
}

var _ ports.Ledger = (*EVM)(nil)
