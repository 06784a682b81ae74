package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"tokendrip/contexts/treasury/disbursement-service/adapters/ledger"
	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChainID   = 56
	tokenContract = "0x55d398326f99059fF775485246999027B3197955"
	recipient     = "0x1111111111111111111111111111111111111111"
)

type fakeBackend struct {
	nonce      uint64
	gasPrice   *big.Int
	gas        uint64
	sendErr    error
	sent       []*types.Transaction
	receipt    *types.Receipt
	receiptErr error
	head       uint64
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return b.gasPrice, nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.gas, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if b.receiptErr != nil {
		return nil, b.receiptErr
	}
	return b.receipt, nil
}

func (b *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	return b.head, nil
}

func newEVM(backend *fakeBackend) *ledger.EVM {
	return ledger.NewEVM(backend, testChainID, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func treasuryKey(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hexutil.Encode(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey)
}

func TestSubmitTransferSignsTokenTransfer(t *testing.T) {
	backend := &fakeBackend{nonce: 7, gasPrice: big.NewInt(3_000_000_000), gas: 52_000}
	credential, treasury := treasuryKey(t)

	txRef, err := newEVM(backend).SubmitTransfer(context.Background(), credential, tokenContract, recipient, "1.5", 18)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, tx.Hash().Hex(), txRef)
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(52_000), tx.Gas())
	assert.Equal(t, common.HexToAddress(tokenContract), *tx.To())
	assert.Zero(t, tx.Value().Sign())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(testChainID)), tx)
	require.NoError(t, err)
	assert.Equal(t, treasury, sender)

	want, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)
	assert.Equal(t, ledger.TransferCalldata(common.HexToAddress(recipient), want), tx.Data())
}

func TestSubmitTransferRejectsBadInputsAsLedgerErrors(t *testing.T) {
	credential, _ := treasuryKey(t)
	cases := []struct {
		name       string
		credential string
		token      string
		to         string
		amount     string
	}{
		{name: "bad credential", credential: "0xnothex", token: tokenContract, to: recipient, amount: "1"},
		{name: "bad token", credential: credential, token: "token", to: recipient, amount: "1"},
		{name: "bad recipient", credential: credential, token: tokenContract, to: "0x12", amount: "1"},
		{name: "bad amount", credential: credential, token: tokenContract, to: recipient, amount: "-4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{gasPrice: big.NewInt(1), gas: 21_000}
			_, err := newEVM(backend).SubmitTransfer(context.Background(), tc.credential, tc.token, tc.to, tc.amount, 18)
			require.Error(t, err)
			assert.True(t, domainerrors.IsLedgerError(err))
			assert.Empty(t, backend.sent)
		})
	}
}

func TestSubmitTransferWrapsBroadcastFailure(t *testing.T) {
	backend := &fakeBackend{gasPrice: big.NewInt(1), gas: 21_000, sendErr: errors.New("insufficient funds")}
	credential, _ := treasuryKey(t)

	_, err := newEVM(backend).SubmitTransfer(context.Background(), credential, tokenContract, recipient, "2", 18)
	require.Error(t, err)
	assert.True(t, domainerrors.IsLedgerError(err))
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestGetFinality(t *testing.T) {
	txRef := common.HexToHash("0xabc").Hex()

	t.Run("unknown transaction", func(t *testing.T) {
		finality, err := newEVM(&fakeBackend{receiptErr: ethereum.NotFound}).GetFinality(context.Background(), txRef)
		require.NoError(t, err)
		assert.Nil(t, finality)
	})

	t.Run("counts confirmations from inclusion block", func(t *testing.T) {
		backend := &fakeBackend{
			receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)},
			head:    102,
		}
		finality, err := newEVM(backend).GetFinality(context.Background(), txRef)
		require.NoError(t, err)
		require.NotNil(t, finality)
		assert.True(t, finality.Final)
		assert.True(t, finality.Success)
		assert.Equal(t, 3, finality.Confirmations)
	})

	t.Run("reverted receipt", func(t *testing.T) {
		backend := &fakeBackend{
			receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(10)},
			head:    10,
		}
		finality, err := newEVM(backend).GetFinality(context.Background(), txRef)
		require.NoError(t, err)
		require.NotNil(t, finality)
		assert.False(t, finality.Success)
		assert.Equal(t, 1, finality.Confirmations)
	})

	t.Run("rpc failure", func(t *testing.T) {
		_, err := newEVM(&fakeBackend{receiptErr: errors.New("timeout")}).GetFinality(context.Background(), txRef)
		assert.True(t, domainerrors.IsLedgerError(err))
	})

	t.Run("malformed reference", func(t *testing.T) {
		_, err := newEVM(&fakeBackend{}).GetFinality(context.Background(), "0x1234")
		assert.True(t, domainerrors.IsLedgerError(err))
	})
}

func TestScaleAmount(t *testing.T) {
	value, err := ledger.ScaleAmount("12.345", 6)
	require.NoError(t, err)
	assert.Equal(t, "12345000", value.String())

	_, err = ledger.ScaleAmount("0.0000001", 6)
	assert.Error(t, err)
	_, err = ledger.ScaleAmount("0", 6)
	assert.Error(t, err)
	_, err = ledger.ScaleAmount("abc", 6)
	assert.Error(t, err)
	_, err = ledger.ScaleAmount("1", -1)
	assert.Error(t, err)
}

func TestTransferCalldataLayout(t *testing.T) {
	data := ledger.TransferCalldata(common.HexToAddress(recipient), big.NewInt(255))
	require.Len(t, data, 68)
	assert.Equal(t, "0xa9059cbb", hexutil.Encode(data[:4]))
	assert.Equal(t, common.HexToAddress(recipient).Bytes(), data[16:36])
	assert.Equal(t, byte(0xff), data[67])
}

func TestParsePrivateKey(t *testing.T) {
	credential, treasury := treasuryKey(t)

	key, err := ledger.ParsePrivateKey(credential[2:])
	require.NoError(t, err)
	assert.Equal(t, treasury, crypto.PubkeyToAddress(key.PublicKey))

	_, err = ledger.ParsePrivateKey("  ")
	assert.ErrorIs(t, err, domainerrors.ErrMissingTreasuryCredential)
}

func TestOfflineLedgerRefusesWork(t *testing.T) {
	_, err := ledger.Offline{}.SubmitTransfer(context.Background(), "0x01", tokenContract, recipient, "1", 18)
	assert.ErrorIs(t, err, ledger.ErrLedgerNotConfigured)
	assert.True(t, domainerrors.IsLedgerError(err))

	_, err = ledger.Offline{}.GetFinality(context.Background(), "0xabc")
	assert.ErrorIs(t, err, ledger.ErrLedgerNotConfigured)
}

func TestKeyGeneratorProducesMatchingPair(t *testing.T) {
	pair, err := ledger.KeyGenerator{}.Generate("bnb")
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(pair.Address))

	key, err := ledger.ParsePrivateKey(pair.Secret)
	require.NoError(t, err)
	assert.Equal(t, pair.Address, crypto.PubkeyToAddress(key.PublicKey).Hex())
}
