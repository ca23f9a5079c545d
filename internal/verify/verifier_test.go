package verify

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/bridge"
)

var (
	tokenBridgeAddr = common.HexToAddress("0xC7A204bDBFe983FCD8d8E61D02b475D4073fF97e")
	usdcAddr        = common.HexToAddress("0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d")
	coreBridgeAddr  = common.HexToAddress("0x6b9C8671cdDC8dEab9c719bB87cBd3e782bA6a35")
	senderAddr      = common.HexToAddress("0x1111111111111111111111111111111111111111")

	claimedHash = "0x" + fmt.Sprintf("%064x", 0xbeef)
)

type fakeReader struct {
	receipt    *types.Receipt
	receiptErr error
	tx         *types.Transaction
	txErr      error
}

func (f *fakeReader) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.receiptErr
}

func (f *fakeReader) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	return f.tx, false, f.txErr
}

func txTo(to *common.Address) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{To: to})
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func transferLog(t *testing.T, token common.Address, value *big.Int) *types.Log {
	t.Helper()
	data, err := bridge.ERC20ABI.Events["Transfer"].Inputs.NonIndexed().Pack(value)
	require.NoError(t, err)
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			bridge.TransferTopic,
			addressTopic(senderAddr),
			addressTopic(tokenBridgeAddr),
		},
		Data: data,
	}
}

func messageLog(t *testing.T, emitter common.Address, sequence uint64) *types.Log {
	t.Helper()
	data, err := bridge.CoreBridgeABI.Events["LogMessagePublished"].Inputs.NonIndexed().Pack(
		sequence, uint32(1), []byte{0x01}, uint8(15))
	require.NoError(t, err)
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{bridge.LogMessagePublishedTopic, addressTopic(tokenBridgeAddr)},
		Data:    data,
	}
}

func newTestVerifier(reader ChainReader) *Verifier {
	return NewVerifier(zap.NewNop(), Config{
		BridgeContract: tokenBridgeAddr,
		TokenContract:  usdcAddr,
		CoreBridge:     coreBridgeAddr,
	}, reader)
}

func claim(amount, sequence string) bridge.BridgeTransaction {
	return bridge.BridgeTransaction{
		Hash:             claimedHash,
		Amount:           amount,
		WormholeSequence: sequence,
	}
}

// goodReader returns chain state for a legitimate 1.5 USDC bridge with
// sequence 42, surrounded by an unrelated log.
func goodReader(t *testing.T) *fakeReader {
	t.Helper()
	return &fakeReader{
		receipt: &types.Receipt{
			Status: types.ReceiptStatusSuccessful,
			Logs: []*types.Log{
				{Address: usdcAddr, Topics: []common.Hash{common.HexToHash("0x01")}},
				transferLog(t, usdcAddr, big.NewInt(1_500_000)),
				messageLog(t, coreBridgeAddr, 42),
			},
		},
		tx: txTo(&tokenBridgeAddr),
	}
}

func TestVerifyLegitimateTransaction(t *testing.T) {
	t.Parallel()

	outcome := newTestVerifier(goodReader(t)).VerifyBridgeTransaction(
		context.Background(), claim("1.5", "42"))

	require.True(t, outcome.Verified, outcome.Detail)
	require.Equal(t, ReasonOK, outcome.Reason)
}

func TestVerifyAcceptsLargerTransfer(t *testing.T) {
	t.Parallel()

	// The locked amount may exceed the claim (relayer fees are taken from
	// the net, not the lock).
	outcome := newTestVerifier(goodReader(t)).VerifyBridgeTransaction(
		context.Background(), claim("1", "42"))

	require.True(t, outcome.Verified, outcome.Detail)
}

func TestVerifyMalformedClaims(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name  string
		Claim bridge.BridgeTransaction
	}{
		{"empty hash", bridge.BridgeTransaction{Amount: "1", WormholeSequence: "42"}},
		{"short hash", bridge.BridgeTransaction{Hash: "0xbeef", Amount: "1", WormholeSequence: "42"}},
		{"no 0x prefix", bridge.BridgeTransaction{Hash: fmt.Sprintf("%066x", 1), Amount: "1", WormholeSequence: "42"}},
		{"bad amount", bridge.BridgeTransaction{Hash: claimedHash, Amount: "abc", WormholeSequence: "42"}},
		{"excess precision", bridge.BridgeTransaction{Hash: claimedHash, Amount: "1.1234567", WormholeSequence: "42"}},
		{"missing sequence", bridge.BridgeTransaction{Hash: claimedHash, Amount: "1"}},
	} {
		t.Run(test.Name, func(t *testing.T) {
			outcome := newTestVerifier(goodReader(t)).VerifyBridgeTransaction(
				context.Background(), test.Claim)
			require.False(t, outcome.Verified)
			require.Equal(t, ReasonMalformedClaim, outcome.Reason)
		})
	}
}

func TestVerifyReceiptUnavailable(t *testing.T) {
	t.Parallel()

	outcome := newTestVerifier(&fakeReader{receiptErr: fmt.Errorf("not found")}).
		VerifyBridgeTransaction(context.Background(), claim("1.5", "42"))

	require.False(t, outcome.Verified)
	require.Equal(t, ReasonReceiptUnavailable, outcome.Reason)
}

func TestVerifyRevertedTransaction(t *testing.T) {
	t.Parallel()

	reader := goodReader(t)
	reader.receipt.Status = types.ReceiptStatusFailed

	outcome := newTestVerifier(reader).VerifyBridgeTransaction(
		context.Background(), claim("1.5", "42"))

	require.False(t, outcome.Verified)
	require.Equal(t, ReasonTxFailed, outcome.Reason)
}

func TestVerifyWrongDestinationContract(t *testing.T) {
	t.Parallel()

	other := common.HexToAddress("0x9999999999999999999999999999999999999999")

	reader := goodReader(t)
	reader.tx = txTo(&other)
	outcome := newTestVerifier(reader).VerifyBridgeTransaction(
		context.Background(), claim("1.5", "42"))
	require.False(t, outcome.Verified)
	require.Equal(t, ReasonWrongContract, outcome.Reason)

	// Contract creation has no destination at all.
	reader = goodReader(t)
	reader.tx = txTo(nil)
	outcome = newTestVerifier(reader).VerifyBridgeTransaction(
		context.Background(), claim("1.5", "42"))
	require.False(t, outcome.Verified)
	require.Equal(t, ReasonWrongContract, outcome.Reason)
}

func TestVerifyInsufficientTransfer(t *testing.T) {
	t.Parallel()

	// Claims 2 USDC but only 1.5 was locked.
	outcome := newTestVerifier(goodReader(t)).VerifyBridgeTransaction(
		context.Background(), claim("2", "42"))

	require.False(t, outcome.Verified)
	require.Equal(t, ReasonTransferMissing, outcome.Reason)
}

func TestVerifyIgnoresTransferFromOtherToken(t *testing.T) {
	t.Parallel()

	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	reader := &fakeReader{
		receipt: &types.Receipt{
			Status: types.ReceiptStatusSuccessful,
			Logs: []*types.Log{
				transferLog(t, other, big.NewInt(1_500_000)),
				messageLog(t, coreBridgeAddr, 42),
			},
		},
		tx: txTo(&tokenBridgeAddr),
	}

	outcome := newTestVerifier(reader).VerifyBridgeTransaction(
		context.Background(), claim("1.5", "42"))

	require.False(t, outcome.Verified)
	require.Equal(t, ReasonTransferMissing, outcome.Reason)
}

func TestVerifySequenceMismatch(t *testing.T) {
	t.Parallel()

	outcome := newTestVerifier(goodReader(t)).VerifyBridgeTransaction(
		context.Background(), claim("1.5", "43"))

	require.False(t, outcome.Verified)
	require.Equal(t, ReasonMessageMissing, outcome.Reason)
}

func TestVerifyIgnoresMessageFromOtherEmitter(t *testing.T) {
	t.Parallel()

	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	reader := &fakeReader{
		receipt: &types.Receipt{
			Status: types.ReceiptStatusSuccessful,
			Logs: []*types.Log{
				transferLog(t, usdcAddr, big.NewInt(1_500_000)),
				messageLog(t, other, 42),
			},
		},
		tx: txTo(&tokenBridgeAddr),
	}

	outcome := newTestVerifier(reader).VerifyBridgeTransaction(
		context.Background(), claim("1.5", "42"))

	require.False(t, outcome.Verified)
	require.Equal(t, ReasonMessageMissing, outcome.Reason)
}
