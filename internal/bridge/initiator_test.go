package bridge

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChain struct {
	signer       common.Address
	allowance    *big.Int
	allowanceErr error

	approveCalls  int
	approveErr    error
	approveStatus uint64

	fee *big.Int

	transferErr     error
	transferReceipt *types.Receipt
	lastParams      TransferParams
}

func (f *fakeChain) SignerAddress() common.Address { return f.signer }

func (f *fakeChain) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if f.allowanceErr != nil {
		return nil, f.allowanceErr
	}
	return f.allowance, nil
}

func (f *fakeChain) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	f.approveCalls++
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return &types.Receipt{
		Status: f.approveStatus,
		TxHash: common.HexToHash("0xaa"),
	}, nil
}

func (f *fakeChain) MessageFee(ctx context.Context, coreBridge common.Address) (*big.Int, error) {
	return f.fee, nil
}

func (f *fakeChain) TransferTokens(ctx context.Context, tokenBridge common.Address, params TransferParams) (*types.Receipt, error) {
	f.lastParams = params
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	return f.transferReceipt, nil
}

type fakeAttestor struct {
	vaa []byte
	err error
}

func (f *fakeAttestor) AwaitSignedVAA(ctx context.Context, chainID uint16, emitter common.Address, sequence string, onAttempt func(attempt, total int)) ([]byte, error) {
	if onAttempt != nil {
		onAttempt(1, 1)
	}
	return f.vaa, f.err
}

// signedVAABytes builds a guardian-style attestation envelope with no
// signatures, enough for parsing paths that only look at the body.
func signedVAABytes(sequence uint64) []byte {
	buf := []byte{1}                                          // version
	buf = binary.BigEndian.AppendUint32(buf, 0)               // guardian set index
	buf = append(buf, 0)                                      // signature count
	buf = binary.BigEndian.AppendUint32(buf, 1700000000)      // timestamp
	buf = binary.BigEndian.AppendUint32(buf, 7)               // nonce
	buf = binary.BigEndian.AppendUint16(buf, 10003)           // emitter chain
	buf = append(buf, make([]byte, 32)...)                    // emitter address
	buf = binary.BigEndian.AppendUint64(buf, sequence)        // sequence
	buf = append(buf, 15)                                     // consistency level
	return append(buf, 0xde, 0xad)                            // payload
}

func testConfig() Config {
	return Config{
		Token:          testToken,
		TokenBridge:    common.HexToAddress("0xC7A204bDBFe983FCD8d8E61D02b475D4073fF97e"),
		CoreBridge:     testCoreBridge,
		SourceChainID:  10003,
		RecipientChain: 21,
	}
}

func newTestInitiator(t *testing.T, chain ChainClient, attestor AttestationClient) *Initiator {
	t.Helper()
	in := NewInitiator(zap.NewNop(), testConfig(), chain, attestor)
	// Keep the delayed idle reset from firing mid-assertion.
	in.resetDelay = time.Hour
	return in
}

func happyChain() *fakeChain {
	return &fakeChain{
		signer:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
		allowance:     big.NewInt(0),
		approveStatus: types.ReceiptStatusSuccessful,
		fee:           big.NewInt(100),
	}
}

func TestBridgeSuccess(t *testing.T) {
	t.Parallel()

	chain := happyChain()
	in := newTestInitiator(t, chain, nil)

	var steps []Step
	in.OnStep = func(step Step, detail string) { steps = append(steps, step) }

	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xbb"),
		Logs:   []*types.Log{messageLog(t, testCoreBridge, 42)},
	}
	chain.transferReceipt = receipt

	result := in.Bridge(context.Background(), BridgeRequest{
		Amount:    big.NewInt(1500000),
		Recipient: "0x" + fmt.Sprintf("%064x", 0xabcd),
	})

	require.True(t, result.Success, result.Error)
	require.Equal(t, receipt.TxHash.Hex(), result.TxHash)
	require.Equal(t, "42", result.WormholeSequence)
	require.Nil(t, result.VAA)
	require.Equal(t, 1, chain.approveCalls)

	require.Equal(t, []Step{StepApproving, StepTransferring, StepExtractingSequence, StepComplete}, steps)

	// Transfer params carry the exact amount, the message fee as value, and
	// a zero arbiter fee.
	require.Equal(t, big.NewInt(1500000), chain.lastParams.Amount)
	require.Equal(t, big.NewInt(100), chain.lastParams.Fee)
	require.Equal(t, big.NewInt(0), chain.lastParams.ArbiterFee)
	require.Equal(t, uint16(21), chain.lastParams.RecipientChain)
	require.Equal(t, byte(0xab), chain.lastParams.Recipient[30])
	require.Equal(t, byte(0xcd), chain.lastParams.Recipient[31])
}

func TestBridgeSkipsApproveWhenAllowanceCovers(t *testing.T) {
	t.Parallel()

	chain := happyChain()
	chain.allowance = big.NewInt(10_000_000) // 10 USDC already approved
	chain.transferReceipt = &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xbb"),
		Logs:   []*types.Log{messageLog(t, testCoreBridge, 1)},
	}
	in := newTestInitiator(t, chain, nil)

	result := in.Bridge(context.Background(), BridgeRequest{
		Amount:    big.NewInt(1_000_000),
		Recipient: "0xff",
	})

	require.True(t, result.Success, result.Error)
	require.Zero(t, chain.approveCalls)
}

func TestBridgeRejectsBadRequests(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name    string
		Request BridgeRequest
	}{
		{"nil amount", BridgeRequest{Recipient: "0xff"}},
		{"zero amount", BridgeRequest{Amount: big.NewInt(0), Recipient: "0xff"}},
		{"negative amount", BridgeRequest{Amount: big.NewInt(-1), Recipient: "0xff"}},
		{"empty recipient", BridgeRequest{Amount: big.NewInt(1)}},
		{"non-hex recipient", BridgeRequest{Amount: big.NewInt(1), Recipient: "0xzz"}},
	} {
		t.Run(test.Name, func(t *testing.T) {
			chain := happyChain()
			in := newTestInitiator(t, chain, nil)

			result := in.Bridge(context.Background(), test.Request)
			require.False(t, result.Success)
			require.NotEmpty(t, result.Error)
			require.Zero(t, chain.approveCalls)
		})
	}
}

func TestBridgeTransferReverted(t *testing.T) {
	t.Parallel()

	chain := happyChain()
	chain.transferReceipt = &types.Receipt{
		Status: types.ReceiptStatusFailed,
		TxHash: common.HexToHash("0xbb"),
	}
	in := newTestInitiator(t, chain, nil)

	result := in.Bridge(context.Background(), BridgeRequest{
		Amount:    big.NewInt(1),
		Recipient: "0xff",
	})

	require.False(t, result.Success)
	require.Contains(t, result.Error, "transfer failed")
	require.Contains(t, result.Error, "reverted")
}

func TestBridgeFailsWhenSequenceMissing(t *testing.T) {
	t.Parallel()

	// Transfer mined, but the receipt carries no core bridge message. The
	// tokens moved yet nothing was published cross-chain, so the operation
	// must be reported as failed.
	chain := happyChain()
	chain.transferReceipt = &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xbb"),
		Logs:   []*types.Log{transferLog(t, testToken, big.NewInt(1))},
	}
	in := newTestInitiator(t, chain, nil)

	result := in.Bridge(context.Background(), BridgeRequest{
		Amount:    big.NewInt(1),
		Recipient: "0xff",
	})

	require.False(t, result.Success)
	require.Contains(t, result.Error, "sequence not found in logs")
}

func TestBridgeWaitsForAttestation(t *testing.T) {
	t.Parallel()

	chain := happyChain()
	chain.transferReceipt = &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xbb"),
		Logs:   []*types.Log{messageLog(t, testCoreBridge, 42)},
	}
	vaa := signedVAABytes(42)
	in := newTestInitiator(t, chain, &fakeAttestor{vaa: vaa})

	result := in.Bridge(context.Background(), BridgeRequest{
		Amount:     big.NewInt(1),
		Recipient:  "0xff",
		WaitForVAA: true,
	})

	require.True(t, result.Success, result.Error)
	require.Equal(t, vaa, result.VAA)
}

func TestBridgeRejectsMismatchedAttestation(t *testing.T) {
	t.Parallel()

	chain := happyChain()
	chain.transferReceipt = &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xbb"),
		Logs:   []*types.Log{messageLog(t, testCoreBridge, 42)},
	}
	in := newTestInitiator(t, chain, &fakeAttestor{vaa: signedVAABytes(43)})

	result := in.Bridge(context.Background(), BridgeRequest{
		Amount:     big.NewInt(1),
		Recipient:  "0xff",
		WaitForVAA: true,
	})

	require.False(t, result.Success)
	require.Contains(t, result.Error, "does not match published sequence")
}

func TestBridgeWithoutAttestationClient(t *testing.T) {
	t.Parallel()

	chain := happyChain()
	chain.transferReceipt = &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xbb"),
		Logs:   []*types.Log{messageLog(t, testCoreBridge, 42)},
	}
	in := newTestInitiator(t, chain, nil)

	result := in.Bridge(context.Background(), BridgeRequest{
		Amount:     big.NewInt(1),
		Recipient:  "0xff",
		WaitForVAA: true,
	})

	require.False(t, result.Success)
	require.Contains(t, result.Error, "no attestation client configured")
}
