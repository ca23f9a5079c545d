package bridge

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	testToken      = common.HexToAddress("0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d")
	testCoreBridge = common.HexToAddress("0x6b9C8671cdDC8dEab9c719bB87cBd3e782bA6a35")
	testSender     = common.HexToAddress("0xC7A204bDBFe983FCD8d8E61D02b475D4073fF97e")
	testFrom       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTo         = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func transferLog(t *testing.T, token common.Address, value *big.Int) *types.Log {
	t.Helper()
	data, err := ERC20ABI.Events["Transfer"].Inputs.NonIndexed().Pack(value)
	require.NoError(t, err)
	return &types.Log{
		Address: token,
		Topics:  []common.Hash{TransferTopic, addressTopic(testFrom), addressTopic(testTo)},
		Data:    data,
	}
}

func messageLog(t *testing.T, emitter common.Address, sequence uint64) *types.Log {
	t.Helper()
	data, err := CoreBridgeABI.Events["LogMessagePublished"].Inputs.NonIndexed().Pack(
		sequence, uint32(7), []byte{0xde, 0xad}, uint8(15))
	require.NoError(t, err)
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{LogMessagePublishedTopic, addressTopic(testSender)},
		Data:    data,
	}
}

func TestDecodeLogTransfer(t *testing.T) {
	t.Parallel()

	decoded := DecodeLog(transferLog(t, testToken, big.NewInt(1500000)))
	require.Equal(t, EventTransfer, decoded.Kind)
	require.Equal(t, testToken, decoded.Transfer.Token)
	require.Equal(t, testFrom, decoded.Transfer.From)
	require.Equal(t, testTo, decoded.Transfer.To)
	require.Equal(t, big.NewInt(1500000), decoded.Transfer.Value)
}

func TestDecodeLogMessagePublished(t *testing.T) {
	t.Parallel()

	decoded := DecodeLog(messageLog(t, testCoreBridge, 42))
	require.Equal(t, EventMessagePublished, decoded.Kind)
	require.Equal(t, testCoreBridge, decoded.Message.Emitter)
	require.Equal(t, testSender, decoded.Message.Sender)
	require.Equal(t, uint64(42), decoded.Message.Sequence)
	require.Equal(t, uint32(7), decoded.Message.Nonce)
	require.Equal(t, []byte{0xde, 0xad}, decoded.Message.Payload)
	require.Equal(t, uint8(15), decoded.Message.ConsistencyLevel)
}

func TestDecodeLogNoMatch(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name string
		Log  *types.Log
	}{
		{"nil log", nil},
		{"no topics", &types.Log{Address: testToken}},
		{
			"unknown topic",
			&types.Log{
				Address: testToken,
				Topics:  []common.Hash{common.HexToHash("0x01")},
			},
		},
		{
			// An approval-style log with only two topics must not decode as
			// a transfer.
			"transfer with wrong topic count",
			&types.Log{
				Address: testToken,
				Topics:  []common.Hash{TransferTopic, addressTopic(testFrom)},
				Data:    common.LeftPadBytes(big.NewInt(1).Bytes(), 32),
			},
		},
		{
			"message with truncated data",
			&types.Log{
				Address: testCoreBridge,
				Topics:  []common.Hash{LogMessagePublishedTopic, addressTopic(testSender)},
				Data:    []byte{0x01, 0x02},
			},
		},
	} {
		t.Run(test.Name, func(t *testing.T) {
			require.Equal(t, EventNoMatch, DecodeLog(test.Log).Kind)
		})
	}
}
