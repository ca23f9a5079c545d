package bridge

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Minimal ABI subsets for the three contracts the bridge flow touches.
// Only the functions and events this module actually calls or decodes.
const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

const coreBridgeABIJSON = `[
	{"inputs":[],"name":"messageFee","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"sender","type":"address"},{"indexed":false,"name":"sequence","type":"uint64"},{"indexed":false,"name":"nonce","type":"uint32"},{"indexed":false,"name":"payload","type":"bytes"},{"indexed":false,"name":"consistencyLevel","type":"uint8"}],"name":"LogMessagePublished","type":"event"}
]`

const tokenBridgeABIJSON = `[
	{"inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"recipientChain","type":"uint16"},{"name":"recipient","type":"bytes32"},{"name":"arbiterFee","type":"uint256"},{"name":"nonce","type":"uint32"}],"name":"transferTokens","outputs":[{"name":"sequence","type":"uint64"}],"stateMutability":"payable","type":"function"}
]`

var (
	ERC20ABI       = mustParseABI(erc20ABIJSON)
	CoreBridgeABI  = mustParseABI(coreBridgeABIJSON)
	TokenBridgeABI = mustParseABI(tokenBridgeABIJSON)

	// Topic hashes used to recognise logs before attempting a full decode.
	TransferTopic            = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	LogMessagePublishedTopic = crypto.Keccak256Hash([]byte("LogMessagePublished(address,uint64,uint32,bytes,uint8)"))
)

func mustParseABI(json string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(json))
	if err != nil {
		panic("bridge: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

// EmitterHex returns the 64-character hex form of an EVM address used by the
// guardian API as the emitter path segment (no 0x prefix, left-padded).
func EmitterHex(addr common.Address) string {
	return "000000000000000000000000" + strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x"))
}
