package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/bridge"
)

const (
	txGasLimit      = 1_500_000
	receiptPollRate = 2 * time.Second
)

// EVMClient handles interactions with the source EVM chain (Arbitrum
// Sepolia): read calls, transaction signing/submission and receipt waits.
type EVMClient struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger
}

// NewEVMClient connects to an EVM RPC endpoint. privateKeyHex may be empty
// for read-only use (receipt verification needs no signer).
func NewEVMClient(logger *zap.Logger, rpcURL, privateKeyHex string) (*EVMClient, error) {
	client := &EVMClient{
		logger: logger.With(zap.String("component", "EVMClient")),
	}

	client.logger.Info("Connecting to EVM chain", zap.String("rpcURL", rpcURL))
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %v", err)
	}
	client.client = ethClient

	if privateKeyHex != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %v", err)
		}
		publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("error casting public key to ECDSA")
		}
		client.privateKey = privateKey
		client.address = crypto.PubkeyToAddress(*publicKey)
	}

	return client, nil
}

// SignerAddress returns the public address of the configured signer.
func (c *EVMClient) SignerAddress() common.Address {
	return c.address
}

// TransactionReceipt fetches a receipt; returns ethereum.NotFound while the
// transaction is unmined or unknown.
func (c *EVMClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.client.TransactionReceipt(ctx, hash)
}

// TransactionByHash fetches the transaction itself (the receipt does not
// carry the destination address).
func (c *EVMClient) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	return c.client.TransactionByHash(ctx, hash)
}

// Allowance reads the current ERC-20 allowance for (owner -> spender).
func (c *EVMClient) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := bridge.ERC20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %v", err)
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("allowance call failed: %v", err)
	}
	vals, err := bridge.ERC20ABI.Unpack("allowance", out)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("allowance unpack error: %v", err)
	}
	allowance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", vals[0])
	}
	return allowance, nil
}

// MessageFee reads the wormhole message fee from the core bridge.
func (c *EVMClient) MessageFee(ctx context.Context, coreBridge common.Address) (*big.Int, error) {
	data, err := bridge.CoreBridgeABI.Pack("messageFee")
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %v", err)
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &coreBridge, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("messageFee call failed: %v", err)
	}
	vals, err := bridge.CoreBridgeABI.Unpack("messageFee", out)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("messageFee unpack error: %v", err)
	}
	fee, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected messageFee type %T", vals[0])
	}
	return fee, nil
}

// Approve submits an ERC-20 approve transaction and waits for it to mine.
func (c *EVMClient) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	data, err := bridge.ERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %v", err)
	}
	c.logger.Debug("Sending approve transaction",
		zap.String("token", token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("amount", amount.String()))
	return c.sendAndWait(ctx, token, big.NewInt(0), data)
}

// TransferTokens submits the token bridge transfer and waits for its receipt.
func (c *EVMClient) TransferTokens(ctx context.Context, tokenBridge common.Address, params bridge.TransferParams) (*types.Receipt, error) {
	data, err := bridge.TokenBridgeABI.Pack("transferTokens",
		params.Token, params.Amount, params.RecipientChain, params.Recipient, params.ArbiterFee, params.Nonce)
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %v", err)
	}
	value := params.Fee
	if value == nil {
		value = big.NewInt(0)
	}
	c.logger.Debug("Sending transferTokens transaction",
		zap.String("tokenBridge", tokenBridge.Hex()),
		zap.String("amount", params.Amount.String()),
		zap.Uint16("recipientChain", params.RecipientChain),
		zap.Uint32("nonce", params.Nonce),
		zap.String("fee", value.String()))
	return c.sendAndWait(ctx, tokenBridge, value, data)
}

// sendAndWait signs an EIP-1559 transaction, submits it and polls until the
// receipt is available or the context ends.
func (c *EVMClient) sendAndWait(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("no signer configured")
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %v", err)
	}
	chainID, err := c.client.NetworkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %v", err)
	}
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block header: %v", err)
	}

	// 2x base fee as max fee to ride out fluctuations.
	maxPriorityFeePerGas := big.NewInt(100000000) // 0.1 gwei tip
	maxFeePerGas := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
	maxFeePerGas.Add(maxFeePerGas, maxPriorityFeePerGas)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: maxPriorityFeePerGas,
		GasFeeCap: maxFeePerGas,
		Gas:       txGasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signedTx, err := types.SignTx(tx, types.NewLondonSigner(chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}
	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %v", err)
	}

	c.logger.Debug("Transaction submitted, awaiting receipt",
		zap.String("txHash", signedTx.Hash().Hex()))
	return c.waitMined(ctx, signedTx.Hash())
}

func (c *EVMClient) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollRate)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			c.logger.Warn("Receipt fetch error, retrying", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for transaction %s: %v", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
