// Package verify re-derives proof of a claimed bridge transaction from the
// chain. Nothing the client asserts is trusted except the transaction hash;
// every check fails closed.
package verify

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/bridge"
)

// Reason identifies which verification check failed. Operators use these to
// tell a bad actor from an RPC misconfiguration from a still-pending
// transaction.
type Reason string

const (
	ReasonOK                 Reason = "ok"
	ReasonMalformedClaim     Reason = "malformed_claim"
	ReasonReceiptUnavailable Reason = "receipt_unavailable"
	ReasonTxFailed           Reason = "transaction_failed"
	ReasonWrongContract      Reason = "wrong_destination_contract"
	ReasonTransferMissing    Reason = "transfer_missing_or_insufficient"
	ReasonMessageMissing     Reason = "message_missing_or_sequence_mismatch"
)

// Outcome is the result of one verification: a boolean plus the specific
// failure reason. Verified is true only when every check passed.
type Outcome struct {
	Verified bool
	Reason   Reason
	Detail   string
}

// ChainReader is the read-only chain surface verification needs. The
// receipt does not carry the destination address, so the transaction itself
// is fetched as well. *ethclient.Client satisfies this, as does
// clients.EVMClient.
type ChainReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// Config names the contracts a legitimate bridge transaction must involve.
type Config struct {
	BridgeContract common.Address // token bridge / integration contract the tx must call
	TokenContract  common.Address // stablecoin whose Transfer log is required
	CoreBridge     common.Address // core bridge emitting LogMessagePublished
}

// Verifier checks client-asserted bridge transactions against the chain.
type Verifier struct {
	chain  ChainReader
	cfg    Config
	logger *zap.Logger
}

func NewVerifier(logger *zap.Logger, cfg Config, chain ChainReader) *Verifier {
	return &Verifier{
		chain:  chain,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "Verifier")),
	}
}

// VerifyBridgeTransaction proves on-chain that the claimed bridge occurred.
// It never panics or propagates errors across this boundary: any failure to
// obtain or decode chain state yields a not-verified outcome with a reason.
func (v *Verifier) VerifyBridgeTransaction(ctx context.Context, claim bridge.BridgeTransaction) Outcome {
	log := v.logger.With(zap.String("txHash", claim.Hash))

	hash, requiredUnits, outcome := v.parseClaim(claim)
	if outcome != nil {
		log.Warn("Rejecting malformed claim", zap.String("detail", outcome.Detail))
		return *outcome
	}

	receipt, err := v.chain.TransactionReceipt(ctx, hash)
	if err != nil || receipt == nil {
		log.Warn("Receipt unavailable", zap.Error(err))
		return failed(ReasonReceiptUnavailable, "transaction not found or not yet mined")
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Warn("Transaction reverted", zap.Uint64("status", receipt.Status))
		return failed(ReasonTxFailed, "transaction did not succeed")
	}

	// A transaction to a different contract cannot be trusted regardless of
	// what its logs say.
	tx, _, err := v.chain.TransactionByHash(ctx, hash)
	if err != nil || tx == nil {
		log.Warn("Transaction fetch failed", zap.Error(err))
		return failed(ReasonReceiptUnavailable, "transaction not found")
	}
	if tx.To() == nil || *tx.To() != v.cfg.BridgeContract {
		to := "nil"
		if tx.To() != nil {
			to = tx.To().Hex()
		}
		log.Warn("Wrong destination contract",
			zap.String("to", to),
			zap.String("expected", v.cfg.BridgeContract.Hex()))
		return failed(ReasonWrongContract, fmt.Sprintf("transaction was sent to %s", to))
	}

	transferFound, messageFound := v.scanLogs(log, receipt, requiredUnits, claim.WormholeSequence)

	switch {
	case transferFound && messageFound:
		log.Info("Bridge transaction verified",
			zap.String("amount", claim.Amount),
			zap.String("sequence", claim.WormholeSequence))
		return Outcome{Verified: true, Reason: ReasonOK}
	case !transferFound:
		log.Warn("USDC transfer not found or below claimed amount",
			zap.String("claimedAmount", claim.Amount))
		return failed(ReasonTransferMissing, "no matching token transfer covering the claimed amount")
	default:
		log.Warn("Bridge message not found or sequence mismatch",
			zap.String("claimedSequence", claim.WormholeSequence))
		return failed(ReasonMessageMissing, "no published message matching the claimed sequence")
	}
}

func (v *Verifier) parseClaim(claim bridge.BridgeTransaction) (common.Hash, *big.Int, *Outcome) {
	trimmed := strings.TrimSpace(claim.Hash)
	if !strings.HasPrefix(trimmed, "0x") || len(trimmed) != 66 {
		o := failed(ReasonMalformedClaim, fmt.Sprintf("invalid transaction hash %q", claim.Hash))
		return common.Hash{}, nil, &o
	}

	units, err := bridge.ParseUSDC(claim.Amount)
	if err != nil {
		o := failed(ReasonMalformedClaim, fmt.Sprintf("invalid amount: %v", err))
		return common.Hash{}, nil, &o
	}
	if strings.TrimSpace(claim.WormholeSequence) == "" {
		o := failed(ReasonMalformedClaim, "missing wormhole sequence")
		return common.Hash{}, nil, &o
	}
	return common.HexToHash(trimmed), units, nil
}

// scanLogs walks the receipt logs in order, trying each against the two
// known event shapes. Logs that decode as neither are skipped; a receipt
// routinely carries logs from unrelated contracts.
func (v *Verifier) scanLogs(log *zap.Logger, receipt *types.Receipt, required *big.Int, claimedSequence string) (transferFound, messageFound bool) {
	for i, raw := range receipt.Logs {
		decoded := bridge.DecodeLog(raw)
		switch decoded.Kind {
		case bridge.EventTransfer:
			// Only transfers emitted by the known stablecoin count, and the
			// locked amount must cover the claim; downstream relayer fees
			// may reduce the net, never the lock.
			if raw.Address != v.cfg.TokenContract {
				continue
			}
			if decoded.Transfer.Value.Cmp(required) >= 0 {
				log.Debug("Matching transfer found",
					zap.Int("logIndex", i),
					zap.String("value", decoded.Transfer.Value.String()))
				transferFound = true
			}
		case bridge.EventMessagePublished:
			// Anyone can emit an identically-shaped event; only the core
			// bridge's counts.
			if raw.Address != v.cfg.CoreBridge {
				continue
			}
			sequence := fmt.Sprintf("%d", decoded.Message.Sequence)
			if sequence == claimedSequence {
				log.Debug("Matching published message found",
					zap.Int("logIndex", i),
					zap.String("sequence", sequence))
				messageFound = true
			}
		}
	}
	return transferFound, messageFound
}

func failed(reason Reason, detail string) Outcome {
	return Outcome{Verified: false, Reason: reason, Detail: detail}
}
