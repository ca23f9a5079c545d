package bridge

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// TransferParams carries everything the token bridge's transferTokens call
// needs. Fee is the wormhole message fee attached as transaction value, not
// part of the calldata.
type TransferParams struct {
	Token          common.Address
	Amount         *big.Int
	RecipientChain uint16
	Recipient      [32]byte
	ArbiterFee     *big.Int
	Nonce          uint32
	Fee            *big.Int
}

// ChainClient is the on-chain surface the initiator drives. Implemented by
// clients.EVMClient; faked in tests.
type ChainClient interface {
	SignerAddress() common.Address
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error)
	MessageFee(ctx context.Context, coreBridge common.Address) (*big.Int, error)
	TransferTokens(ctx context.Context, tokenBridge common.Address, params TransferParams) (*types.Receipt, error)
}

// AttestationClient obtains a signed VAA for a published message, polling
// until ready or until its bounded attempts run out.
type AttestationClient interface {
	AwaitSignedVAA(ctx context.Context, chainID uint16, emitter common.Address, sequence string, onAttempt func(attempt, total int)) ([]byte, error)
}

// Config holds the per-network contract addresses and chain IDs.
type Config struct {
	Token          common.Address // stablecoin (USDC) contract
	TokenBridge    common.Address // wormhole token bridge / integration contract
	CoreBridge     common.Address // wormhole core bridge
	SourceChainID  uint16         // wormhole chain ID of the source chain
	RecipientChain uint16         // wormhole chain ID of the destination chain
}

// Initiator drives the approve -> transfer -> sequence -> attestation flow.
// Each invocation is sequential: a step's transaction is awaited before the
// next begins, because each step depends on state the previous one produced.
type Initiator struct {
	cfg         Config
	chain       ChainClient
	attestation AttestationClient
	logger      *zap.Logger
	resetDelay  time.Duration

	// OnStep, when set, receives step transitions for progress display.
	OnStep func(step Step, detail string)

	mu          sync.Mutex
	signerLocks map[common.Address]*sync.Mutex
	step        Step
}

// NewInitiator creates an initiator. attestation may be nil when callers
// never request VAA polling.
func NewInitiator(logger *zap.Logger, cfg Config, chain ChainClient, attestation AttestationClient) *Initiator {
	return &Initiator{
		cfg:         cfg,
		chain:       chain,
		attestation: attestation,
		logger:      logger.With(zap.String("component", "Initiator")),
		resetDelay:  2 * time.Second,
		signerLocks: make(map[common.Address]*sync.Mutex),
		step:        StepIdle,
	}
}

// Step reports the current lifecycle step.
func (in *Initiator) Step() Step {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.step
}

// Bridge executes the full flow and returns a terminal BridgeResult; it
// never returns an error — every failure is folded into the result so
// callers can react uniformly. Invocations for the same signer are
// serialized in-process because the read-allowance-then-approve window is
// racy; concurrent signers from other processes remain the caller's problem.
func (in *Initiator) Bridge(ctx context.Context, req BridgeRequest) BridgeResult {
	lock := in.signerLock(in.chain.SignerAddress())
	lock.Lock()
	defer lock.Unlock()

	// Clear the in-progress indicator shortly after the flow ends, success
	// or not, so a stuck step is never displayed forever.
	defer time.AfterFunc(in.resetDelay, func() { in.setStep(StepIdle, "") })

	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return in.fail(fmt.Errorf("bridge amount must be positive"))
	}
	recipient, err := NormalizeRecipient(req.Recipient)
	if err != nil {
		return in.fail(fmt.Errorf("invalid recipient: %v", err))
	}

	signer := in.chain.SignerAddress()
	in.logger.Info("Starting bridge",
		zap.String("signer", signer.Hex()),
		zap.String("amount", FormatUSDC(req.Amount)),
		zap.String("recipient", req.Recipient))

	if err := in.ensureAllowance(ctx, signer, req.Amount); err != nil {
		return in.fail(fmt.Errorf("approval failed: %v", err))
	}

	receipt, err := in.transfer(ctx, req.Amount, recipient)
	if err != nil {
		return in.fail(fmt.Errorf("transfer failed: %v", err))
	}
	txHash := receipt.TxHash.Hex()

	in.setStep(StepExtractingSequence, "")
	msg, err := FindMessagePublished(receipt, in.cfg.CoreBridge)
	if err != nil {
		// The token transfer may have been mined, but without a published
		// message the operation did not succeed as a bridge.
		return in.fail(err)
	}
	sequence := fmt.Sprintf("%d", msg.Sequence)
	in.logger.Info("Bridge message published",
		zap.String("txHash", txHash),
		zap.String("sequence", sequence),
		zap.String("emitter", msg.Sender.Hex()))

	var vaaBytes []byte
	if req.WaitForVAA {
		vaaBytes, err = in.awaitAttestation(ctx, msg.Sender, sequence)
		if err != nil {
			return in.fail(fmt.Errorf("attestation failed: %v", err))
		}
	}

	in.setStep(StepComplete, "")
	return BridgeResult{
		Success:          true,
		TxHash:           txHash,
		WormholeSequence: sequence,
		VAA:              vaaBytes,
	}
}

// ensureAllowance skips the approve transaction entirely when the existing
// allowance already covers the amount, making partial retries safe.
func (in *Initiator) ensureAllowance(ctx context.Context, signer common.Address, amount *big.Int) error {
	in.setStep(StepApproving, "")

	allowance, err := in.chain.Allowance(ctx, in.cfg.Token, signer, in.cfg.TokenBridge)
	if err != nil {
		return fmt.Errorf("read allowance: %v", err)
	}
	if allowance.Cmp(amount) >= 0 {
		in.logger.Debug("Allowance sufficient, skipping approve",
			zap.String("allowance", allowance.String()),
			zap.String("required", amount.String()))
		return nil
	}

	receipt, err := in.chain.Approve(ctx, in.cfg.Token, in.cfg.TokenBridge, amount)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("approve transaction %s reverted", receipt.TxHash.Hex())
	}
	in.logger.Info("Approval mined", zap.String("txHash", receipt.TxHash.Hex()))
	return nil
}

func (in *Initiator) transfer(ctx context.Context, amount *big.Int, recipient [32]byte) (*types.Receipt, error) {
	in.setStep(StepTransferring, "")

	fee, err := in.chain.MessageFee(ctx, in.cfg.CoreBridge)
	if err != nil {
		return nil, fmt.Errorf("read message fee: %v", err)
	}

	receipt, err := in.chain.TransferTokens(ctx, in.cfg.TokenBridge, TransferParams{
		Token:          in.cfg.Token,
		Amount:         amount,
		RecipientChain: in.cfg.RecipientChain,
		Recipient:      recipient,
		ArbiterFee:     big.NewInt(0),
		Nonce:          randomNonce(),
		Fee:            fee,
	})
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transfer transaction %s reverted", receipt.TxHash.Hex())
	}
	return receipt, nil
}

func (in *Initiator) awaitAttestation(ctx context.Context, emitter common.Address, sequence string) ([]byte, error) {
	if in.attestation == nil {
		return nil, fmt.Errorf("no attestation client configured")
	}
	in.setStep(StepAwaitingAttestation, "")

	vaaBytes, err := in.attestation.AwaitSignedVAA(ctx, in.cfg.SourceChainID, emitter, sequence,
		func(attempt, total int) {
			in.setStep(StepAwaitingAttestation, fmt.Sprintf("waiting, attempt %d/%d", attempt, total))
		})
	if err != nil {
		return nil, err
	}

	// Sanity-check the guardian response against the on-chain sequence.
	parsed, err := ParseVAA(vaaBytes)
	if err != nil {
		return nil, fmt.Errorf("parse signed VAA: %v", err)
	}
	if got := fmt.Sprintf("%d", parsed.Sequence); got != sequence {
		return nil, fmt.Errorf("signed VAA sequence %s does not match published sequence %s", got, sequence)
	}
	return vaaBytes, nil
}

func (in *Initiator) fail(err error) BridgeResult {
	in.logger.Error("Bridge failed", zap.Error(err))
	in.setStep(StepFailed, err.Error())
	return BridgeResult{Success: false, Error: err.Error()}
}

func (in *Initiator) setStep(step Step, detail string) {
	in.mu.Lock()
	in.step = step
	cb := in.OnStep
	in.mu.Unlock()
	if cb != nil {
		cb(step, detail)
	}
}

func (in *Initiator) signerLock(signer common.Address) *sync.Mutex {
	in.mu.Lock()
	defer in.mu.Unlock()
	lock, ok := in.signerLocks[signer]
	if !ok {
		lock = &sync.Mutex{}
		in.signerLocks[signer] = lock
	}
	return lock
}

func randomNonce() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint32(buf[:])
}
