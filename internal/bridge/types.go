package bridge

import "math/big"

// Step identifies where a bridge invocation currently is in its lifecycle.
type Step string

const (
	StepIdle                Step = "idle"
	StepApproving           Step = "approving"
	StepTransferring        Step = "transferring"
	StepExtractingSequence  Step = "extracting_sequence"
	StepAwaitingAttestation Step = "awaiting_attestation"
	StepComplete            Step = "complete"
	StepFailed              Step = "failed"
)

// BridgeTransaction is the client-asserted record of a completed bridge
// transfer. It is produced once by the initiator and never mutated; the
// verifier re-derives everything except the hash from the chain.
type BridgeTransaction struct {
	Hash             string `json:"hash" bson:"hash"`
	Amount           string `json:"amount" bson:"amount"`
	From             string `json:"from" bson:"from"`
	SuiRecipient     string `json:"suiRecipient" bson:"sui_recipient"`
	WormholeSequence string `json:"wormholeSequence" bson:"wormhole_sequence"`
	Timestamp        int64  `json:"timestamp" bson:"timestamp"`
}

// BridgeRequest describes one bridge invocation.
type BridgeRequest struct {
	// Amount in USDC base units (6 decimals).
	Amount *big.Int
	// Recipient is the destination-chain address, 0x-prefixed hex of up to
	// 32 bytes.
	Recipient string
	// WaitForVAA enables guardian attestation polling after the transfer.
	WaitForVAA bool
}

// BridgeResult is the terminal outcome of a bridge invocation.
// Success implies TxHash and WormholeSequence are both non-empty.
type BridgeResult struct {
	Success          bool   `json:"success"`
	TxHash           string `json:"txHash,omitempty"`
	WormholeSequence string `json:"wormholeSequence,omitempty"`
	VAA              []byte `json:"vaa,omitempty"`
	Error            string `json:"error,omitempty"`
}
