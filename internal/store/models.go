package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trueth-protocol/bridge/internal/bridge"
)

// BridgeStatus tracks an accepted submission's bridge lifecycle after
// verification.
type BridgeStatus string

const (
	// BridgePending - verified on the source chain, waiting for the guardian
	// attestation to confirm cross-chain completion.
	BridgePending BridgeStatus = "pending"

	// BridgeCompleted - a signed VAA for the submission's sequence was
	// observed.
	BridgeCompleted BridgeStatus = "completed"

	// BridgeAttestationTimeout - completion monitoring gave up without a
	// signed VAA. The on-chain transfer still stands.
	BridgeAttestationTimeout BridgeStatus = "attestation_timeout"
)

// FileRef points at an uploaded evidence file in the blob store. Blob IDs
// are recorded verbatim as supplied; this service never derives them.
type FileRef struct {
	Name   string `json:"name" bson:"name"`
	BlobID string `json:"blobId,omitempty" bson:"blob_id,omitempty"`
	Size   int64  `json:"size,omitempty" bson:"size,omitempty"`
}

// Investigation is a community-verified report accepted after its bridge
// payment was proven on-chain.
type Investigation struct {
	ID           primitive.ObjectID       `json:"id" bson:"_id,omitempty"`
	Title        string                   `json:"title" bson:"title"`
	Content      string                   `json:"content" bson:"content"`
	Tags         []string                 `json:"tags,omitempty" bson:"tags,omitempty"`
	Evidence     []string                 `json:"evidence,omitempty" bson:"evidence,omitempty"`
	Files        []FileRef                `json:"files,omitempty" bson:"files,omitempty"`
	UserWallet   string                   `json:"userWallet" bson:"user_wallet"`
	UserID       string                   `json:"userId,omitempty" bson:"user_id,omitempty"`
	BridgeTx     bridge.BridgeTransaction `json:"bridgeTx" bson:"bridge_tx"`
	BridgeStatus BridgeStatus             `json:"bridgeStatus" bson:"bridge_status"`
	CreatedAt    time.Time                `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time                `json:"updatedAt" bson:"updated_at"`
}

// Filter narrows investigation listings.
type Filter struct {
	Status     BridgeStatus
	UserWallet string
}

// Page is a paginated listing result.
type Page struct {
	Investigations []Investigation `json:"investigations"`
	Total          int64           `json:"total"`
	PageNumber     int64           `json:"page"`
	PageSize       int64           `json:"pageSize"`
}
