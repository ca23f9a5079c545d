package bridge

import (
	"encoding/binary"
	"fmt"
	"time"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// ParseVAA decodes guardian-returned attestation bytes. The SDK unmarshaller
// is strict about the version byte; guardians on testnet have been observed
// emitting v2 envelopes with an identical layout, so fall back to a
// permissive parse before giving up. The raw bytes are what gets redeemed
// on-chain either way.
func ParseVAA(data []byte) (*vaaLib.VAA, error) {
	if parsed, err := vaaLib.Unmarshal(data); err == nil {
		return parsed, nil
	}
	return parseVAAPermissive(data)
}

func parseVAAPermissive(data []byte) (*vaaLib.VAA, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("VAA too short: %d bytes", len(data))
	}

	version := data[0]
	if version != 1 && version != 2 {
		return nil, fmt.Errorf("unsupported VAA version: %d", version)
	}

	// Envelope: version (1) | guardian set index (4) | signature count (1) |
	// signatures (66 each: guardian index + 65-byte signature) | body.
	guardianSetIndex := binary.BigEndian.Uint32(data[1:5])
	signatureCount := int(data[5])
	signaturesEnd := 6 + signatureCount*66
	if len(data) < signaturesEnd {
		return nil, fmt.Errorf("VAA too short for %d signatures", signatureCount)
	}

	signatures := make([]*vaaLib.Signature, signatureCount)
	for i := 0; i < signatureCount; i++ {
		start := 6 + i*66
		var sig [65]byte
		copy(sig[:], data[start+1:start+66])
		signatures[i] = &vaaLib.Signature{Index: data[start], Signature: sig}
	}

	// Body: timestamp (4) | nonce (4) | emitter chain (2) |
	// emitter address (32) | sequence (8) | consistency level (1) | payload.
	body := data[signaturesEnd:]
	if len(body) < 51 {
		return nil, fmt.Errorf("VAA body too short: %d bytes", len(body))
	}

	var emitterAddress vaaLib.Address
	copy(emitterAddress[:], body[10:42])

	return &vaaLib.VAA{
		Version:          version,
		GuardianSetIndex: guardianSetIndex,
		Signatures:       signatures,
		Timestamp:        time.Unix(int64(binary.BigEndian.Uint32(body[0:4])), 0),
		Nonce:            binary.BigEndian.Uint32(body[4:8]),
		EmitterChain:     vaaLib.ChainID(binary.BigEndian.Uint16(body[8:10])),
		EmitterAddress:   emitterAddress,
		Sequence:         binary.BigEndian.Uint64(body[42:50]),
		ConsistencyLevel: body[50],
		Payload:          body[51:],
	}, nil
}
