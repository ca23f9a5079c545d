package bridge

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// PadRecipientHex normalizes a destination-chain address into the 32-byte
// wire form the token bridge expects: strip any 0x prefix, left-pad with
// zeros to 64 hex characters, re-prefix with 0x. Sui addresses are 32 bytes
// wide, so this is total for any input of at most 64 hex characters.
func PadRecipientHex(addr string) (string, error) {
	trimmed := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))
	if trimmed == "" {
		return "", fmt.Errorf("empty recipient address")
	}
	if len(trimmed) > 64 {
		return "", fmt.Errorf("recipient address %q is longer than 32 bytes", addr)
	}
	if _, err := hex.DecodeString(padEven(trimmed)); err != nil {
		return "", fmt.Errorf("recipient address %q is not valid hex", addr)
	}
	return "0x" + strings.Repeat("0", 64-len(trimmed)) + trimmed, nil
}

// NormalizeRecipient returns the padded address as the raw 32-byte value
// passed to transferTokens.
func NormalizeRecipient(addr string) ([32]byte, error) {
	var out [32]byte
	padded, err := PadRecipientHex(addr)
	if err != nil {
		return out, err
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(padded, "0x"))
	if err != nil {
		return out, err
	}
	copy(out[:], raw)
	return out, nil
}

func padEven(s string) string {
	if len(s)%2 == 1 {
		return "0" + s
	}
	return s
}
