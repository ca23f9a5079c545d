package bridge

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FindMessagePublished scans receipt logs in order for a LogMessagePublished
// event emitted by the given core-bridge contract. A missing event is an
// explicit error: if the core bridge never logged, no cross-chain message
// was published and the transfer cannot be treated as a bridge.
func FindMessagePublished(receipt *types.Receipt, coreBridge common.Address) (*MessagePublishedEvent, error) {
	if receipt == nil {
		return nil, fmt.Errorf("nil receipt")
	}
	for _, log := range receipt.Logs {
		if log.Address != coreBridge {
			continue
		}
		if ev := DecodeLog(log); ev.Kind == EventMessagePublished {
			return ev.Message, nil
		}
	}
	return nil, fmt.Errorf("sequence not found in logs: no LogMessagePublished from %s", coreBridge.Hex())
}

// ExtractSequence returns the published sequence number as a decimal string.
func ExtractSequence(receipt *types.Receipt, coreBridge common.Address) (string, error) {
	ev, err := FindMessagePublished(receipt, coreBridge)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(ev.Sequence, 10), nil
}
