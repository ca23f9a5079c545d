package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventKind tags the result of matching a raw log against the known event
// shapes. A log that matches neither is EventNoMatch, not an error: receipts
// routinely carry logs from unrelated contracts.
type EventKind int

const (
	EventNoMatch EventKind = iota
	EventTransfer
	EventMessagePublished
)

// TransferEvent is a decoded ERC-20 Transfer(from, to, value).
type TransferEvent struct {
	Token common.Address
	From  common.Address
	To    common.Address
	Value *big.Int
}

// MessagePublishedEvent is a decoded core-bridge
// LogMessagePublished(sender, sequence, nonce, payload, consistencyLevel).
type MessagePublishedEvent struct {
	Emitter          common.Address // contract that emitted the log
	Sender           common.Address // indexed publisher (the token bridge)
	Sequence         uint64
	Nonce            uint32
	Payload          []byte
	ConsistencyLevel uint8
}

// DecodedEvent is the tagged variant produced by DecodeLog.
type DecodedEvent struct {
	Kind     EventKind
	Transfer *TransferEvent
	Message  *MessagePublishedEvent
}

// DecodeLog attempts to decode a single log against the two ABIs the bridge
// flow cares about. Malformed candidates come back as EventNoMatch so a
// receipt scan can continue to the next log.
func DecodeLog(log *types.Log) DecodedEvent {
	if log == nil || len(log.Topics) == 0 {
		return DecodedEvent{Kind: EventNoMatch}
	}

	switch log.Topics[0] {
	case TransferTopic:
		if ev := decodeTransfer(log); ev != nil {
			return DecodedEvent{Kind: EventTransfer, Transfer: ev}
		}
	case LogMessagePublishedTopic:
		if ev := decodeMessagePublished(log); ev != nil {
			return DecodedEvent{Kind: EventMessagePublished, Message: ev}
		}
	}
	return DecodedEvent{Kind: EventNoMatch}
}

func decodeTransfer(log *types.Log) *TransferEvent {
	// from and to are indexed, value sits alone in the data segment.
	if len(log.Topics) != 3 {
		return nil
	}
	vals, err := ERC20ABI.Unpack("Transfer", log.Data)
	if err != nil || len(vals) != 1 {
		return nil
	}
	value, ok := vals[0].(*big.Int)
	if !ok {
		return nil
	}
	return &TransferEvent{
		Token: log.Address,
		From:  common.BytesToAddress(log.Topics[1].Bytes()),
		To:    common.BytesToAddress(log.Topics[2].Bytes()),
		Value: value,
	}
}

func decodeMessagePublished(log *types.Log) *MessagePublishedEvent {
	if len(log.Topics) != 2 {
		return nil
	}
	vals, err := CoreBridgeABI.Unpack("LogMessagePublished", log.Data)
	if err != nil || len(vals) != 4 {
		return nil
	}
	sequence, ok1 := vals[0].(uint64)
	nonce, ok2 := vals[1].(uint32)
	payload, ok3 := vals[2].([]byte)
	consistency, ok4 := vals[3].(uint8)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil
	}
	return &MessagePublishedEvent{
		Emitter:          log.Address,
		Sender:           common.BytesToAddress(log.Topics[1].Bytes()),
		Sequence:         sequence,
		Nonce:            nonce,
		Payload:          payload,
		ConsistencyLevel: consistency,
	}
}
