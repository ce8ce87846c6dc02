package events

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"onlsale/core/types"
)

// Loggable is implemented by events that have a Solidity-style ABI definition
// and can therefore be rendered as EVM logs.
type Loggable interface {
	Event
	LogAddress() [20]byte
	LogEvent() (abi.Event, []interface{})
}

// EncodeLog renders the event as an EVM log. The boolean result is false for
// events without an ABI definition.
func EncodeLog(evt Event) (*types.Log, bool, error) {
	loggable, ok := evt.(Loggable)
	if !ok {
		return nil, false, nil
	}
	def, values := loggable.LogEvent()
	if len(values) != len(def.Inputs) {
		return nil, true, fmt.Errorf("events: %s expects %d arguments, got %d", def.Name, len(def.Inputs), len(values))
	}
	var (
		indexed [][]interface{}
		data    []interface{}
	)
	for i, input := range def.Inputs {
		if input.Indexed {
			indexed = append(indexed, []interface{}{values[i]})
			continue
		}
		data = append(data, values[i])
	}
	topics := []string{def.ID.Hex()}
	if len(indexed) > 0 {
		hashes, err := abi.MakeTopics(indexed...)
		if err != nil {
			return nil, true, fmt.Errorf("events: %s topics: %w", def.Name, err)
		}
		for _, hash := range hashes {
			topics = append(topics, hash[0].Hex())
		}
	}
	packed, err := def.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, true, fmt.Errorf("events: %s data: %w", def.Name, err)
	}
	return &types.Log{
		Address: common.Address(loggable.LogAddress()).Hex(),
		Topics:  topics,
		Data:    "0x" + hex.EncodeToString(packed),
	}, true, nil
}
