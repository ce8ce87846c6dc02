package core

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"onlsale/core/events"
	"onlsale/core/types"
	"onlsale/crypto"
	"onlsale/integrations/eventlog"
)

// Receipt describes one committed operation and everything it emitted, both
// as attribute maps and as EVM logs.
type Receipt struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"`
	Caller    string        `json:"caller,omitempty"`
	Timestamp int64         `json:"timestamp"`
	Result    string        `json:"result,omitempty"`
	Events    []types.Event `json:"events"`
	Logs      []types.Log   `json:"logs"`
}

func newReceipt(operation string, caller [20]byte, now int64, result *big.Int, emitted []events.Event) (*Receipt, error) {
	receipt := &Receipt{
		ID:        uuid.NewString(),
		Operation: operation,
		Timestamp: now,
		Events:    make([]types.Event, 0, len(emitted)),
		Logs:      make([]types.Log, 0, len(emitted)),
	}
	if caller != ([20]byte{}) {
		receipt.Caller = crypto.FormatAddress(caller)
	}
	if result != nil {
		receipt.Result = result.String()
	}
	for _, evt := range emitted {
		if payload := events.Payload(evt); payload != nil {
			receipt.Events = append(receipt.Events, *payload)
		} else {
			receipt.Events = append(receipt.Events, types.Event{Type: evt.EventType(), Attributes: map[string]string{}})
		}
		log, ok, err := events.EncodeLog(evt)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", evt.EventType(), err)
		}
		if ok {
			receipt.Logs = append(receipt.Logs, *log)
		}
	}
	return receipt, nil
}

// records converts the receipt into archive rows. Logs are matched to events
// by position since every loggable event yields exactly one log.
func (r *Receipt) records(emitted []events.Event) []eventlog.Record {
	at := time.Unix(r.Timestamp, 0).UTC()
	out := make([]eventlog.Record, 0, len(r.Events))
	logIdx := 0
	for i, evt := range r.Events {
		rec := eventlog.Record{
			ReceiptID:  r.ID,
			Operation:  r.Operation,
			Type:       evt.Type,
			Attributes: evt.Attributes,
			OccurredAt: at,
		}
		if i < len(emitted) {
			if _, ok := emitted[i].(events.Loggable); ok && logIdx < len(r.Logs) {
				log := r.Logs[logIdx]
				rec.Log = &log
				logIdx++
			}
		}
		out = append(out, rec)
	}
	return out
}
