// internal/provider/wompi/event.go
package wompi

import (
	"encoding/json"
	"fmt"
)

// Event is the envelope Wompi posts to the events endpoint. Wompi emits a
// single event type, transaction.updated, and the transaction status field
// carries the actual outcome.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		Transaction Transaction `json:"transaction"`
	} `json:"data"`
	SentAt    string `json:"sent_at"`
	Timestamp int64  `json:"timestamp"`
}

const EventTransactionUpdated = "transaction.updated"

// ParseEvent decodes a webhook body. Verification must already have run on
// the raw bytes; parsing never happens before the digest check.
func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("parse wompi event: %w", err)
	}
	return &ev, nil
}
