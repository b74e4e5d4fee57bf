package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operations carried by ledger event messages.
const (
	OpCreated  = "created"
	OpUpdated  = "updated"
	OpDeleted  = "deleted"
	OpReplaced = "replaced"
)

// LedgerEventMessage tells the worker that the ledger changed. It carries
// only the operation and the transaction id; the worker fetches current
// state from the database, so a stale or duplicated message is harmless.
type LedgerEventMessage struct {
	Op        string    `json:"op"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(op string, id int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Op:        op,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *LedgerEventMessage) Validate() error {
	switch m.Op {
	case OpCreated, OpUpdated, OpDeleted, OpReplaced:
	default:
		return fmt.Errorf("unknown operation %q", m.Op)
	}
	return nil
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
