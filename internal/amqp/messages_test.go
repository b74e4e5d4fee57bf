package amqp

import (
	"testing"
	"time"
)

func TestNewLedgerEventMessage(t *testing.T) {
	msg := NewLedgerEventMessage(OpCreated, 42)

	if msg.Op != OpCreated || msg.ID != 42 {
		t.Errorf("message = %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("timestamp should be recent")
	}
}

func TestLedgerEventMessageJSON(t *testing.T) {
	msg := &LedgerEventMessage{
		Op:        OpDeleted,
		ID:        7,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := LedgerEventMessageFromJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Op != msg.Op || parsed.ID != msg.ID || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("round trip = %+v", parsed)
	}
}

func TestLedgerEventMessageRejectsUnknownOp(t *testing.T) {
	if _, err := LedgerEventMessageFromJSON([]byte(`{"op":"renamed","id":1}`)); err == nil {
		t.Error("unknown op accepted")
	}
	if err := (&LedgerEventMessage{Op: ""}).Validate(); err == nil {
		t.Error("empty op accepted")
	}
}

func TestLedgerEventMessageInvalidJSON(t *testing.T) {
	if _, err := LedgerEventMessageFromJSON([]byte(`{"id": "nope"}`)); err == nil {
		t.Error("invalid JSON accepted")
	}
}
