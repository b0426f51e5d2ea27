package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"allowance/internal/core"
)

// EventType names what happened to the data directory.
type EventType string

const (
	// EventEntryAppended carries the entry that was just stored.
	EventEntryAppended EventType = "entry.appended"
	// EventTableReplaced says a whole table was imported.
	EventTableReplaced EventType = "table.replaced"
)

// EventMessage is the body published for every ledger change. Entry is set
// for EventEntryAppended only.
type EventMessage struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Table     core.Table  `json:"table"`
	Entry     *core.Entry `json:"entry,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEntryAppendedMessage wraps a stored ledger entry.
func NewEntryAppendedMessage(e core.Entry) *EventMessage {
	return &EventMessage{
		ID:        uuid.NewString(),
		Type:      EventEntryAppended,
		Table:     core.TableLedger,
		Entry:     &e,
		Timestamp: time.Now(),
	}
}

// NewTableReplacedMessage announces an import into t.
func NewTableReplacedMessage(t core.Table) *EventMessage {
	return &EventMessage{
		ID:        uuid.NewString(),
		Type:      EventTableReplaced,
		Table:     t,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes and checks a message body.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventEntryAppended:
		if msg.Entry == nil {
			return nil, fmt.Errorf("%s message %s without entry", msg.Type, msg.ID)
		}
	case EventTableReplaced:
		if _, err := core.ParseTable(string(msg.Table)); err != nil {
			return nil, fmt.Errorf("%s message %s: %w", msg.Type, msg.ID, err)
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
