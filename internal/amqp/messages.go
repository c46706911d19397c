package amqp

import (
	"encoding/json"
	"time"

	"payrollforms/internal/core"
)

// FormsSavedMessage carries a full snapshot of the store after a successful save.
// Snapshots are small, so the consumer needs no access to the publisher's storage.
type FormsSavedMessage struct {
	Backend   string                 `json:"backend"`
	Records   map[string]core.Record `json:"records"`
	Timestamp time.Time              `json:"timestamp"`
}

func NewFormsSavedMessage(backend string, s *core.Store) *FormsSavedMessage {
	return &FormsSavedMessage{
		Backend:   backend,
		Records:   s.Map(),
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *FormsSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FormsSavedMessageFromJSON creates a message from JSON bytes
func FormsSavedMessageFromJSON(data []byte) (*FormsSavedMessage, error) {
	var msg FormsSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Records == nil {
		msg.Records = map[string]core.Record{}
	}
	return &msg, nil
}
