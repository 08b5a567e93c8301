package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action tells the worker what happened to a caixinha.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// SavingEventMessage announces a caixinha change. It carries only the ID and
// version; the worker loads the current state from the store.
type SavingEventMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSavingEventMessage(id, version int64, action Action) *SavingEventMessage {
	return &SavingEventMessage{
		ID:        id,
		Version:   version,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

func (m *SavingEventMessage) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("invalid saving id %d", m.ID)
	}
	switch m.Action {
	case ActionUpsert, ActionDelete:
		return nil
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
}

func (m *SavingEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SavingEventMessageFromJSON decodes and validates a message body.
func SavingEventMessageFromJSON(data []byte) (*SavingEventMessage, error) {
	var msg SavingEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
