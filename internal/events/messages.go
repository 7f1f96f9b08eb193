package events

import (
	"encoding/json"
	"time"
)

const (
	ActionCreated Action = "created"
	ActionDeleted Action = "deleted"
)

// Action says what happened to a transaction.
type Action string

// TransactionEvent is the lightweight message published after a mutation.
// It carries only the ID and action; the export worker fetches the full
// record from the database when it needs one.
type TransactionEvent struct {
	ID        int64     `json:"id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEvent builds an event stamped with the current time.
func NewTransactionEvent(id int64, action Action) *TransactionEvent {
	return &TransactionEvent{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON parses an event from JSON bytes.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
