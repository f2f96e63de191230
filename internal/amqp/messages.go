package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names the mutation an ExpenseEvent reports.
type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventCleared  EventType = "cleared"
	EventImported EventType = "imported"
)

// ExpenseEvent is a lightweight change notification. It carries the record id
// for single-record mutations and the row count for imports, never the record
// itself; consumers read current state through the API.
type ExpenseEvent struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(t EventType, id int64) ExpenseEvent {
	return ExpenseEvent{Type: t, ID: id, Timestamp: time.Now().UTC()}
}

func NewImportEvent(count int) ExpenseEvent {
	return ExpenseEvent{Type: EventImported, Count: count, Timestamp: time.Now().UTC()}
}

func (e ExpenseEvent) Validate() error {
	switch e.Type {
	case EventCreated, EventUpdated, EventDeleted:
		if e.ID <= 0 {
			return fmt.Errorf("%s event requires a positive id", e.Type)
		}
	case EventImported:
		if e.Count < 0 {
			return fmt.Errorf("imported event requires a non-negative count")
		}
	case EventCleared:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes and validates an event.
func ExpenseEventFromJSON(data []byte) (ExpenseEvent, error) {
	var e ExpenseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ExpenseEvent{}, err
	}
	if err := e.Validate(); err != nil {
		return ExpenseEvent{}, err
	}
	return e, nil
}
