package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"khoroch/internal/core"
)

// EventType names the store write an ExpenseEvent reports.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	default:
		return false
	}
}

var ErrInvalidEvent = errors.New("invalid expense event")

// ExpensePayload is the wire form of core.Expense.
type ExpensePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	AmountCents int64  `json:"amount_cents"`
	Scope       string `json:"scope"`
}

// ExpenseEvent is published after the record store acknowledges a write.
// Deleted events carry the last known state of the row.
type ExpenseEvent struct {
	Type      EventType      `json:"type"`
	Expense   ExpensePayload `json:"expense"`
	Actor     string         `json:"actor,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewExpenseEvent creates an event stamped with the current time
func NewExpenseEvent(t EventType, e core.Expense, actor string) *ExpenseEvent {
	return &ExpenseEvent{
		Type: t,
		Expense: ExpensePayload{
			ID:          e.ID,
			Name:        e.Name,
			Category:    e.Category,
			Date:        e.Date,
			AmountCents: e.Amount.Cents,
			Scope:       string(e.Scope),
		},
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}
}

// CoreExpense converts the payload back to the domain type.
func (p ExpensePayload) CoreExpense() core.Expense {
	return core.Expense{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Date:     p.Date,
		Amount:   core.Money{Cents: p.AmountCents},
		Scope:    core.Scope(p.Scope).Normalize(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and checks an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, msg.Type)
	}
	if msg.Expense.ID == "" {
		return nil, fmt.Errorf("%w: missing expense id", ErrInvalidEvent)
	}
	return &msg, nil
}
