package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// EventKind doubles as the routing key on the topic exchange.
type EventKind string

const (
	TransactionCreated EventKind = "transaction.created"
	TransactionUpdated EventKind = "transaction.updated"
	TransactionDeleted EventKind = "transaction.deleted"
)

// TransactionEvent is a lightweight notification about a transaction change.
// Consumers that need the full row fetch it by id.
type TransactionEvent struct {
	Event         EventKind `json:"event"`
	TransactionID int64     `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	Type          string    `json:"type"`
	AmountCents   int64     `json:"amount_cents"`
	CategoryID    int64     `json:"category_id"`
	Date          string    `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(kind EventKind, t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Event:         kind,
		TransactionID: t.ID,
		UserID:        t.UserID,
		Type:          string(t.Type),
		AmountCents:   t.Amount.Cents,
		CategoryID:    t.CategoryID,
		Date:          t.Date.String(),
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
