package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event published on the notifications queue.
type EventType string

const (
	EventSlotAssigned         EventType = "slot.assigned"
	EventSlotReleased         EventType = "slot.released"
	EventPaymentRecorded      EventType = "payment.recorded"
	EventPaymentStatusChanged EventType = "payment.status_changed"
	EventPaymentReminder      EventType = "payment.reminder"
)

func (t EventType) Valid() bool {
	switch t {
	case EventSlotAssigned, EventSlotReleased, EventPaymentRecorded,
		EventPaymentStatusChanged, EventPaymentReminder:
		return true
	}
	return false
}

// IsPayment reports whether the event concerns a payment record.
func (t EventType) IsPayment() bool {
	return t == EventPaymentRecorded || t == EventPaymentStatusChanged
}

// Event is a small self-describing notification. Consumers fetch anything
// else they need from storage.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	GroupID   string    `json:"groupId"`
	MemberID  string    `json:"memberId,omitempty"`
	Month     string    `json:"month,omitempty"`
	PaymentID string    `json:"paymentId,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Status    string    `json:"status,omitempty"`
	DueDate   string    `json:"dueDate,omitempty"`
	Reminder  string    `json:"reminder,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with a fresh id and the current time.
func NewEvent(t EventType, groupID, memberID, month string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		GroupID:   groupID,
		MemberID:  memberID,
		Month:     month,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event and rejects unknown types.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Type.Valid() {
		return nil, errors.New("unknown event type: " + string(e.Type))
	}
	if e.GroupID == "" {
		return nil, errors.New("event without group id")
	}
	return &e, nil
}
