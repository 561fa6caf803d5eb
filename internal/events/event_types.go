package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/balu-property/damage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDamageCreated       EventType = "damage_created"
	EventDamageStatusChanged EventType = "damage_status_changed"
	EventOfferCreated        EventType = "offer_created"
	EventOfferRequested      EventType = "offer_requested"
	EventDefectRaised        EventType = "defect_raised"
	EventRatingCreated       EventType = "rating_created"
	EventRequestReconciled   EventType = "request_reconciled"
)

// AllEventTypes lists every type the notification service listens to.
func AllEventTypes() []EventType {
	return []EventType{
		EventDamageCreated,
		EventDamageStatusChanged,
		EventOfferCreated,
		EventOfferRequested,
		EventDefectRaised,
		EventRatingCreated,
		EventRequestReconciled,
	}
}

// Recipient is someone who should hear about an event. Email is set for
// companies that are only known by address.
type Recipient struct {
	ActorID string      `json:"actor_id,omitempty"`
	Role    domain.Role `json:"role"`
	Email   string      `json:"email,omitempty"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	TicketID   string         `json:"ticket_id"`
	Actor      domain.Actor   `json:"actor"`
	Timestamp  time.Time      `json:"timestamp"`
	Recipients []Recipient    `json:"recipients,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, ticketID string, actor domain.Actor, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
