// Package events defines the lookup lifecycle events fanned out to writers
// and hooks. All events serialize to JSON with a "type" discriminator.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of output event.
type EventType string

const (
	// EventTypeStart is emitted when a lookup begins scraping.
	EventTypeStart EventType = "lookup_start"
	// EventTypePartial carries one provider's result.
	EventTypePartial EventType = "partial_result"
	// EventTypeComplete is emitted once every provider has reported.
	EventTypeComplete EventType = "lookup_complete"
	// EventTypeRejected is emitted when the address is not public.
	EventTypeRejected EventType = "lookup_rejected"
)

// AllTypes lists every event type.
var AllTypes = []EventType{EventTypeStart, EventTypePartial, EventTypeComplete, EventTypeRejected}

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	LookupID() string
}

// BaseEvent contains common fields for all events.
// It is designed to be embedded in specific event types.
type BaseEvent struct {
	Type   EventType `json:"type"`
	Time   time.Time `json:"timestamp"`
	Lookup string    `json:"lookup_id"`
	IP     string    `json:"ip"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LookupID returns the identifier shared by all events of one lookup.
func (e BaseEvent) LookupID() string { return e.Lookup }

// NewLookupID returns a fresh lookup identifier.
func NewLookupID() string {
	return uuid.NewString()
}

func base(t EventType, lookupID, ip string) BaseEvent {
	return BaseEvent{Type: t, Time: time.Now().UTC(), Lookup: lookupID, IP: ip}
}
