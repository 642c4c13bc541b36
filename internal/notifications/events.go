package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the engine event being published
type EventKind string

const (
	EventSeatFreed     EventKind = "SEAT_FREED"
	EventHoldGranted   EventKind = "HOLD_GRANTED"
	EventOfferExpiring EventKind = "OFFER_EXPIRING"
)

// HoldSource distinguishes a direct booking hold from a waitlist offer hold
type HoldSource string

const (
	HoldSourceDirect   HoldSource = "DIRECT"
	HoldSourceWaitlist HoldSource = "WAITLIST"
)

// SeatEvent is the wire shape of every outbound engine event. These are
// advisory signals for the UI/push collaborators; the state transition that
// produced them is the source of truth.
type SeatEvent struct {
	ID         uuid.UUID  `json:"id"`
	Kind       EventKind  `json:"kind"`
	SeatID     uuid.UUID  `json:"seat_id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	EntryID    *uuid.UUID `json:"entry_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Source     HoldSource `json:"source,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewSeatEvent creates an event with id and timestamp filled in
func NewSeatEvent(kind EventKind, seatID uuid.UUID) *SeatEvent {
	return &SeatEvent{
		ID:         uuid.New(),
		Kind:       kind,
		SeatID:     seatID,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON serializes the event for the broker
func (e *SeatEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// PartitionKey routes all events for one seat to the same partition so
// consumers see them in order
func (e *SeatEvent) PartitionKey() string {
	return e.SeatID.String()
}
