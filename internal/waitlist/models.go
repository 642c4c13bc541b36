package waitlist

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryStatus tracks a waitlist entry through its lifecycle
type EntryStatus string

const (
	StatusActive    EntryStatus = "ACTIVE"    // waiting in the queue
	StatusNotified  EntryStatus = "NOTIFIED"  // offered the seat, hold granted
	StatusExpired   EntryStatus = "EXPIRED"   // offer lapsed unclaimed; terminal
	StatusFulfilled EntryStatus = "FULFILLED" // offer converted into a booking
	StatusCancelled EntryStatus = "CANCELLED" // user left the queue
)

var (
	// ErrAlreadyWaitlisted indicates the user already has a live entry for
	// the seat
	ErrAlreadyWaitlisted = errors.New("user is already waitlisted for this seat")

	// ErrSeatNotOccupied rejects joining a queue for a seat that can simply
	// be held directly
	ErrSeatNotOccupied = errors.New("seat is not occupied")

	// ErrEntryNotFound indicates the entry does not exist or is not visible
	// to the caller
	ErrEntryNotFound = errors.New("waitlist entry not found")

	// ErrEntryNotLive indicates the entry has already reached a terminal
	// state
	ErrEntryNotLive = errors.New("waitlist entry is no longer active")
)

// Entry is the durable record of one user waiting for one seat. Queue order
// lives in a Redis sorted set scored by join time; the row carries the
// lifecycle.
//
// An entry that leaves the queue never re-enters it. A lapsed offer is
// terminal and the user must join again at the back.
type Entry struct {
	ID                uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SeatID            uuid.UUID   `gorm:"type:uuid;index;not null" json:"seat_id"`
	UserID            uuid.UUID   `gorm:"type:uuid;index;not null" json:"user_id"`
	Status            EntryStatus `gorm:"type:varchar(20);default:'ACTIVE';index" json:"status"`
	JoinedAt          time.Time   `gorm:"not null" json:"joined_at"`
	NotifiedAt        *time.Time  `json:"notified_at,omitempty"`
	NotifiedExpiresAt *time.Time  `gorm:"index" json:"notified_expires_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// TableName sets the table name for Entry
func (Entry) TableName() string {
	return "waitlist_entries"
}

// IsLive reports whether the entry can still be acted on
func (e *Entry) IsLive() bool {
	return e.Status == StatusActive || e.Status == StatusNotified
}

// GetQueueKey returns the Redis sorted set key for a seat's queue
func GetQueueKey(seatID uuid.UUID) string {
	return "waitlist_queue:" + seatID.String()
}
