package seats

import (
	"time"

	"github.com/google/uuid"
)

// SeatStatus is the persisted seat state
type SeatStatus string

const (
	StatusAvailable   SeatStatus = "AVAILABLE"
	StatusHeld        SeatStatus = "HELD"
	StatusOccupied    SeatStatus = "OCCUPIED"
	StatusMaintenance SeatStatus = "MAINTENANCE"
)

// IsValid checks if the seat status is valid
func (s SeatStatus) IsValid() bool {
	switch s {
	case StatusAvailable, StatusHeld, StatusOccupied, StatusMaintenance:
		return true
	default:
		return false
	}
}

// Seat defines a single bookable cabin inside a venue.
//
// Status HELD together with HeldBy/HoldExpiresAt mirrors the live Redis
// hold; the Redis key is the arbiter under races and its TTL defines
// expiry. The mirror is reconciled lazily on read and by the sweep.
type Seat struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VenueID       uuid.UUID  `gorm:"type:uuid;index;not null;uniqueIndex:idx_venue_label" json:"venue_id"`
	Floor         int        `gorm:"not null;default:0" json:"floor"`
	Zone          string     `gorm:"type:varchar(50)" json:"zone,omitempty"`
	Label         string     `gorm:"not null;uniqueIndex:idx_venue_label" json:"label"`
	Status        SeatStatus `gorm:"type:varchar(20);check:status IN ('AVAILABLE', 'HELD', 'OCCUPIED', 'MAINTENANCE');default:'AVAILABLE'" json:"status"`
	HeldBy        *uuid.UUID `gorm:"type:uuid" json:"held_by,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	MonthlyRate   int64      `gorm:"not null" json:"monthly_rate"` // paise
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName sets the table name for Seat
func (Seat) TableName() string {
	return "seats"
}

func (s *Seat) IsAvailable() bool {
	return s.Status == StatusAvailable
}

func (s *Seat) IsOccupied() bool {
	return s.Status == StatusOccupied
}

func (s *Seat) IsUnderMaintenance() bool {
	return s.Status == StatusMaintenance
}

// HoldLapsed reports whether the mirrored hold has passed its expiry.
// A lapsed hold must be treated as already released regardless of the
// stored status.
func (s *Seat) HoldLapsed(now time.Time) bool {
	return s.Status == StatusHeld && (s.HoldExpiresAt == nil || !s.HoldExpiresAt.After(now))
}

// Release reasons fed into the single seat-freed path
const (
	ReleaseHoldCancelled    = "hold_cancelled"
	ReleaseHoldExpired      = "hold_expired"
	ReleaseOfferExpired     = "offer_expired"
	ReleaseBookingCancelled = "booking_cancelled"
	ReleaseBookingExpired   = "booking_expired"
	ReleaseExternalChange   = "external_change"
)

// HoldToken is returned to a caller granted an exclusive hold
type HoldToken struct {
	SeatID     uuid.UUID `json:"seat_id"`
	UserID     uuid.UUID `json:"user_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	TTLSeconds int       `json:"ttl_seconds"`
}

// SeatStatusView is the read projection returned by status queries
type SeatStatusView struct {
	ID            string     `json:"id"`
	VenueID       string     `json:"venue_id"`
	Floor         int        `json:"floor"`
	Zone          string     `json:"zone,omitempty"`
	Label         string     `json:"label"`
	Status        SeatStatus `json:"status"`
	HeldBy        string     `json:"held_by,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	MonthlyRate   int64      `json:"monthly_rate"`
}

// ToView converts a reconciled seat row into the API projection
func (s *Seat) ToView() SeatStatusView {
	view := SeatStatusView{
		ID:            s.ID.String(),
		VenueID:       s.VenueID.String(),
		Floor:         s.Floor,
		Zone:          s.Zone,
		Label:         s.Label,
		Status:        s.Status,
		HoldExpiresAt: s.HoldExpiresAt,
		MonthlyRate:   s.MonthlyRate,
	}
	if s.HeldBy != nil {
		view.HeldBy = s.HeldBy.String()
	}
	return view
}

// ExternalStatusRequest mirrors the inbound SeatExternalStatusChanged event
type ExternalStatusRequest struct {
	Status SeatStatus `json:"status" binding:"required"`
}
