package waitlist

import "time"

// EntryResponse is the API projection of a waitlist entry. Position is
// 1-based and only meaningful while the entry is ACTIVE.
type EntryResponse struct {
	ID             string      `json:"id"`
	SeatID         string      `json:"seat_id"`
	UserID         string      `json:"user_id"`
	Status         EntryStatus `json:"status"`
	Position       int         `json:"position,omitempty"`
	JoinedAt       time.Time   `json:"joined_at"`
	NotifiedAt     *time.Time  `json:"notified_at,omitempty"`
	OfferExpiresAt *time.Time  `json:"offer_expires_at,omitempty"`
}
