package waitlist

// JoinRequest asks to queue for an occupied seat
type JoinRequest struct {
	SeatID string `json:"seat_id" binding:"required,uuid"`
}
