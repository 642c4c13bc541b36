package bookings

// ConfirmBookingRequest converts a live hold into a booking
type ConfirmBookingRequest struct {
	SeatID    string `json:"seat_id" binding:"required,uuid"`
	StartDate string `json:"start_date,omitempty"` // YYYY-MM-DD, defaults to today
	Months    int    `json:"months" binding:"required,min=1"`
}

// ExtendBookingRequest moves the booking's end date forward
type ExtendBookingRequest struct {
	Months         int    `json:"months" binding:"required,min=1"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,min=8,max=128"`
}
