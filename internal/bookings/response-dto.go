package bookings

import "time"

// BookingResponse is the API projection of a booking
type BookingResponse struct {
	ID          string        `json:"id"`
	SeatID      string        `json:"seat_id"`
	UserID      string        `json:"user_id"`
	Status      BookingStatus `json:"status"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	MonthlyRate int64         `json:"monthly_rate"`
	BookingRef  string        `json:"booking_ref"`
	CreatedAt   time.Time     `json:"created_at"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
}

// ExtensionResponse is the API projection of an extension
type ExtensionResponse struct {
	ID             string    `json:"id"`
	BookingID      string    `json:"booking_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	OldEndDate     time.Time `json:"old_end_date"`
	NewEndDate     time.Time `json:"new_end_date"`
	Months         int       `json:"months"`
	Amount         int64     `json:"amount"`
	CreatedAt      time.Time `json:"created_at"`
}

func toBookingResponse(b *Booking) BookingResponse {
	return BookingResponse{
		ID:          b.ID.String(),
		SeatID:      b.SeatID.String(),
		UserID:      b.UserID.String(),
		Status:      b.Status,
		StartDate:   b.StartDate,
		EndDate:     b.EndDate,
		MonthlyRate: b.MonthlyRate,
		BookingRef:  b.BookingRef,
		CreatedAt:   b.CreatedAt,
		CancelledAt: b.CancelledAt,
	}
}

func toExtensionResponse(e *Extension) ExtensionResponse {
	return ExtensionResponse{
		ID:             e.ID.String(),
		BookingID:      e.BookingID.String(),
		IdempotencyKey: e.IdempotencyKey,
		OldEndDate:     e.OldEndDate,
		NewEndDate:     e.NewEndDate,
		Months:         e.Months,
		Amount:         e.Amount,
		CreatedAt:      e.CreatedAt,
	}
}
