package bookings

import "errors"

var (
	// ErrBookingNotFound indicates the booking does not exist or is not
	// visible to the caller
	ErrBookingNotFound = errors.New("booking not found")

	// ErrBookingNotActive rejects operations on cancelled or expired
	// bookings
	ErrBookingNotActive = errors.New("booking is not active")

	// ErrBookingConflict indicates the seat already carries an active
	// booking
	ErrBookingConflict = errors.New("seat already has an active booking")

	// ErrIdempotencyConflict indicates an idempotency key was reused with a
	// different request
	ErrIdempotencyConflict = errors.New("idempotency key was already used with different parameters")

	// ErrInvalidSpan rejects a booking or extension with a non-positive
	// duration
	ErrInvalidSpan = errors.New("booking span must be at least one month")
)
