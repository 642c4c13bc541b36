package seats

import "errors"

var (
	// ErrSeatNotFound indicates the seat id does not exist
	ErrSeatNotFound = errors.New("seat not found")

	// ErrSeatUnavailable indicates the seat is held by someone else or occupied
	ErrSeatUnavailable = errors.New("seat is not available")

	// ErrSeatDisabled indicates the seat is under maintenance
	ErrSeatDisabled = errors.New("seat is disabled for maintenance")

	// ErrHoldExpired indicates the caller's hold no longer exists
	ErrHoldExpired = errors.New("hold has expired")

	// ErrHoldMismatch indicates the live hold belongs to a different user
	ErrHoldMismatch = errors.New("hold is owned by another user")

	// ErrSeatBooked rejects an external status change that would orphan an
	// active booking
	ErrSeatBooked = errors.New("seat has an active booking")

	// ErrInvalidStatus rejects an unknown or disallowed target status
	ErrInvalidStatus = errors.New("invalid seat status")
)
