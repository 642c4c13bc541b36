package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deskly/internal/seats"
	"deskly/internal/shared/clock"
	"deskly/internal/shared/config"
	"deskly/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeatEngine is the slice of the seat service the booking flow needs
type SeatEngine interface {
	ValidateHold(ctx context.Context, seatID, userID uuid.UUID) error
	DropHold(ctx context.Context, seatID uuid.UUID) error
	ReleaseSeat(ctx context.Context, seatID uuid.UUID, reason string) error
	WithSeatLock(ctx context.Context, seatID uuid.UUID, fn func() error) error
}

// WaitlistService converts a claimed offer into a fulfilled entry
type WaitlistService interface {
	MarkFulfilled(ctx context.Context, seatID, userID uuid.UUID) error
}

type Service interface {
	// Service dependency injection
	SetWaitlist(w WaitlistService)

	ConfirmBooking(ctx context.Context, req ConfirmBookingRequest, userID uuid.UUID) (*BookingResponse, error)
	CancelBooking(ctx context.Context, bookingID string, userID uuid.UUID) error
	ExtendBooking(ctx context.Context, bookingID string, req ExtendBookingRequest, userID uuid.UUID) (*ExtensionResponse, error)
	GetBooking(ctx context.Context, bookingID string, userID uuid.UUID) (*BookingResponse, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID) ([]BookingResponse, error)

	// Sweep support
	ExpireLapsed(ctx context.Context, limit int) (int, error)
}

type service struct {
	repo     Repository
	engine   SeatEngine
	waitlist WaitlistService
	config   *config.Config
	log      *logger.Logger
	clk      clock.Clock
}

func NewService(repo Repository, engine SeatEngine, cfg *config.Config, log *logger.Logger) Service {
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{
		repo:   repo,
		engine: engine,
		config: cfg,
		log:    log,
		clk:    clock.System(),
	}
}

// SetWaitlist injects the waitlist side after both services exist
func (s *service) SetWaitlist(w WaitlistService) {
	s.waitlist = w
}

// SetClock overrides the time source
func (s *service) SetClock(clk clock.Clock) {
	s.clk = clk
}

// ConfirmBooking converts the caller's live hold into an active booking.
// The holder check and the confirming transaction run inside the seat's
// transition lock, so a hold that expires and is re-granted to a promoted
// waiter cannot be confirmed over by its stale previous owner.
func (s *service) ConfirmBooking(ctx context.Context, req ConfirmBookingRequest, userID uuid.UUID) (*BookingResponse, error) {
	seatID, err := uuid.Parse(req.SeatID)
	if err != nil {
		return nil, fmt.Errorf("invalid seat ID: %w", err)
	}

	startDate, err := s.resolveStartDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	endDate := startDate.AddDate(0, req.Months, 0)
	if !endDate.After(startDate) {
		return nil, ErrInvalidSpan
	}

	seat, err := s.repo.GetSeat(ctx, seatID)
	if err != nil {
		return nil, err
	}

	booking := &Booking{
		ID:          uuid.New(),
		SeatID:      seatID,
		UserID:      userID,
		Status:      StatusActive,
		StartDate:   startDate,
		EndDate:     endDate,
		MonthlyRate: seat.MonthlyRate,
		BookingRef:  generateBookingRef(),
	}
	payment := &Payment{
		Kind:   PaymentInitial,
		Amount: seat.MonthlyRate * int64(req.Months),
	}

	err = s.engine.WithSeatLock(ctx, seatID, func() error {
		if err := s.engine.ValidateHold(ctx, seatID, userID); err != nil {
			return err
		}

		if err := s.repo.CreateConfirmed(ctx, booking, payment); err != nil {
			return err
		}

		// The row is OCCUPIED now; the hold key has done its job
		if err := s.engine.DropHold(ctx, seatID); err != nil {
			s.log.Error("failed to drop hold after confirmation",
				"seat_id", seatID.String(), "error", err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.waitlist != nil {
		if err := s.waitlist.MarkFulfilled(ctx, seatID, userID); err != nil {
			s.log.Error("failed to mark waitlist entry fulfilled",
				"seat_id", seatID.String(), "error", err.Error())
		}
	}

	s.log.LogBookingCreated(ctx, booking.ID.String(), seatID.String(), userID.String())

	resp := toBookingResponse(booking)
	return &resp, nil
}

func (s *service) CancelBooking(ctx context.Context, bookingID string, userID uuid.UUID) error {
	booking, err := s.ownedBooking(ctx, bookingID, userID)
	if err != nil {
		return err
	}

	if !booking.IsActive() {
		return ErrBookingNotActive
	}

	booking.Cancel(s.clk.Now())
	if err := s.repo.Cancel(ctx, booking); err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	if err := s.engine.ReleaseSeat(ctx, booking.SeatID, seats.ReleaseBookingCancelled); err != nil {
		return err
	}

	s.log.LogBookingCancelled(ctx, booking.ID.String(), booking.SeatID.String(), userID.String())
	return nil
}

// ExtendBooking moves the end date forward by whole months. Retries with
// the same idempotency key return the original extension; reusing a key
// for a different request is rejected.
func (s *service) ExtendBooking(ctx context.Context, bookingID string, req ExtendBookingRequest, userID uuid.UUID) (*ExtensionResponse, error) {
	booking, err := s.ownedBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if !booking.IsActive() || booking.Lapsed(now) {
		return nil, ErrBookingNotActive
	}

	ext := &Extension{
		ID:             uuid.New(),
		BookingID:      booking.ID,
		IdempotencyKey: req.IdempotencyKey,
		OldEndDate:     booking.EndDate,
		NewEndDate:     booking.EndDate.AddDate(0, req.Months, 0),
		Months:         req.Months,
		Amount:         booking.MonthlyRate * int64(req.Months),
	}
	payment := &Payment{
		Kind:   PaymentExtension,
		Amount: ext.Amount,
	}

	err = s.repo.CreateExtension(ctx, booking.ID, ext.NewEndDate, ext, payment)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.replayExtension(ctx, booking.ID, req)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extend booking: %w", err)
	}

	s.log.Info("booking extended",
		"booking_id", booking.ID.String(),
		"new_end_date", ext.NewEndDate,
		"months", req.Months,
	)

	resp := toExtensionResponse(ext)
	return &resp, nil
}

// replayExtension answers a retried request from the original row
func (s *service) replayExtension(ctx context.Context, bookingID uuid.UUID, req ExtendBookingRequest) (*ExtensionResponse, error) {
	existing, err := s.repo.GetExtensionByKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing.BookingID != bookingID || existing.Months != req.Months {
		return nil, ErrIdempotencyConflict
	}

	resp := toExtensionResponse(existing)
	return &resp, nil
}

func (s *service) GetBooking(ctx context.Context, bookingID string, userID uuid.UUID) (*BookingResponse, error) {
	booking, err := s.ownedBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	resp := toBookingResponse(booking)
	return &resp, nil
}

func (s *service) GetUserBookings(ctx context.Context, userID uuid.UUID) ([]BookingResponse, error) {
	bookings, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	responses := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		responses = append(responses, toBookingResponse(&bookings[i]))
	}
	return responses, nil
}

// SWEEP SUPPORT

// ExpireLapsed settles ACTIVE bookings whose span has ended and sends each
// seat back through the release path.
func (s *service) ExpireLapsed(ctx context.Context, limit int) (int, error) {
	lapsed, err := s.repo.LapsedActive(ctx, s.clk.Now(), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range lapsed {
		booking := &lapsed[i]
		if err := s.repo.ExpireBooking(ctx, booking.ID); err != nil {
			s.log.Error("failed to expire booking", "booking_id", booking.ID.String(), "error", err.Error())
			continue
		}
		if err := s.engine.ReleaseSeat(ctx, booking.SeatID, seats.ReleaseBookingExpired); err != nil {
			s.log.Error("failed to release seat after booking expiry",
				"booking_id", booking.ID.String(),
				"seat_id", booking.SeatID.String(),
				"error", err.Error(),
			)
			continue
		}
		processed++
	}

	return processed, nil
}

func (s *service) ownedBooking(ctx context.Context, bookingID string, userID uuid.UUID) (*Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, fmt.Errorf("invalid booking ID: %w", err)
	}

	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		// Do not reveal other users' bookings
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func (s *service) resolveStartDate(raw string) (time.Time, error) {
	if raw == "" {
		now := s.clk.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	startDate, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	return startDate, nil
}
