package seats

import (
	"context"
	"fmt"
	"time"

	"deskly/internal/notifications"
	"deskly/internal/shared/clock"
	"deskly/internal/shared/config"
	"deskly/pkg/logger"

	"github.com/google/uuid"
)

// Promotion reports a waitlist offer granted while a seat was being freed
type Promotion struct {
	EntryID   uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// Promoter hands a freed seat to the waitlist. Implemented by the waitlist
// service and injected after construction to keep the packages acyclic.
type Promoter interface {
	PromoteNext(ctx context.Context, seatID uuid.UUID) (*Promotion, error)
}

// Ledger answers booking questions for a seat. Implemented by the bookings
// repository and injected after construction.
type Ledger interface {
	HasActiveBooking(ctx context.Context, seatID uuid.UUID) (bool, error)
	ExpireLapsedForSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error)
}

type Service interface {
	// Service dependency injection
	SetPromoter(p Promoter)
	SetLedger(l Ledger)

	// Seat management
	CreateSeats(ctx context.Context, venueID string, req CreateSeatsRequest) ([]Seat, error)
	GetStatus(ctx context.Context, id string) (*SeatStatusView, error)
	GetSeatsByVenueID(ctx context.Context, venueID string) ([]SeatStatusView, error)

	// Hold lifecycle (core flow)
	RequestHold(ctx context.Context, id string, userID uuid.UUID) (*HoldToken, error)
	CancelHold(ctx context.Context, id string, userID uuid.UUID) error
	ValidateHold(ctx context.Context, seatID, userID uuid.UUID) error
	DropHold(ctx context.Context, seatID uuid.UUID) error

	// Single release path for every way a seat becomes free
	ReleaseSeat(ctx context.Context, seatID uuid.UUID, reason string) error

	// Per-seat transition lock, shared with collaborating services so
	// their seat-coupled writes serialize with release and promotion
	WithSeatLock(ctx context.Context, seatID uuid.UUID, fn func() error) error

	// Offer holds granted on behalf of the waitlist
	HoldForOffer(ctx context.Context, seatID, userID uuid.UUID, ttl time.Duration) (time.Time, error)

	// External lifecycle sync
	ApplyExternalStatus(ctx context.Context, id string, req ExternalStatusRequest) (*SeatStatusView, error)

	// Sweep support
	ExpireStaleHolds(ctx context.Context, limit int) (int, error)
}

type service struct {
	repo     Repository
	holds    *HoldManager
	config   *config.Config
	notifier notifications.Dispatcher
	log      *logger.Logger
	clk      clock.Clock

	promoter Promoter
	ledger   Ledger
}

func NewService(repo Repository, holds *HoldManager, cfg *config.Config, notifier notifications.Dispatcher, log *logger.Logger) Service {
	if notifier == nil {
		notifier = notifications.NopDispatcher{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{
		repo:     repo,
		holds:    holds,
		config:   cfg,
		notifier: notifier,
		log:      log,
		clk:      clock.System(),
	}
}

// SetPromoter injects the waitlist side after both services exist
func (s *service) SetPromoter(p Promoter) {
	s.promoter = p
}

// SetLedger injects the bookings side after both services exist
func (s *service) SetLedger(l Ledger) {
	s.ledger = l
}

// SetClock overrides the time source
func (s *service) SetClock(clk clock.Clock) {
	s.clk = clk
}

// SEAT MANAGEMENT

func (s *service) CreateSeats(ctx context.Context, venueID string, req CreateSeatsRequest) ([]Seat, error) {
	venueUUID, err := uuid.Parse(venueID)
	if err != nil {
		return nil, fmt.Errorf("invalid venue ID: %w", err)
	}

	if len(req.Seats) == 0 {
		return nil, fmt.Errorf("no seats specified")
	}

	seats := make([]Seat, 0, len(req.Seats))
	for _, spec := range req.Seats {
		seats = append(seats, Seat{
			VenueID:     venueUUID,
			Floor:       spec.Floor,
			Zone:        spec.Zone,
			Label:       spec.Label,
			Status:      StatusAvailable,
			MonthlyRate: spec.MonthlyRate,
		})
	}

	if err := s.repo.CreateSeats(ctx, seats); err != nil {
		return nil, fmt.Errorf("failed to create seats: %w", err)
	}

	return seats, nil
}

func (s *service) GetStatus(ctx context.Context, id string) (*SeatStatusView, error) {
	seatID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid seat ID: %w", err)
	}

	seat, err := s.reconciled(ctx, seatID)
	if err != nil {
		return nil, err
	}

	view := seat.ToView()
	return &view, nil
}

func (s *service) GetSeatsByVenueID(ctx context.Context, venueID string) ([]SeatStatusView, error) {
	venueUUID, err := uuid.Parse(venueID)
	if err != nil {
		return nil, fmt.Errorf("invalid venue ID: %w", err)
	}

	seats, err := s.repo.GetSeatsByVenueID(ctx, venueUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}

	views := make([]SeatStatusView, 0, len(seats))
	for i := range seats {
		seat := &seats[i]
		// Listing reconciles lapsed holds the same way a single read does,
		// so a venue view never shows a hold Redis already dropped.
		if seat.Status == StatusHeld || seat.Status == StatusOccupied {
			if fresh, err := s.reconciled(ctx, seat.ID); err == nil {
				seat = fresh
			}
		}
		views = append(views, seat.ToView())
	}

	return views, nil
}

// reconciled loads the seat and settles any expiry the row has not yet
// observed: a HELD mirror whose Redis key is gone, or an OCCUPIED seat
// whose booking span has ended.
func (s *service) reconciled(ctx context.Context, seatID uuid.UUID) (*Seat, error) {
	seat, err := s.repo.GetSeatByID(ctx, seatID)
	if err != nil {
		return nil, err
	}

	switch seat.Status {
	case StatusHeld:
		holder, err := s.holds.Holder(ctx, seatID)
		if err != nil {
			return nil, err
		}
		if holder == uuid.Nil {
			if err := s.ReleaseSeat(ctx, seatID, ReleaseHoldExpired); err != nil {
				return nil, err
			}
			return s.repo.GetSeatByID(ctx, seatID)
		}

	case StatusOccupied:
		if s.ledger == nil {
			break
		}
		expired, err := s.ledger.ExpireLapsedForSeat(ctx, seatID, s.clk.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to check booking span: %w", err)
		}
		if expired {
			if err := s.ReleaseSeat(ctx, seatID, ReleaseBookingExpired); err != nil {
				return nil, err
			}
			return s.repo.GetSeatByID(ctx, seatID)
		}
	}

	return seat, nil
}

// HOLD LIFECYCLE

func (s *service) RequestHold(ctx context.Context, id string, userID uuid.UUID) (*HoldToken, error) {
	seatID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid seat ID: %w", err)
	}

	seat, err := s.reconciled(ctx, seatID)
	if err != nil {
		return nil, err
	}

	if seat.IsUnderMaintenance() {
		return nil, ErrSeatDisabled
	}
	if seat.IsOccupied() {
		return nil, ErrSeatUnavailable
	}

	ttl := s.config.Engine.HoldTTL
	if err := s.holds.TryAcquire(ctx, seatID, userID, ttl); err != nil {
		return nil, err
	}

	expiresAt := s.clk.Now().Add(ttl)
	if err := s.repo.MarkHeld(ctx, seatID, userID, expiresAt); err != nil {
		// The Redis key stands on its own; a failed mirror write is
		// reconciled on the next read.
		s.log.Error("failed to mirror hold", "seat_id", seatID.String(), "error", err.Error())
	}

	s.notifier.HoldGranted(ctx, seatID, userID, expiresAt, notifications.HoldSourceDirect)
	s.log.LogHoldGranted(ctx, seatID.String(), userID.String(), string(notifications.HoldSourceDirect), expiresAt)

	return &HoldToken{
		SeatID:     seatID,
		UserID:     userID,
		ExpiresAt:  expiresAt,
		TTLSeconds: int(ttl.Seconds()),
	}, nil
}

func (s *service) CancelHold(ctx context.Context, id string, userID uuid.UUID) error {
	seatID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid seat ID: %w", err)
	}

	return s.holds.WithSeatLock(ctx, seatID, func() error {
		// Compare-and-delete in one round trip; a mismatch leaves the
		// current holder untouched
		if err := s.holds.Release(ctx, seatID, userID); err != nil {
			return err
		}

		return s.releaseSeatLocked(ctx, seatID, ReleaseHoldCancelled)
	})
}

func (s *service) ValidateHold(ctx context.Context, seatID, userID uuid.UUID) error {
	holder, err := s.holds.Holder(ctx, seatID)
	if err != nil {
		return err
	}
	if holder == uuid.Nil {
		return ErrHoldExpired
	}
	if holder != userID {
		return ErrHoldMismatch
	}
	return nil
}

// DropHold removes the live hold key without freeing the seat. Used once a
// booking confirmation has already flipped the row to OCCUPIED.
func (s *service) DropHold(ctx context.Context, seatID uuid.UUID) error {
	return s.holds.Drop(ctx, seatID)
}

// RELEASE PATH

// ReleaseSeat is the only way a seat returns to circulation. It drops any
// live hold, announces the seat as freed, then either hands the seat to the
// next waitlist entry or marks it available.
func (s *service) ReleaseSeat(ctx context.Context, seatID uuid.UUID, reason string) error {
	return s.holds.WithSeatLock(ctx, seatID, func() error {
		return s.releaseSeatLocked(ctx, seatID, reason)
	})
}

// WithSeatLock exposes the per-seat transition lock to collaborating
// services. fn must not call back into ReleaseSeat for the same seat.
func (s *service) WithSeatLock(ctx context.Context, seatID uuid.UUID, fn func() error) error {
	return s.holds.WithSeatLock(ctx, seatID, fn)
}

func (s *service) releaseSeatLocked(ctx context.Context, seatID uuid.UUID, reason string) error {
	seat, err := s.repo.GetSeatByID(ctx, seatID)
	if err != nil {
		return err
	}

	// Only the booking lifecycle may free an occupied seat. A release fed
	// back late for any other reason (a lingering offer entry, a stale
	// sweep) must not evict a live booking.
	if seat.IsOccupied() && reason != ReleaseBookingCancelled && reason != ReleaseBookingExpired && s.ledger != nil {
		active, err := s.ledger.HasActiveBooking(ctx, seatID)
		if err != nil {
			return fmt.Errorf("failed to check bookings: %w", err)
		}
		if active {
			return nil
		}
	}

	if err := s.holds.Drop(ctx, seatID); err != nil {
		return fmt.Errorf("failed to drop hold: %w", err)
	}

	s.notifier.SeatFreed(ctx, seatID, reason)

	// A seat freed while under maintenance stays parked there
	if seat.IsUnderMaintenance() {
		s.log.LogSeatReleased(ctx, seatID.String(), reason, false)
		return nil
	}

	if s.promoter != nil {
		promotion, err := s.promoter.PromoteNext(ctx, seatID)
		if err != nil {
			return fmt.Errorf("failed to promote waitlist: %w", err)
		}
		if promotion != nil {
			// HoldForOffer already granted the hold and mirrored it
			s.log.LogSeatReleased(ctx, seatID.String(), reason, true)
			return nil
		}
	}

	s.log.LogSeatReleased(ctx, seatID.String(), reason, false)
	return s.repo.MarkAvailable(ctx, seatID)
}

// HoldForOffer grants a hold to a promoted waitlist user. It runs inside
// the caller's seat transition lock and must not take the lock again.
func (s *service) HoldForOffer(ctx context.Context, seatID, userID uuid.UUID, ttl time.Duration) (time.Time, error) {
	if err := s.holds.TryAcquire(ctx, seatID, userID, ttl); err != nil {
		return time.Time{}, err
	}

	expiresAt := s.clk.Now().Add(ttl)
	if err := s.repo.MarkHeld(ctx, seatID, userID, expiresAt); err != nil {
		s.log.Error("failed to mirror offer hold", "seat_id", seatID.String(), "error", err.Error())
	}

	s.notifier.HoldGranted(ctx, seatID, userID, expiresAt, notifications.HoldSourceWaitlist)
	s.log.LogHoldGranted(ctx, seatID.String(), userID.String(), string(notifications.HoldSourceWaitlist), expiresAt)
	return expiresAt, nil
}

// EXTERNAL LIFECYCLE SYNC

func (s *service) ApplyExternalStatus(ctx context.Context, id string, req ExternalStatusRequest) (*SeatStatusView, error) {
	seatID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid seat ID: %w", err)
	}

	if req.Status != StatusAvailable && req.Status != StatusMaintenance {
		// HELD and OCCUPIED are owned by the engine and cannot be forced
		// from outside
		return nil, ErrInvalidStatus
	}

	seat, err := s.reconciled(ctx, seatID)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case StatusMaintenance:
		if err := s.applyMaintenance(ctx, seat); err != nil {
			return nil, err
		}
	case StatusAvailable:
		if err := s.applyAvailable(ctx, seat); err != nil {
			return nil, err
		}
	}

	fresh, err := s.repo.GetSeatByID(ctx, seatID)
	if err != nil {
		return nil, err
	}
	view := fresh.ToView()
	return &view, nil
}

func (s *service) applyMaintenance(ctx context.Context, seat *Seat) error {
	if seat.IsUnderMaintenance() {
		return nil
	}

	if seat.IsOccupied() {
		return ErrSeatBooked
	}

	holder, err := s.holds.Holder(ctx, seat.ID)
	if err != nil {
		return err
	}
	if holder != uuid.Nil {
		return ErrSeatUnavailable
	}

	return s.repo.SetMaintenance(ctx, seat.ID)
}

func (s *service) applyAvailable(ctx context.Context, seat *Seat) error {
	switch seat.Status {
	case StatusAvailable:
		return nil
	case StatusOccupied:
		return ErrSeatBooked
	case StatusHeld:
		// reconciled already settled expiry, so this hold is live
		return ErrSeatUnavailable
	case StatusMaintenance:
		if s.ledger != nil {
			active, err := s.ledger.HasActiveBooking(ctx, seat.ID)
			if err != nil {
				return fmt.Errorf("failed to check bookings: %w", err)
			}
			if active {
				return ErrSeatBooked
			}
		}
		// Run the full release path so a waiting user gets the seat the
		// moment maintenance ends
		return s.ReleaseSeat(ctx, seat.ID, ReleaseExternalChange)
	default:
		return ErrInvalidStatus
	}
}

// SWEEP SUPPORT

// ExpireStaleHolds settles HELD rows whose Redis key is gone. Normal reads
// reconcile lazily; the sweep catches seats nobody is looking at.
func (s *service) ExpireStaleHolds(ctx context.Context, limit int) (int, error) {
	seats, err := s.repo.ListStaleHeld(ctx, s.clk.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale holds: %w", err)
	}

	released := 0
	for _, seat := range seats {
		holder, err := s.holds.Holder(ctx, seat.ID)
		if err != nil {
			s.log.Error("failed to check hold during sweep", "seat_id", seat.ID.String(), "error", err.Error())
			continue
		}
		if holder != uuid.Nil {
			// Mirror lagged but the hold is alive; leave it alone
			continue
		}
		if err := s.ReleaseSeat(ctx, seat.ID, ReleaseHoldExpired); err != nil {
			s.log.Error("failed to release stale hold", "seat_id", seat.ID.String(), "error", err.Error())
			continue
		}
		released++
	}

	return released, nil
}
