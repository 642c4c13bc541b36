package bookings

import (
	"context"
	"sync"
	"testing"
	"time"

	"deskly/internal/seats"
	"deskly/internal/shared/clock"
	"deskly/internal/shared/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeBookingRepo is an in-memory Repository
type fakeBookingRepo struct {
	mu         sync.Mutex
	seats      map[uuid.UUID]*seats.Seat
	bookings   map[uuid.UUID]*Booking
	extensions map[string]*Extension
	payments   []Payment
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		seats:      make(map[uuid.UUID]*seats.Seat),
		bookings:   make(map[uuid.UUID]*Booking),
		extensions: make(map[string]*Extension),
	}
}

func (r *fakeBookingRepo) addSeat(seat *seats.Seat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats[seat.ID] = seat
}

func (r *fakeBookingRepo) GetSeat(ctx context.Context, seatID uuid.UUID) (*seats.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seat, ok := r.seats[seatID]
	if !ok {
		return nil, seats.ErrSeatNotFound
	}
	copied := *seat
	return &copied, nil
}

func (r *fakeBookingRepo) CreateConfirmed(ctx context.Context, booking *Booking, payment *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat, ok := r.seats[booking.SeatID]
	if !ok {
		return seats.ErrSeatNotFound
	}
	for _, b := range r.bookings {
		if b.SeatID == booking.SeatID && b.Status == StatusActive && b.EndDate.After(booking.StartDate) {
			return ErrBookingConflict
		}
	}

	copied := *booking
	r.bookings[booking.ID] = &copied

	payment.BookingID = booking.ID
	r.payments = append(r.payments, *payment)

	seat.Status = seats.StatusOccupied
	seat.HeldBy = nil
	seat.HoldExpiresAt = nil
	return nil
}

func (r *fakeBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	copied := *booking
	return &copied, nil
}

func (r *fakeBookingRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) Cancel(ctx context.Context, booking *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bookings[booking.ID]
	if !ok || stored.Status != StatusActive {
		return nil
	}
	stored.Status = StatusCancelled
	stored.CancelledAt = booking.CancelledAt
	return nil
}

func (r *fakeBookingRepo) ExpireBooking(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bookings[id]
	if ok && stored.Status == StatusActive {
		stored.Status = StatusExpired
	}
	return nil
}

func (r *fakeBookingRepo) LapsedActive(ctx context.Context, before time.Time, limit int) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.Status == StatusActive && !b.EndDate.After(before) {
			out = append(out, *b)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) CreateExtension(ctx context.Context, bookingID uuid.UUID, newEndDate time.Time, ext *Extension, payment *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.extensions[ext.IdempotencyKey]; exists {
		return gorm.ErrDuplicatedKey
	}

	copied := *ext
	r.extensions[ext.IdempotencyKey] = &copied

	payment.BookingID = bookingID
	r.payments = append(r.payments, *payment)

	if booking, ok := r.bookings[bookingID]; ok {
		booking.EndDate = newEndDate
	}
	return nil
}

func (r *fakeBookingRepo) GetExtensionByKey(ctx context.Context, key string) (*Extension, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ext, ok := r.extensions[key]
	if !ok {
		return nil, ErrBookingNotFound
	}
	copied := *ext
	return &copied, nil
}

func (r *fakeBookingRepo) HasActiveBooking(ctx context.Context, seatID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.SeatID == seatID && b.Status == StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookingRepo) ExpireLapsedForSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expired := false
	for _, b := range r.bookings {
		if b.SeatID == seatID && b.Status == StatusActive && !b.EndDate.After(now) {
			b.Status = StatusExpired
			expired = true
		}
	}
	if !expired {
		return false, nil
	}
	for _, b := range r.bookings {
		if b.SeatID == seatID && b.Status == StatusActive {
			return false, nil
		}
	}
	return true, nil
}

// fakeSeatEngine scripts the seat side of the booking flow
type fakeSeatEngine struct {
	mu          sync.Mutex
	lock        sync.Mutex // stands in for the per-seat transition lock
	lockHeld    bool
	validateErr error
	dropped     []uuid.UUID
	released    []string

	validatedUnderLock bool
}

func (e *fakeSeatEngine) ValidateHold(ctx context.Context, seatID, userID uuid.UUID) error {
	e.mu.Lock()
	e.validatedUnderLock = e.lockHeld
	e.mu.Unlock()
	return e.validateErr
}

func (e *fakeSeatEngine) DropHold(ctx context.Context, seatID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropped = append(e.dropped, seatID)
	return nil
}

func (e *fakeSeatEngine) ReleaseSeat(ctx context.Context, seatID uuid.UUID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.released = append(e.released, reason)
	return nil
}

func (e *fakeSeatEngine) WithSeatLock(ctx context.Context, seatID uuid.UUID, fn func() error) error {
	e.lock.Lock()
	e.mu.Lock()
	e.lockHeld = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.lockHeld = false
		e.mu.Unlock()
		e.lock.Unlock()
	}()
	return fn()
}

type fakeFulfiller struct {
	mu    sync.Mutex
	calls []uuid.UUID // user IDs marked fulfilled
}

func (f *fakeFulfiller) MarkFulfilled(ctx context.Context, seatID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return nil
}

func bookingTestConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			HoldTTL:        10 * time.Minute,
			OfferTTL:       5 * time.Minute,
			SweepBatchSize: 100,
		},
	}
}

func newBookingTestService(t *testing.T) (Service, *fakeBookingRepo, *fakeSeatEngine, *fakeFulfiller, *clock.Frozen) {
	t.Helper()
	frozen := clock.NewFrozen(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := newFakeBookingRepo()
	engine := &fakeSeatEngine{}
	fulfiller := &fakeFulfiller{}

	svc := NewService(repo, engine, bookingTestConfig(), nil)
	svc.SetWaitlist(fulfiller)
	svc.(interface{ SetClock(clock.Clock) }).SetClock(frozen)

	return svc, repo, engine, fulfiller, frozen
}

func occupiableSeat(repo *fakeBookingRepo) *seats.Seat {
	seat := &seats.Seat{
		ID:          uuid.New(),
		VenueID:     uuid.New(),
		Label:       "B-102",
		Floor:       1,
		Zone:        "B",
		Status:      seats.StatusHeld,
		MonthlyRate: 550000, // 5500.00 INR in paise
	}
	repo.addSeat(seat)
	return seat
}

func TestConfirmBooking_Success(t *testing.T) {
	svc, repo, engine, fulfiller, _ := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)
	userID := uuid.New()

	resp, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID:    seat.ID.String(),
		StartDate: "2026-03-01",
		Months:    3,
	}, userID)
	require.NoError(t, err)

	assert.Equal(t, StatusActive, resp.Status)
	assert.Equal(t, int64(550000), resp.MonthlyRate)
	assert.NotEmpty(t, resp.BookingRef)

	wantStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, wantStart, resp.StartDate)
	assert.Equal(t, wantStart.AddDate(0, 3, 0), resp.EndDate)

	// Opening payment charges the full span up front
	require.Len(t, repo.payments, 1)
	assert.Equal(t, PaymentInitial, repo.payments[0].Kind)
	assert.Equal(t, int64(3*550000), repo.payments[0].Amount)

	// The seat row flipped and the hold key was dropped
	assert.Equal(t, seats.StatusOccupied, seat.Status)
	assert.Equal(t, []uuid.UUID{seat.ID}, engine.dropped)

	// An offer-holder's waitlist entry converts on confirmation
	assert.Equal(t, []uuid.UUID{userID}, fulfiller.calls)
}

func TestConfirmBooking_DefaultStartIsToday(t *testing.T) {
	svc, repo, _, _, _ := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)

	resp, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID: seat.ID.String(),
		Months: 1,
	}, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), resp.StartDate)
}

func TestConfirmBooking_RequiresLiveHold(t *testing.T) {
	svc, repo, engine, fulfiller, _ := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)

	engine.validateErr = seats.ErrHoldExpired

	_, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID: seat.ID.String(),
		Months: 1,
	}, uuid.New())
	assert.ErrorIs(t, err, seats.ErrHoldExpired)

	assert.Empty(t, repo.bookings)
	assert.Empty(t, engine.dropped)
	assert.Empty(t, fulfiller.calls)
}

func TestConfirmBooking_HolderCheckedUnderSeatLock(t *testing.T) {
	svc, repo, engine, _, _ := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)

	_, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID: seat.ID.String(),
		Months: 1,
	}, uuid.New())
	require.NoError(t, err)

	// The holder check runs inside the seat transition lock, so a hold
	// that lapses and is re-granted to a promoted waiter cannot slip in
	// between validation and the confirming transaction
	assert.True(t, engine.validatedUnderLock)
}

func TestConfirmBooking_ConflictingSpanRejected(t *testing.T) {
	svc, repo, _, _, _ := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)

	_, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID:    seat.ID.String(),
		StartDate: "2026-03-01",
		Months:    2,
	}, uuid.New())
	require.NoError(t, err)

	_, err = svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID:    seat.ID.String(),
		StartDate: "2026-04-01",
		Months:    1,
	}, uuid.New())
	assert.ErrorIs(t, err, ErrBookingConflict)
}

func TestCancelBooking(t *testing.T) {
	svc, repo, engine, _, _ := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)
	userID := uuid.New()

	resp, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID: seat.ID.String(),
		Months: 1,
	}, userID)
	require.NoError(t, err)

	t.Run("other users cannot see or cancel it", func(t *testing.T) {
		err := svc.CancelBooking(ctx, resp.ID, uuid.New())
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("owner cancels and the seat is released", func(t *testing.T) {
		require.NoError(t, svc.CancelBooking(ctx, resp.ID, userID))
		assert.Equal(t, []string{seats.ReleaseBookingCancelled}, engine.released)

		got, err := svc.GetBooking(ctx, resp.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
		assert.NotNil(t, got.CancelledAt)
	})

	t.Run("cancelling twice fails", func(t *testing.T) {
		err := svc.CancelBooking(ctx, resp.ID, userID)
		assert.ErrorIs(t, err, ErrBookingNotActive)
	})
}

func TestExtendBooking_MovesEndDate(t *testing.T) {
	svc, repo, _, _, _ := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)
	userID := uuid.New()

	resp, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID:    seat.ID.String(),
		StartDate: "2026-03-01",
		Months:    1,
	}, userID)
	require.NoError(t, err)

	ext, err := svc.ExtendBooking(ctx, resp.ID, ExtendBookingRequest{
		Months:         2,
		IdempotencyKey: "ext-key-0001",
	}, userID)
	require.NoError(t, err)

	assert.Equal(t, resp.EndDate, ext.OldEndDate)
	assert.Equal(t, resp.EndDate.AddDate(0, 2, 0), ext.NewEndDate)
	assert.Equal(t, int64(2*550000), ext.Amount)

	got, err := svc.GetBooking(ctx, resp.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, ext.NewEndDate, got.EndDate)

	// Two payments now: the opening charge and the extension charge
	require.Len(t, repo.payments, 2)
	assert.Equal(t, PaymentExtension, repo.payments[1].Kind)
}

func TestExtendBooking_IdempotentReplay(t *testing.T) {
	svc, repo, _, _, _ := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)
	userID := uuid.New()

	resp, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID:    seat.ID.String(),
		StartDate: "2026-03-01",
		Months:    1,
	}, userID)
	require.NoError(t, err)

	first, err := svc.ExtendBooking(ctx, resp.ID, ExtendBookingRequest{
		Months:         2,
		IdempotencyKey: "ext-key-0002",
	}, userID)
	require.NoError(t, err)

	// The retry is answered from the original row; nothing is charged twice
	replayed, err := svc.ExtendBooking(ctx, resp.ID, ExtendBookingRequest{
		Months:         2,
		IdempotencyKey: "ext-key-0002",
	}, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replayed.ID)
	assert.Equal(t, first.NewEndDate, replayed.NewEndDate)
	require.Len(t, repo.payments, 2)

	got, err := svc.GetBooking(ctx, resp.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, first.NewEndDate, got.EndDate)
}

func TestExtendBooking_KeyReuseRejected(t *testing.T) {
	svc, repo, _, _, _ := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)
	userID := uuid.New()

	resp, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID:    seat.ID.String(),
		StartDate: "2026-03-01",
		Months:    1,
	}, userID)
	require.NoError(t, err)

	_, err = svc.ExtendBooking(ctx, resp.ID, ExtendBookingRequest{
		Months:         2,
		IdempotencyKey: "ext-key-0003",
	}, userID)
	require.NoError(t, err)

	_, err = svc.ExtendBooking(ctx, resp.ID, ExtendBookingRequest{
		Months:         5,
		IdempotencyKey: "ext-key-0003",
	}, userID)
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestExtendBooking_LapsedBookingRejected(t *testing.T) {
	svc, repo, _, _, frozen := newBookingTestService(t)
	ctx := context.Background()
	seat := occupiableSeat(repo)
	userID := uuid.New()

	resp, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID:    seat.ID.String(),
		StartDate: "2026-03-01",
		Months:    1,
	}, userID)
	require.NoError(t, err)

	// Still ACTIVE in the ledger, but the span ended
	frozen.Advance(45 * 24 * time.Hour)

	_, err = svc.ExtendBooking(ctx, resp.ID, ExtendBookingRequest{
		Months:         1,
		IdempotencyKey: "ext-key-0004",
	}, userID)
	assert.ErrorIs(t, err, ErrBookingNotActive)
}

func TestExpireLapsed_Sweep(t *testing.T) {
	svc, repo, engine, _, frozen := newBookingTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	lapsedSeat := occupiableSeat(repo)
	liveSeat := occupiableSeat(repo)

	lapsed, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID:    lapsedSeat.ID.String(),
		StartDate: "2026-03-01",
		Months:    1,
	}, userID)
	require.NoError(t, err)

	live, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID:    liveSeat.ID.String(),
		StartDate: "2026-03-01",
		Months:    12,
	}, userID)
	require.NoError(t, err)

	frozen.Advance(45 * 24 * time.Hour)

	processed, err := svc.ExpireLapsed(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []string{seats.ReleaseBookingExpired}, engine.released)

	got, err := svc.GetBooking(ctx, lapsed.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	got, err = svc.GetBooking(ctx, live.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestGetUserBookings_OnlyOwn(t *testing.T) {
	svc, repo, _, _, _ := newBookingTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	seatA := occupiableSeat(repo)
	seatB := occupiableSeat(repo)

	_, err := svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID: seatA.ID.String(),
		Months: 1,
	}, userID)
	require.NoError(t, err)

	_, err = svc.ConfirmBooking(ctx, ConfirmBookingRequest{
		SeatID: seatB.ID.String(),
		Months: 1,
	}, uuid.New())
	require.NoError(t, err)

	mine, err := svc.GetUserBookings(ctx, userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, seatA.ID.String(), mine[0].SeatID)
}
