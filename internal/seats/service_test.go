package seats

import (
	"context"
	"sync"
	"testing"
	"time"

	"deskly/internal/shared/clock"
	"deskly/internal/shared/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSeatRepo is an in-memory Repository
type fakeSeatRepo struct {
	mu    sync.Mutex
	seats map[uuid.UUID]*Seat
}

func newFakeSeatRepo() *fakeSeatRepo {
	return &fakeSeatRepo{seats: make(map[uuid.UUID]*Seat)}
}

func (r *fakeSeatRepo) add(seat *Seat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats[seat.ID] = seat
}

func (r *fakeSeatRepo) CreateSeats(ctx context.Context, seats []Seat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range seats {
		if seats[i].ID == uuid.Nil {
			seats[i].ID = uuid.New()
		}
		copied := seats[i]
		r.seats[copied.ID] = &copied
	}
	return nil
}

func (r *fakeSeatRepo) GetSeatByID(ctx context.Context, id uuid.UUID) (*Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seat, ok := r.seats[id]
	if !ok {
		return nil, ErrSeatNotFound
	}
	copied := *seat
	return &copied, nil
}

func (r *fakeSeatRepo) GetSeatsByVenueID(ctx context.Context, venueID uuid.UUID) ([]Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Seat
	for _, seat := range r.seats {
		if seat.VenueID == venueID {
			out = append(out, *seat)
		}
	}
	return out, nil
}

func (r *fakeSeatRepo) MarkHeld(ctx context.Context, id, userID uuid.UUID, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seat := r.seats[id]
	seat.Status = StatusHeld
	seat.HeldBy = &userID
	seat.HoldExpiresAt = &expiresAt
	return nil
}

func (r *fakeSeatRepo) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seat := r.seats[id]
	seat.Status = StatusAvailable
	seat.HeldBy = nil
	seat.HoldExpiresAt = nil
	return nil
}

func (r *fakeSeatRepo) SetMaintenance(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seat := r.seats[id]
	seat.Status = StatusMaintenance
	seat.HeldBy = nil
	seat.HoldExpiresAt = nil
	return nil
}

func (r *fakeSeatRepo) ListStaleHeld(ctx context.Context, before time.Time, limit int) ([]Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Seat
	for _, seat := range r.seats {
		if seat.Status == StatusHeld && seat.HoldExpiresAt != nil && seat.HoldExpiresAt.Before(before) {
			out = append(out, *seat)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// fakePromoter lets tests script the waitlist side
type fakePromoter struct {
	fn    func(ctx context.Context, seatID uuid.UUID) (*Promotion, error)
	calls int
}

func (p *fakePromoter) PromoteNext(ctx context.Context, seatID uuid.UUID) (*Promotion, error) {
	p.calls++
	if p.fn == nil {
		return nil, nil
	}
	return p.fn(ctx, seatID)
}

// fakeLedger scripts the bookings side
type fakeLedger struct {
	active bool
	lapsed bool
}

func (l *fakeLedger) HasActiveBooking(ctx context.Context, seatID uuid.UUID) (bool, error) {
	return l.active, nil
}

func (l *fakeLedger) ExpireLapsedForSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error) {
	if l.lapsed {
		l.lapsed = false
		l.active = false
		return true, nil
	}
	return false, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			HoldTTL:        10 * time.Minute,
			OfferTTL:       5 * time.Minute,
			SweepBatchSize: 100,
		},
	}
}

func newTestService(t *testing.T) (Service, *fakeSeatRepo, *HoldManager) {
	t.Helper()
	_, client := newTestRedis(t)
	repo := newFakeSeatRepo()
	hm := NewHoldManager(client)
	svc := NewService(repo, hm, testConfig(), nil, nil)
	return svc, repo, hm
}

func availableSeat(repo *fakeSeatRepo) *Seat {
	seat := &Seat{
		ID:          uuid.New(),
		VenueID:     uuid.New(),
		Floor:       2,
		Zone:        "A",
		Label:       "A-201",
		Status:      StatusAvailable,
		MonthlyRate: 550000,
	}
	repo.add(seat)
	return seat
}

func TestRequestHold_Success(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)
	userID := uuid.New()

	token, err := svc.RequestHold(context.Background(), seat.ID.String(), userID)
	require.NoError(t, err)
	assert.Equal(t, seat.ID, token.SeatID)
	assert.Equal(t, userID, token.UserID)
	assert.Equal(t, 600, token.TTLSeconds)

	stored, _ := repo.GetSeatByID(context.Background(), seat.ID)
	assert.Equal(t, StatusHeld, stored.Status)
	require.NotNil(t, stored.HeldBy)
	assert.Equal(t, userID, *stored.HeldBy)
}

func TestRequestHold_SecondUserRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)

	_, err := svc.RequestHold(context.Background(), seat.ID.String(), uuid.New())
	require.NoError(t, err)

	_, err = svc.RequestHold(context.Background(), seat.ID.String(), uuid.New())
	assert.ErrorIs(t, err, ErrSeatUnavailable)
}

func TestRequestHold_MaintenanceRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)
	seat.Status = StatusMaintenance

	_, err := svc.RequestHold(context.Background(), seat.ID.String(), uuid.New())
	assert.ErrorIs(t, err, ErrSeatDisabled)
}

func TestRequestHold_OccupiedRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)
	seat.Status = StatusOccupied

	_, err := svc.RequestHold(context.Background(), seat.ID.String(), uuid.New())
	assert.ErrorIs(t, err, ErrSeatUnavailable)
}

func TestGetStatus_ReconcilesLapsedHold(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)

	// Mirror says HELD but the Redis key never existed (or expired)
	past := time.Now().UTC().Add(-time.Minute)
	who := uuid.New()
	seat.Status = StatusHeld
	seat.HeldBy = &who
	seat.HoldExpiresAt = &past

	view, err := svc.GetStatus(context.Background(), seat.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, view.Status)
	assert.Empty(t, view.HeldBy)
}

func TestGetStatus_ExpiredBookingFreesSeat(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)
	seat.Status = StatusOccupied

	svc.SetLedger(&fakeLedger{active: true, lapsed: true})

	view, err := svc.GetStatus(context.Background(), seat.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, view.Status)
}

func TestCancelHold(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)
	owner := uuid.New()

	_, err := svc.RequestHold(context.Background(), seat.ID.String(), owner)
	require.NoError(t, err)

	// A stranger cannot cancel someone else's hold
	err = svc.CancelHold(context.Background(), seat.ID.String(), uuid.New())
	assert.ErrorIs(t, err, ErrHoldMismatch)

	require.NoError(t, svc.CancelHold(context.Background(), seat.ID.String(), owner))

	stored, _ := repo.GetSeatByID(context.Background(), seat.ID)
	assert.Equal(t, StatusAvailable, stored.Status)

	// Cancelling again finds nothing to release
	err = svc.CancelHold(context.Background(), seat.ID.String(), owner)
	assert.ErrorIs(t, err, ErrHoldExpired)
}

func TestReleaseSeat_PromotesNextInLine(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)
	seat.Status = StatusOccupied

	promoted := uuid.New()
	promoter := &fakePromoter{
		fn: func(ctx context.Context, seatID uuid.UUID) (*Promotion, error) {
			// The real waitlist grants the offer hold before reporting back
			expiresAt, err := svc.HoldForOffer(ctx, seatID, promoted, 5*time.Minute)
			if err != nil {
				return nil, err
			}
			return &Promotion{EntryID: uuid.New(), UserID: promoted, ExpiresAt: expiresAt}, nil
		},
	}
	svc.SetPromoter(promoter)

	require.NoError(t, svc.ReleaseSeat(context.Background(), seat.ID, ReleaseBookingCancelled))

	assert.Equal(t, 1, promoter.calls)
	stored, _ := repo.GetSeatByID(context.Background(), seat.ID)
	assert.Equal(t, StatusHeld, stored.Status)
	require.NotNil(t, stored.HeldBy)
	assert.Equal(t, promoted, *stored.HeldBy)
}

func TestReleaseSeat_EmptyQueueMarksAvailable(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)
	seat.Status = StatusOccupied

	promoter := &fakePromoter{}
	svc.SetPromoter(promoter)

	require.NoError(t, svc.ReleaseSeat(context.Background(), seat.ID, ReleaseBookingExpired))

	assert.Equal(t, 1, promoter.calls)
	stored, _ := repo.GetSeatByID(context.Background(), seat.ID)
	assert.Equal(t, StatusAvailable, stored.Status)
}

func TestReleaseSeat_BookedSeatStaysOccupied(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)
	seat.Status = StatusOccupied

	promoter := &fakePromoter{}
	svc.SetPromoter(promoter)
	svc.SetLedger(&fakeLedger{active: true})

	// A release arriving late for a non-booking reason must not evict the
	// live booking or hand the seat to a waiter
	require.NoError(t, svc.ReleaseSeat(context.Background(), seat.ID, ReleaseOfferExpired))

	assert.Equal(t, 0, promoter.calls)
	stored, _ := repo.GetSeatByID(context.Background(), seat.ID)
	assert.Equal(t, StatusOccupied, stored.Status)
}

func TestApplyExternalStatus_Rules(t *testing.T) {
	ctx := context.Background()

	t.Run("engine-owned statuses are rejected", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seat := availableSeat(repo)

		_, err := svc.ApplyExternalStatus(ctx, seat.ID.String(), ExternalStatusRequest{Status: StatusOccupied})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("maintenance rejected while occupied", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seat := availableSeat(repo)
		seat.Status = StatusOccupied
		svc.SetLedger(&fakeLedger{active: true})

		_, err := svc.ApplyExternalStatus(ctx, seat.ID.String(), ExternalStatusRequest{Status: StatusMaintenance})
		assert.ErrorIs(t, err, ErrSeatBooked)
	})

	t.Run("maintenance rejected while held", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seat := availableSeat(repo)
		_, err := svc.RequestHold(ctx, seat.ID.String(), uuid.New())
		require.NoError(t, err)

		_, err = svc.ApplyExternalStatus(ctx, seat.ID.String(), ExternalStatusRequest{Status: StatusMaintenance})
		assert.ErrorIs(t, err, ErrSeatUnavailable)
	})

	t.Run("available seat parks in maintenance", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seat := availableSeat(repo)

		view, err := svc.ApplyExternalStatus(ctx, seat.ID.String(), ExternalStatusRequest{Status: StatusMaintenance})
		require.NoError(t, err)
		assert.Equal(t, StatusMaintenance, view.Status)
	})

	t.Run("maintenance back to available runs the release path", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seat := availableSeat(repo)
		seat.Status = StatusMaintenance

		promoter := &fakePromoter{}
		svc.SetPromoter(promoter)
		svc.SetLedger(&fakeLedger{})

		view, err := svc.ApplyExternalStatus(ctx, seat.ID.String(), ExternalStatusRequest{Status: StatusAvailable})
		require.NoError(t, err)
		assert.Equal(t, StatusAvailable, view.Status)
		assert.Equal(t, 1, promoter.calls)
	})

	t.Run("available rejected while booked", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seat := availableSeat(repo)
		seat.Status = StatusOccupied
		svc.SetLedger(&fakeLedger{active: true})

		_, err := svc.ApplyExternalStatus(ctx, seat.ID.String(), ExternalStatusRequest{Status: StatusAvailable})
		assert.ErrorIs(t, err, ErrSeatBooked)
	})
}

func TestExpireStaleHolds(t *testing.T) {
	svc, repo, _ := newTestService(t)

	// Two seats with lapsed mirrors and no live Redis key, one still live
	stale1 := availableSeat(repo)
	stale2 := availableSeat(repo)
	live := availableSeat(repo)

	past := time.Now().UTC().Add(-time.Minute)
	for _, seat := range []*Seat{stale1, stale2} {
		who := uuid.New()
		seat.Status = StatusHeld
		seat.HeldBy = &who
		seat.HoldExpiresAt = &past
	}

	// The live one lags in the mirror but its Redis key is still there
	liveUser := uuid.New()
	_, err := svc.RequestHold(context.Background(), live.ID.String(), liveUser)
	require.NoError(t, err)
	live.HoldExpiresAt = &past

	released, err := svc.ExpireStaleHolds(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	stored, _ := repo.GetSeatByID(context.Background(), live.ID)
	assert.Equal(t, StatusHeld, stored.Status)
}

func TestServiceClockInjection(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seat := availableSeat(repo)

	frozen := clock.NewFrozen(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc.(interface{ SetClock(clock.Clock) }).SetClock(frozen)

	token, err := svc.RequestHold(context.Background(), seat.ID.String(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, frozen.Current.Add(10*time.Minute), token.ExpiresAt)
}
