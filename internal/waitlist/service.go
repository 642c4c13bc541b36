package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deskly/internal/notifications"
	"deskly/internal/seats"
	"deskly/internal/shared/clock"
	"deskly/internal/shared/config"
	"deskly/pkg/logger"

	"github.com/google/uuid"
)

// SeatEngine is the slice of the seat service the waitlist needs
type SeatEngine interface {
	GetStatus(ctx context.Context, id string) (*seats.SeatStatusView, error)
	HoldForOffer(ctx context.Context, seatID, userID uuid.UUID, ttl time.Duration) (time.Time, error)
	ReleaseSeat(ctx context.Context, seatID uuid.UUID, reason string) error
	WithSeatLock(ctx context.Context, seatID uuid.UUID, fn func() error) error
}

type Service interface {
	// Queue membership
	Join(ctx context.Context, req JoinRequest, userID uuid.UUID) (*EntryResponse, error)
	Leave(ctx context.Context, entryID string, userID uuid.UUID) error
	Status(ctx context.Context, entryID string, userID uuid.UUID) (*EntryResponse, error)
	ListForSeat(ctx context.Context, seatID string) ([]EntryResponse, error)

	// Promotion (called from inside the seat transition lock)
	PromoteNext(ctx context.Context, seatID uuid.UUID) (*seats.Promotion, error)

	// Conversion and expiry
	MarkFulfilled(ctx context.Context, seatID, userID uuid.UUID) error
	ExpireLapsedOffers(ctx context.Context, limit int) (int, error)
}

type service struct {
	repo     Repository
	engine   SeatEngine
	config   *config.Config
	notifier notifications.Dispatcher
	log      *logger.Logger
	clk      clock.Clock
}

func NewService(repo Repository, engine SeatEngine, cfg *config.Config, notifier notifications.Dispatcher, log *logger.Logger) Service {
	if notifier == nil {
		notifier = notifications.NopDispatcher{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{
		repo:     repo,
		engine:   engine,
		config:   cfg,
		notifier: notifier,
		log:      log,
		clk:      clock.System(),
	}
}

// SetClock overrides the time source
func (s *service) SetClock(clk clock.Clock) {
	s.clk = clk
}

// QUEUE MEMBERSHIP

func (s *service) Join(ctx context.Context, req JoinRequest, userID uuid.UUID) (*EntryResponse, error) {
	seatID, err := uuid.Parse(req.SeatID)
	if err != nil {
		return nil, fmt.Errorf("invalid seat ID: %w", err)
	}

	view, err := s.engine.GetStatus(ctx, req.SeatID)
	if err != nil {
		return nil, err
	}

	// Only a seat someone else is sitting on or holding is worth queueing
	// for; anything else the caller can act on directly.
	switch view.Status {
	case seats.StatusOccupied:
	case seats.StatusHeld:
		if view.HeldBy == userID.String() {
			return nil, ErrSeatNotOccupied
		}
	default:
		return nil, ErrSeatNotOccupied
	}

	// The one-live-entry-per-user check and the insert run as a unit under
	// the seat's transition lock, so two racing joins cannot both pass it.
	var entry *Entry
	err = s.engine.WithSeatLock(ctx, seatID, func() error {
		if _, err := s.repo.GetLiveEntry(ctx, seatID, userID); err == nil {
			return ErrAlreadyWaitlisted
		} else if !errors.Is(err, ErrEntryNotFound) {
			return err
		}

		now := s.clk.Now()
		entry = &Entry{
			ID:       uuid.New(),
			SeatID:   seatID,
			UserID:   userID,
			Status:   StatusActive,
			JoinedAt: now,
		}

		if err := s.repo.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return s.repo.Enqueue(ctx, seatID, entry.ID, now)
	})
	if err != nil {
		return nil, err
	}

	position, err := s.repo.QueueRank(ctx, seatID, entry.ID)
	if err != nil {
		position = 0
	}

	s.log.Info("user joined waitlist",
		"entry_id", entry.ID.String(),
		"seat_id", seatID.String(),
		"user_id", userID.String(),
		"position", position,
	)

	resp := toEntryResponse(entry, position)
	return &resp, nil
}

func (s *service) Leave(ctx context.Context, entryID string, userID uuid.UUID) error {
	id, err := uuid.Parse(entryID)
	if err != nil {
		return fmt.Errorf("invalid entry ID: %w", err)
	}

	entry, err := s.repo.GetEntryByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.UserID != userID {
		// Do not reveal other users' entries
		return ErrEntryNotFound
	}
	if !entry.IsLive() {
		return ErrEntryNotLive
	}

	wasNotified := entry.Status == StatusNotified

	entry.Status = StatusCancelled
	if err := s.repo.UpdateEntry(ctx, entry); err != nil {
		return err
	}
	if err := s.repo.RemoveFromQueue(ctx, entry.SeatID, entry.ID); err != nil {
		return err
	}

	// Declining an offer frees the seat for the next person in line
	if wasNotified {
		if err := s.engine.ReleaseSeat(ctx, entry.SeatID, seats.ReleaseHoldCancelled); err != nil {
			return err
		}
	}

	s.log.Info("user left waitlist",
		"entry_id", entry.ID.String(),
		"seat_id", entry.SeatID.String(),
		"declined_offer", wasNotified,
	)

	return nil
}

func (s *service) Status(ctx context.Context, entryID string, userID uuid.UUID) (*EntryResponse, error) {
	id, err := uuid.Parse(entryID)
	if err != nil {
		return nil, fmt.Errorf("invalid entry ID: %w", err)
	}

	entry, err := s.repo.GetEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrEntryNotFound
	}

	position := 0
	if entry.Status == StatusActive {
		position, _ = s.repo.QueueRank(ctx, entry.SeatID, entry.ID)
	}

	resp := toEntryResponse(entry, position)
	return &resp, nil
}

func (s *service) ListForSeat(ctx context.Context, seatID string) ([]EntryResponse, error) {
	id, err := uuid.Parse(seatID)
	if err != nil {
		return nil, fmt.Errorf("invalid seat ID: %w", err)
	}

	entries, err := s.repo.ListBySeat(ctx, id)
	if err != nil {
		return nil, err
	}

	responses := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		position := 0
		if entries[i].Status == StatusActive {
			position, _ = s.repo.QueueRank(ctx, id, entries[i].ID)
		}
		responses = append(responses, toEntryResponse(&entries[i], position))
	}
	return responses, nil
}

// PROMOTION

// PromoteNext walks the queue head and offers the seat to the first entry
// that is still ACTIVE. Rows that left the queue through another path are
// swept out of the sorted set as they are encountered. Runs inside the
// seat's transition lock, so it must not call back into ReleaseSeat.
func (s *service) PromoteNext(ctx context.Context, seatID uuid.UUID) (*seats.Promotion, error) {
	const peekBatch = 10

	for {
		ids, err := s.repo.PeekQueue(ctx, seatID, peekBatch)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, nil
		}

		advanced := false
		for _, entryID := range ids {
			entry, err := s.repo.GetEntryByID(ctx, entryID)
			if err != nil || entry.Status != StatusActive {
				// Stale queue member; drop it and keep walking
				if rmErr := s.repo.RemoveFromQueue(ctx, seatID, entryID); rmErr != nil {
					return nil, rmErr
				}
				advanced = true
				continue
			}

			expiresAt, err := s.engine.HoldForOffer(ctx, seatID, entry.UserID, s.config.Engine.OfferTTL)
			if err != nil {
				return nil, fmt.Errorf("failed to grant offer hold: %w", err)
			}

			now := s.clk.Now()
			entry.Status = StatusNotified
			entry.NotifiedAt = &now
			entry.NotifiedExpiresAt = &expiresAt
			if err := s.repo.UpdateEntry(ctx, entry); err != nil {
				return nil, err
			}
			if err := s.repo.RemoveFromQueue(ctx, seatID, entry.ID); err != nil {
				return nil, err
			}

			s.notifier.OfferExpiring(ctx, entry.ID, seatID, entry.UserID, expiresAt)
			s.log.Info("waitlist entry promoted",
				"entry_id", entry.ID.String(),
				"seat_id", seatID.String(),
				"user_id", entry.UserID.String(),
				"offer_expires_at", expiresAt,
			)

			return &seats.Promotion{
				EntryID:   entry.ID,
				UserID:    entry.UserID,
				ExpiresAt: expiresAt,
			}, nil
		}

		if !advanced {
			return nil, nil
		}
	}
}

// CONVERSION AND EXPIRY

// MarkFulfilled converts a NOTIFIED entry into FULFILLED when its user
// books the seat. A direct booking by a user without an offer is a no-op.
func (s *service) MarkFulfilled(ctx context.Context, seatID, userID uuid.UUID) error {
	entry, err := s.repo.GetNotifiedEntry(ctx, seatID, userID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil
		}
		return err
	}

	entry.Status = StatusFulfilled
	return s.repo.UpdateEntry(ctx, entry)
}

// ExpireLapsedOffers settles NOTIFIED entries whose deadline has passed.
// A user who claimed their offer through a direct hold request is carrying
// a full payment-window hold; that entry's deadline moves out to the hold
// expiry instead of expiring under them. Everything else goes terminal, and
// the seat is freed only when the lapsed offer hold is still what is parked
// on it.
func (s *service) ExpireLapsedOffers(ctx context.Context, limit int) (int, error) {
	entries, err := s.repo.LapsedNotified(ctx, s.clk.Now(), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range entries {
		entry := &entries[i]

		view, err := s.engine.GetStatus(ctx, entry.SeatID.String())
		if err != nil {
			s.log.Error("failed to check seat during offer sweep",
				"entry_id", entry.ID.String(), "seat_id", entry.SeatID.String(), "error", err.Error())
			continue
		}
		holdsSeat := view.Status == seats.StatusHeld && view.HeldBy == entry.UserID.String()

		if holdsSeat && view.HoldExpiresAt != nil && view.HoldExpiresAt.After(*entry.NotifiedExpiresAt) {
			// Claimed: the hold outlasting the offer deadline is the
			// payment window; booking or hold expiry settles the entry later
			entry.NotifiedExpiresAt = view.HoldExpiresAt
			if err := s.repo.UpdateEntry(ctx, entry); err != nil {
				s.log.Error("failed to extend claimed offer", "entry_id", entry.ID.String(), "error", err.Error())
			}
			continue
		}

		entry.Status = StatusExpired
		if err := s.repo.UpdateEntry(ctx, entry); err != nil {
			s.log.Error("failed to expire offer", "entry_id", entry.ID.String(), "error", err.Error())
			continue
		}

		// A seat that moved on (booked, re-promoted, reconciled by a read)
		// must not be touched here
		if holdsSeat {
			if err := s.engine.ReleaseSeat(ctx, entry.SeatID, seats.ReleaseOfferExpired); err != nil {
				s.log.Error("failed to release seat after offer expiry",
					"entry_id", entry.ID.String(),
					"seat_id", entry.SeatID.String(),
					"error", err.Error(),
				)
				continue
			}
		}
		processed++
	}

	return processed, nil
}

func toEntryResponse(entry *Entry, position int) EntryResponse {
	return EntryResponse{
		ID:             entry.ID.String(),
		SeatID:         entry.SeatID.String(),
		UserID:         entry.UserID.String(),
		Status:         entry.Status,
		Position:       position,
		JoinedAt:       entry.JoinedAt,
		NotifiedAt:     entry.NotifiedAt,
		OfferExpiresAt: entry.NotifiedExpiresAt,
	}
}
