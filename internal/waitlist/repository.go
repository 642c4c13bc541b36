package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Repository interface defines the contract for waitlist data operations
type Repository interface {
	// Queue operations (Redis sorted set, scored by join time)
	Enqueue(ctx context.Context, seatID, entryID uuid.UUID, joinedAt time.Time) error
	RemoveFromQueue(ctx context.Context, seatID, entryID uuid.UUID) error
	PeekQueue(ctx context.Context, seatID uuid.UUID, count int) ([]uuid.UUID, error)
	QueueRank(ctx context.Context, seatID, entryID uuid.UUID) (int, error)
	QueueLength(ctx context.Context, seatID uuid.UUID) (int, error)

	// Entry rows
	CreateEntry(ctx context.Context, entry *Entry) error
	UpdateEntry(ctx context.Context, entry *Entry) error
	GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetLiveEntry(ctx context.Context, seatID, userID uuid.UUID) (*Entry, error)
	GetNotifiedEntry(ctx context.Context, seatID, userID uuid.UUID) (*Entry, error)
	ListBySeat(ctx context.Context, seatID uuid.UUID) ([]Entry, error)

	// Sweep support
	LapsedNotified(ctx context.Context, before time.Time, limit int) ([]Entry, error)
}

type repository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewRepository creates a new waitlist repository
func NewRepository(db *gorm.DB, redisClient *redis.Client) Repository {
	return &repository{
		db:    db,
		redis: redisClient,
	}
}

// QUEUE OPERATIONS

// Enqueue adds the entry to the seat's queue. The score is the join time in
// nanoseconds, so ordering is strictly first come first served and survives
// removals without renumbering.
func (r *repository) Enqueue(ctx context.Context, seatID, entryID uuid.UUID, joinedAt time.Time) error {
	err := r.redis.ZAddNX(ctx, GetQueueKey(seatID), redis.Z{
		Score:  float64(joinedAt.UnixNano()),
		Member: entryID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue entry: %w", err)
	}
	return nil
}

func (r *repository) RemoveFromQueue(ctx context.Context, seatID, entryID uuid.UUID) error {
	err := r.redis.ZRem(ctx, GetQueueKey(seatID), entryID.String()).Err()
	if err != nil {
		return fmt.Errorf("failed to remove entry from queue: %w", err)
	}
	return nil
}

// PeekQueue returns up to count entry IDs from the head of the queue
func (r *repository) PeekQueue(ctx context.Context, seatID uuid.UUID, count int) ([]uuid.UUID, error) {
	members, err := r.redis.ZRange(ctx, GetQueueKey(seatID), 0, int64(count-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// QueueRank returns the entry's 1-based position, or 0 when not queued
func (r *repository) QueueRank(ctx context.Context, seatID, entryID uuid.UUID) (int, error) {
	rank, err := r.redis.ZRank(ctx, GetQueueKey(seatID), entryID.String()).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get queue rank: %w", err)
	}
	return int(rank) + 1, nil
}

func (r *repository) QueueLength(ctx context.Context, seatID uuid.UUID) (int, error) {
	length, err := r.redis.ZCard(ctx, GetQueueKey(seatID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// ENTRY ROWS

func (r *repository) CreateEntry(ctx context.Context, entry *Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to create waitlist entry: %w", err)
	}
	return nil
}

func (r *repository) UpdateEntry(ctx context.Context, entry *Entry) error {
	err := r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":              entry.Status,
			"notified_at":         entry.NotifiedAt,
			"notified_expires_at": entry.NotifiedExpiresAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update waitlist entry: %w", err)
	}
	return nil
}

func (r *repository) GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	var entry Entry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return &entry, nil
}

// GetLiveEntry finds the user's ACTIVE or NOTIFIED entry for a seat
func (r *repository) GetLiveEntry(ctx context.Context, seatID, userID uuid.UUID) (*Entry, error) {
	var entry Entry
	err := r.db.WithContext(ctx).
		Where("seat_id = ? AND user_id = ? AND status IN ?",
			seatID, userID, []EntryStatus{StatusActive, StatusNotified}).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return &entry, nil
}

// GetNotifiedEntry finds the user's NOTIFIED entry for a seat
func (r *repository) GetNotifiedEntry(ctx context.Context, seatID, userID uuid.UUID) (*Entry, error) {
	var entry Entry
	err := r.db.WithContext(ctx).
		Where("seat_id = ? AND user_id = ? AND status = ?", seatID, userID, StatusNotified).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return &entry, nil
}

func (r *repository) ListBySeat(ctx context.Context, seatID uuid.UUID) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("seat_id = ? AND status IN ?", seatID, []EntryStatus{StatusActive, StatusNotified}).
		Order("joined_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}
	return entries, nil
}

// SWEEP SUPPORT

// LapsedNotified returns NOTIFIED entries whose offer deadline has passed
func (r *repository) LapsedNotified(ctx context.Context, before time.Time, limit int) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("status = ? AND notified_expires_at IS NOT NULL AND notified_expires_at < ?",
			StatusNotified, before).
		Order("notified_expires_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get lapsed offers: %w", err)
	}
	return entries, nil
}
