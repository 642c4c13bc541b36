package seats

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	// Seat CRUD
	CreateSeats(ctx context.Context, seats []Seat) error
	GetSeatByID(ctx context.Context, id uuid.UUID) (*Seat, error)
	GetSeatsByVenueID(ctx context.Context, venueID uuid.UUID) ([]Seat, error)

	// Mirror transitions
	MarkHeld(ctx context.Context, id, userID uuid.UUID, expiresAt time.Time) error
	MarkAvailable(ctx context.Context, id uuid.UUID) error
	SetMaintenance(ctx context.Context, id uuid.UUID) error

	// Sweep support
	ListStaleHeld(ctx context.Context, before time.Time, limit int) ([]Seat, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

// SEAT CRUD

func (r *repository) CreateSeats(ctx context.Context, seats []Seat) error {
	return r.db.WithContext(ctx).Create(&seats).Error
}

func (r *repository) GetSeatByID(ctx context.Context, id uuid.UUID) (*Seat, error) {
	var seat Seat
	err := r.db.WithContext(ctx).First(&seat, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &seat, nil
}

func (r *repository) GetSeatsByVenueID(ctx context.Context, venueID uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		Order("floor ASC, zone ASC, label ASC").
		Find(&seats).Error
	return seats, err
}

// MIRROR TRANSITIONS

func (r *repository) MarkHeld(ctx context.Context, id, userID uuid.UUID, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&Seat{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          StatusHeld,
		"held_by":         userID,
		"hold_expires_at": expiresAt,
	}).Error
}

func (r *repository) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&Seat{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          StatusAvailable,
		"held_by":         nil,
		"hold_expires_at": nil,
	}).Error
}

func (r *repository) SetMaintenance(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&Seat{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          StatusMaintenance,
		"held_by":         nil,
		"hold_expires_at": nil,
	}).Error
}

// SWEEP SUPPORT

func (r *repository) ListStaleHeld(ctx context.Context, before time.Time, limit int) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Where("status = ? AND hold_expires_at < ?", StatusHeld, before).
		Order("hold_expires_at ASC").
		Limit(limit).
		Find(&seats).Error
	return seats, err
}
