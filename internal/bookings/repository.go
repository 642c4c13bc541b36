package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deskly/internal/seats"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository interface defines the contract for booking data operations.
// It also serves seat-side booking questions, so it doubles as the ledger
// the seat engine consults.
type Repository interface {
	// Confirmation
	GetSeat(ctx context.Context, seatID uuid.UUID) (*seats.Seat, error)
	CreateConfirmed(ctx context.Context, booking *Booking, payment *Payment) error

	// Reads
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]Booking, error)

	// Lifecycle
	Cancel(ctx context.Context, booking *Booking) error
	ExpireBooking(ctx context.Context, id uuid.UUID) error
	LapsedActive(ctx context.Context, before time.Time, limit int) ([]Booking, error)

	// Extensions
	CreateExtension(ctx context.Context, bookingID uuid.UUID, newEndDate time.Time, ext *Extension, payment *Payment) error
	GetExtensionByKey(ctx context.Context, key string) (*Extension, error)

	// Ledger queries for the seat engine
	HasActiveBooking(ctx context.Context, seatID uuid.UUID) (bool, error)
	ExpireLapsedForSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

// CONFIRMATION

func (r *repository) GetSeat(ctx context.Context, seatID uuid.UUID) (*seats.Seat, error) {
	var seat seats.Seat
	err := r.db.WithContext(ctx).First(&seat, "id = ?", seatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, seats.ErrSeatNotFound
		}
		return nil, err
	}
	return &seat, nil
}

// CreateConfirmed writes the booking, its opening payment, and the seat's
// flip to OCCUPIED in one transaction. The seat row is locked FOR UPDATE so
// two confirmations for the same seat serialize, and the active-booking
// guard runs under that lock.
func (r *repository) CreateConfirmed(ctx context.Context, booking *Booking, payment *Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seat seats.Seat
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&seat, "id = ?", booking.SeatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return seats.ErrSeatNotFound
			}
			return err
		}

		var active int64
		if err := tx.Model(&Booking{}).
			Where("seat_id = ? AND status = ? AND end_date > ?",
				booking.SeatID, StatusActive, booking.StartDate).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrBookingConflict
		}

		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		payment.BookingID = booking.ID
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		return tx.Model(&seats.Seat{}).
			Where("id = ?", booking.SeatID).
			Updates(map[string]interface{}{
				"status":          seats.StatusOccupied,
				"held_by":         nil,
				"hold_expires_at": nil,
			}).Error
	})
}

// READS

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Payments").
		Preload("Extensions").
		First(&booking, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, err
}

// LIFECYCLE

func (r *repository) Cancel(ctx context.Context, booking *Booking) error {
	return r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", booking.ID, StatusActive).
		Updates(map[string]interface{}{
			"status":       StatusCancelled,
			"cancelled_at": booking.CancelledAt,
		}).Error
}

func (r *repository) ExpireBooking(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, StatusActive).
		Update("status", StatusExpired).Error
}

func (r *repository) LapsedActive(ctx context.Context, before time.Time, limit int) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", StatusActive, before).
		Order("end_date ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

// EXTENSIONS

// CreateExtension moves the booking's end date and records the extension
// and its payment in one transaction. A duplicate idempotency key aborts
// the whole transaction with gorm.ErrDuplicatedKey.
func (r *repository) CreateExtension(ctx context.Context, bookingID uuid.UUID, newEndDate time.Time, ext *Extension, payment *Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ext).Error; err != nil {
			return err
		}

		payment.BookingID = bookingID
		if err := tx.Create(payment).Error; err != nil {
			return err
		}

		return tx.Model(&Booking{}).
			Where("id = ?", bookingID).
			Update("end_date", newEndDate).Error
	})
}

func (r *repository) GetExtensionByKey(ctx context.Context, key string) (*Extension, error) {
	var ext Extension
	err := r.db.WithContext(ctx).First(&ext, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &ext, nil
}

// LEDGER QUERIES

func (r *repository) HasActiveBooking(ctx context.Context, seatID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("seat_id = ? AND status = ?", seatID, StatusActive).
		Count(&count).Error
	return count > 0, err
}

// ExpireLapsedForSeat marks the seat's lapsed ACTIVE bookings EXPIRED and
// reports whether the seat's occupancy actually ended: true only when
// something lapsed and no covering booking remains.
func (r *repository) ExpireLapsedForSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("seat_id = ? AND status = ? AND end_date <= ?", seatID, StatusActive, now).
		Update("status", StatusExpired)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	stillActive, err := r.HasActiveBooking(ctx, seatID)
	if err != nil {
		return false, err
	}
	return !stillActive, nil
}
