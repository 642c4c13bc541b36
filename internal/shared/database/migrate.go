package database

import (
	"deskly/internal/bookings"
	"deskly/internal/seats"
	"deskly/internal/waitlist"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&seats.Seat{},
		&bookings.Booking{},
		&bookings.Payment{},
		&bookings.Extension{},
		&waitlist.Entry{},
	)
}
