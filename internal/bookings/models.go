package bookings

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus tracks a booking through its lifecycle
type BookingStatus string

const (
	StatusActive    BookingStatus = "ACTIVE"
	StatusExpired   BookingStatus = "EXPIRED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// PaymentKind separates the opening charge from extension charges
type PaymentKind string

const (
	PaymentInitial   PaymentKind = "INITIAL"
	PaymentExtension PaymentKind = "EXTENSION"
)

// Booking is the ledger record tying a user to a seat for a span of time.
// Amounts are integer paise; no floats anywhere in the money path.
type Booking struct {
	ID          uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SeatID      uuid.UUID     `gorm:"type:uuid;index;not null" json:"seat_id"`
	UserID      uuid.UUID     `gorm:"type:uuid;index;not null" json:"user_id"`
	Status      BookingStatus `gorm:"type:varchar(20);check:status IN ('ACTIVE', 'EXPIRED', 'CANCELLED');default:'ACTIVE'" json:"status"`
	StartDate   time.Time     `gorm:"not null" json:"start_date"`
	EndDate     time.Time     `gorm:"not null;index" json:"end_date"`
	MonthlyRate int64         `gorm:"not null" json:"monthly_rate"`
	BookingRef  string        `gorm:"unique;not null" json:"booking_ref"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`

	// Relationships
	Payments   []Payment   `json:"payments,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:RESTRICT;"`
	Extensions []Extension `json:"extensions,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;"`
}

// Payment records one charge against a booking
type Payment struct {
	ID        uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID uuid.UUID   `gorm:"type:uuid;index;not null" json:"booking_id"`
	Kind      PaymentKind `gorm:"type:varchar(20);check:kind IN ('INITIAL', 'EXTENSION');not null" json:"kind"`
	Amount    int64       `gorm:"not null" json:"amount"`
	Currency  string      `gorm:"type:varchar(3);default:'INR'" json:"currency"`
	CreatedAt time.Time   `json:"created_at"`
}

// Extension records one successful end-date move. The idempotency key is
// unique so a retried request can only ever land once; the second insert
// surfaces as a duplicate-key error and is answered from this row.
type Extension struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID      uuid.UUID `gorm:"type:uuid;index;not null" json:"booking_id"`
	IdempotencyKey string    `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	OldEndDate     time.Time `gorm:"not null" json:"old_end_date"`
	NewEndDate     time.Time `gorm:"not null" json:"new_end_date"`
	Months         int       `gorm:"not null" json:"months"`
	Amount         int64     `gorm:"not null" json:"amount"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

// TableName sets the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// TableName sets the table name for Extension
func (Extension) TableName() string {
	return "booking_extensions"
}

func (b *Booking) IsActive() bool {
	return b.Status == StatusActive
}

// Covers reports whether the booking span includes the given instant
func (b *Booking) Covers(now time.Time) bool {
	return b.Status == StatusActive && !now.Before(b.StartDate) && now.Before(b.EndDate)
}

// Lapsed reports whether an ACTIVE booking has outlived its span
func (b *Booking) Lapsed(now time.Time) bool {
	return b.Status == StatusActive && !b.EndDate.After(now)
}

func (b *Booking) Cancel(now time.Time) {
	b.Status = StatusCancelled
	b.CancelledAt = &now
}

// generateBookingRef produces a short human-quotable reference
func generateBookingRef() string {
	return "BK-" + strings.ToUpper(uuid.New().String()[:8])
}
