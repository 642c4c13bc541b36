package notifications

import (
	"context"
	"time"

	"deskly/pkg/logger"

	"github.com/google/uuid"
)

// Dispatcher is the fire-and-forget publisher for engine events. Delivery
// failures are logged and swallowed: a lost notification must never roll
// back or block the state transition that produced it.
type Dispatcher interface {
	SeatFreed(ctx context.Context, seatID uuid.UUID, reason string)
	HoldGranted(ctx context.Context, seatID, userID uuid.UUID, expiresAt time.Time, source HoldSource)
	OfferExpiring(ctx context.Context, entryID, seatID, userID uuid.UUID, expiresAt time.Time)
	Close() error
}

// kafkaDispatcher publishes events through the Kafka producer
type kafkaDispatcher struct {
	producer Producer
	log      *logger.Logger
}

// NewDispatcher creates a Dispatcher backed by the given producer
func NewDispatcher(producer Producer, log *logger.Logger) Dispatcher {
	if log == nil {
		log = logger.GetDefault()
	}
	return &kafkaDispatcher{
		producer: producer,
		log:      log,
	}
}

func (d *kafkaDispatcher) SeatFreed(ctx context.Context, seatID uuid.UUID, reason string) {
	event := NewSeatEvent(EventSeatFreed, seatID)
	event.Reason = reason
	d.publish(ctx, event)
}

func (d *kafkaDispatcher) HoldGranted(ctx context.Context, seatID, userID uuid.UUID, expiresAt time.Time, source HoldSource) {
	event := NewSeatEvent(EventHoldGranted, seatID)
	event.UserID = &userID
	event.ExpiresAt = &expiresAt
	event.Source = source
	d.publish(ctx, event)
}

func (d *kafkaDispatcher) OfferExpiring(ctx context.Context, entryID, seatID, userID uuid.UUID, expiresAt time.Time) {
	event := NewSeatEvent(EventOfferExpiring, seatID)
	event.EntryID = &entryID
	event.UserID = &userID
	event.ExpiresAt = &expiresAt
	d.publish(ctx, event)
}

func (d *kafkaDispatcher) publish(ctx context.Context, event *SeatEvent) {
	if err := d.producer.Publish(ctx, event); err != nil {
		d.log.Error("failed to publish seat event",
			"kind", string(event.Kind),
			"seat_id", event.SeatID.String(),
			"error", err.Error(),
		)
	}
}

func (d *kafkaDispatcher) Close() error {
	return d.producer.Close()
}

// NopDispatcher is used when no broker is configured; the engine runs
// without outbound signals.
type NopDispatcher struct{}

func (NopDispatcher) SeatFreed(ctx context.Context, seatID uuid.UUID, reason string) {}
func (NopDispatcher) HoldGranted(ctx context.Context, seatID, userID uuid.UUID, expiresAt time.Time, source HoldSource) {
}
func (NopDispatcher) OfferExpiring(ctx context.Context, entryID, seatID, userID uuid.UUID, expiresAt time.Time) {
}
func (NopDispatcher) Close() error { return nil }
