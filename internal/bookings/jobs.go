package bookings

import (
	"context"
	"log"
	"time"
)

// SeatSweeper settles HELD rows whose Redis key already expired
type SeatSweeper interface {
	ExpireStaleHolds(ctx context.Context, limit int) (int, error)
}

// JobProcessor runs the booking span sweep and the stale hold sweep
type JobProcessor struct {
	service Service
	sweeper SeatSweeper
	config  *JobConfig
	done    chan struct{}
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		SweepInterval: 10 * time.Minute,
		BatchSize:     100,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(service Service, sweeper SeatSweeper, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}

	return &JobProcessor{
		service: service,
		sweeper: sweeper,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start starts the background sweeps
func (jp *JobProcessor) Start(ctx context.Context) {
	go jp.run(ctx)
	log.Printf("Booking sweeps started with %v interval", jp.config.SweepInterval)
}

// Stop stops the background sweeps
func (jp *JobProcessor) Stop() {
	close(jp.done)
	log.Println("Booking sweeps stopped")
}

func (jp *JobProcessor) run(ctx context.Context) {
	ticker := time.NewTicker(jp.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jp.sweep(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) sweep(ctx context.Context) {
	expired, err := jp.service.ExpireLapsed(ctx, jp.config.BatchSize)
	if err != nil {
		log.Printf("Error expiring lapsed bookings: %v", err)
	} else if expired > 0 {
		log.Printf("Expired %d lapsed bookings", expired)
	}

	if jp.sweeper == nil {
		return
	}

	released, err := jp.sweeper.ExpireStaleHolds(ctx, jp.config.BatchSize)
	if err != nil {
		log.Printf("Error releasing stale holds: %v", err)
	} else if released > 0 {
		log.Printf("Released %d stale holds", released)
	}
}
