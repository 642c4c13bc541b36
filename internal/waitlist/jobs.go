package waitlist

import (
	"context"
	"log"
	"time"
)

// JobProcessor runs the offer expiry sweep in the background
type JobProcessor struct {
	service Service
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
		SweepInterval: 30 * time.Second,
		BatchSize:     100,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(service Service, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}

	return &JobProcessor{
		service: service,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start starts the background sweep
func (jp *JobProcessor) Start(ctx context.Context) {
	go jp.runOfferSweep(ctx)
	log.Printf("Waitlist offer sweep started with %v interval", jp.config.SweepInterval)
}

// Stop stops the background sweep
func (jp *JobProcessor) Stop() {
	close(jp.done)
	log.Println("Waitlist offer sweep stopped")
}

func (jp *JobProcessor) runOfferSweep(ctx context.Context) {
	ticker := time.NewTicker(jp.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jp.sweepLapsedOffers(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) sweepLapsedOffers(ctx context.Context) {
	processed, err := jp.service.ExpireLapsedOffers(ctx, jp.config.BatchSize)
	if err != nil {
		log.Printf("Error expiring lapsed offers: %v", err)
		return
	}

	if processed > 0 {
		log.Printf("Expired %d lapsed waitlist offers", processed)
	}
}
