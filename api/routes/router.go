// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"deskly/internal/bookings"
	"deskly/internal/notifications"
	"deskly/internal/seats"
	"deskly/internal/shared/config"
	"deskly/internal/shared/database"
	"deskly/internal/waitlist"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config     *config.Config
	db         *database.DB
	dispatcher notifications.Dispatcher

	// Built during SetupRoutes; main uses these to run the sweeps
	seatService     seats.Service
	waitlistService waitlist.Service
	bookingService  bookings.Service
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, dispatcher notifications.Dispatcher) *Router {
	if dispatcher == nil {
		dispatcher = notifications.NopDispatcher{}
	}
	return &Router{
		config:     cfg,
		db:         db,
		dispatcher: dispatcher,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	r.buildServices()

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		seatController := seats.NewController(r.seatService)
		seats.SetupSeatRoutes(api, seatController, r.config)

		waitlistController := waitlist.NewController(r.waitlistService)
		waitlist.SetupWaitlistRoutes(api, waitlistController, r.config)

		bookingController := bookings.NewController(r.bookingService)
		bookings.SetupBookingRoutes(api, bookingController, r.config)
	}
}

// buildServices constructs the three domain services and closes the loop
// between them. The seat engine is built first; the waitlist and ledger
// sides are injected afterwards so the packages stay acyclic.
func (r *Router) buildServices() {
	pg := r.db.GetPostgreSQL()
	rdb := r.db.GetRedis()

	holdManager := seats.NewHoldManager(rdb)
	seatRepo := seats.NewRepository(pg)
	seatService := seats.NewService(seatRepo, holdManager, r.config, r.dispatcher, nil)

	waitlistRepo := waitlist.NewRepository(pg, rdb)
	waitlistService := waitlist.NewService(waitlistRepo, seatService, r.config, r.dispatcher, nil)

	bookingRepo := bookings.NewRepository(pg)
	bookingService := bookings.NewService(bookingRepo, seatService, r.config, nil)

	seatService.SetPromoter(waitlistService)
	seatService.SetLedger(bookingRepo)
	bookingService.SetWaitlist(waitlistService)

	r.seatService = seatService
	r.waitlistService = waitlistService
	r.bookingService = bookingService
}

// SeatService exposes the seat engine for background jobs
func (r *Router) SeatService() seats.Service {
	return r.seatService
}

// WaitlistService exposes the waitlist for background jobs
func (r *Router) WaitlistService() waitlist.Service {
	return r.waitlistService
}

// BookingService exposes the booking ledger for background jobs
func (r *Router) BookingService() bookings.Service {
	return r.bookingService
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "deskly-engine",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "deskly-engine",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}
