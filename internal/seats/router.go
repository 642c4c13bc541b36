package seats

import (
	"deskly/internal/shared/config"
	"deskly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupSeatRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	// USER SEAT OPERATIONS

	seats := rg.Group("/seats")
	seats.Use(middleware.JWTAuth(cfg))
	{
		seats.GET("/:id", controller.GetSeat) // GET /api/v1/seats/:id

		// Core hold endpoints (booking flow)
		seats.POST("/:id/hold", controller.RequestHold)  // POST /api/v1/seats/:id/hold
		seats.DELETE("/:id/hold", controller.CancelHold) // DELETE /api/v1/seats/:id/hold
	}

	// VENUE-BASED OPERATIONS

	venues := rg.Group("/venues")
	venues.Use(middleware.JWTAuth(cfg))
	{
		venues.GET("/:venueId/seats", controller.GetSeatsByVenue) // GET /api/v1/venues/:venueId/seats
	}

	// ADMIN SEAT OPERATIONS

	admin := rg.Group("/admin")
	admin.Use(middleware.JWTAuth(cfg), middleware.RequireAdmin())
	{
		admin.POST("/venues/:venueId/seats", controller.CreateSeats) // POST /api/v1/admin/venues/:venueId/seats
		admin.PUT("/seats/:id/status", controller.ApplyExternalStatus) // PUT /api/v1/admin/seats/:id/status
	}
}
