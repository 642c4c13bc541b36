package bookings

import (
	"deskly/internal/shared/config"
	"deskly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	bookings := rg.Group("/bookings")
	bookings.Use(middleware.JWTAuth(cfg))
	{
		bookings.POST("/confirm", controller.ConfirmBooking)   // POST /api/v1/bookings/confirm
		bookings.GET("/:id", controller.GetBooking)            // GET /api/v1/bookings/:id
		bookings.POST("/:id/extend", controller.ExtendBooking) // POST /api/v1/bookings/:id/extend
		bookings.DELETE("/:id", controller.CancelBooking)      // DELETE /api/v1/bookings/:id
	}

	users := rg.Group("/users")
	users.Use(middleware.JWTAuth(cfg))
	{
		users.GET("/me/bookings", controller.GetUserBookings) // GET /api/v1/users/me/bookings
	}
}
