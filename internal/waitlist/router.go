package waitlist

import (
	"deskly/internal/shared/config"
	"deskly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupWaitlistRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	waitlist := rg.Group("/waitlist")
	waitlist.Use(middleware.JWTAuth(cfg))
	{
		waitlist.POST("", controller.Join)               // POST /api/v1/waitlist
		waitlist.DELETE("/:entryId", controller.Leave)   // DELETE /api/v1/waitlist/:entryId
		waitlist.GET("/:entryId", controller.Status)     // GET /api/v1/waitlist/:entryId
	}

	// ADMIN QUEUE VIEW

	admin := rg.Group("/admin")
	admin.Use(middleware.JWTAuth(cfg), middleware.RequireAdmin())
	{
		admin.GET("/seats/:id/waitlist", controller.ListForSeat) // GET /api/v1/admin/seats/:id/waitlist
	}
}
