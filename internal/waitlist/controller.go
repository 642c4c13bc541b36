package waitlist

import (
	"errors"
	"net/http"

	"deskly/internal/seats"
	"deskly/internal/shared/middleware"
	"deskly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, seats.ErrSeatNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyWaitlisted):
		return http.StatusConflict
	case errors.Is(err, ErrSeatNotOccupied), errors.Is(err, ErrEntryNotLive):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) Join(ctx *gin.Context) {
	var req JoinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	entry, err := c.service.Join(ctx.Request.Context(), req, userID)
	if err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to join waitlist", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Joined waitlist successfully", entry, nil)
}

func (c *Controller) Leave(ctx *gin.Context) {
	entryID := ctx.Param("entryId")
	if entryID == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Entry ID is required", nil, "missing entry ID")
		return
	}

	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	if err := c.service.Leave(ctx.Request.Context(), entryID, userID); err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to leave waitlist", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Left waitlist successfully", nil, nil)
}

func (c *Controller) Status(ctx *gin.Context) {
	entryID := ctx.Param("entryId")
	if entryID == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Entry ID is required", nil, "missing entry ID")
		return
	}

	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	entry, err := c.service.Status(ctx.Request.Context(), entryID, userID)
	if err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to get waitlist entry", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist entry retrieved successfully", entry, nil)
}

func (c *Controller) ListForSeat(ctx *gin.Context) {
	seatID := ctx.Param("id")
	if seatID == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Seat ID is required", nil, "missing seat ID")
		return
	}

	entries, err := c.service.ListForSeat(ctx.Request.Context(), seatID)
	if err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to list waitlist", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist retrieved successfully", entries, nil)
}
