package seats

import (
	"errors"
	"net/http"

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

// statusForError maps engine sentinels onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrSeatNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSeatUnavailable), errors.Is(err, ErrSeatBooked), errors.Is(err, ErrHoldMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrSeatDisabled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrHoldExpired):
		return http.StatusGone
	case errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// SEAT QUERIES

func (c *Controller) GetSeat(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Seat ID is required", nil, "missing seat ID")
		return
	}

	view, err := c.service.GetStatus(ctx.Request.Context(), id)
	if err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to get seat", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat retrieved successfully", view, nil)
}

func (c *Controller) GetSeatsByVenue(ctx *gin.Context) {
	venueID := ctx.Param("venueId")
	if venueID == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Venue ID is required", nil, "missing venue ID")
		return
	}

	views, err := c.service.GetSeatsByVenueID(ctx.Request.Context(), venueID)
	if err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to get seats", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats retrieved successfully", views, nil)
}

// HOLD FLOW

func (c *Controller) RequestHold(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Seat ID is required", nil, "missing seat ID")
		return
	}

	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	token, err := c.service.RequestHold(ctx.Request.Context(), id, userID)
	if err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to hold seat", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat held successfully", token, nil)
}

func (c *Controller) CancelHold(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Seat ID is required", nil, "missing seat ID")
		return
	}

	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	if err := c.service.CancelHold(ctx.Request.Context(), id, userID); err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to release hold", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Hold released successfully", nil, nil)
}

// ADMIN OPERATIONS

func (c *Controller) CreateSeats(ctx *gin.Context) {
	venueID := ctx.Param("venueId")
	if venueID == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Venue ID is required", nil, "missing venue ID")
		return
	}

	var req CreateSeatsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	seats, err := c.service.CreateSeats(ctx.Request.Context(), venueID, req)
	if err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to create seats", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Seats created successfully", seats, nil)
}

func (c *Controller) ApplyExternalStatus(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Seat ID is required", nil, "missing seat ID")
		return
	}

	var req ExternalStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	view, err := c.service.ApplyExternalStatus(ctx.Request.Context(), id, req)
	if err != nil {
		response.RespondJSON(ctx, "error", statusForError(err), "Failed to update seat status", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat status updated successfully", view, nil)
}
