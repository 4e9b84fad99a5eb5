package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/models"
)

// AvailabilityChecker answers fail-closed availability queries
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, vehicleID int64, from, to time.Time) bool
}

// AvailabilityHandler handles vehicle availability queries
type AvailabilityHandler struct {
	availability AvailabilityChecker
	logger       *logrus.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(availability AvailabilityChecker, logger *logrus.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		logger:       logger,
	}
}

// GetAvailability reports whether a vehicle is free for a window
// GET /api/v1/vehicles/:id/availability?from=<RFC3339>&to=<RFC3339>
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	vehicleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || vehicleID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": "invalid_request", "message": "invalid vehicle id"})
		return
	}

	from, errFrom := time.Parse(time.RFC3339, c.Query("from"))
	to, errTo := time.Parse(time.RFC3339, c.Query("to"))
	if errFrom != nil || errTo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": "invalid_request", "message": "from and to must be RFC3339 timestamps"})
		return
	}
	if !to.After(from) {
		respondError(c, h.logger, models.ErrInvalidWindow, "Availability")
		return
	}

	from, to = from.UTC(), to.UTC()
	c.JSON(http.StatusOK, models.AvailabilityResponse{
		VehicleID: vehicleID,
		FromDate:  from,
		ToDate:    to,
		Available: h.availability.IsAvailable(c.Request.Context(), vehicleID, from, to),
	})
}
