package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/middleware"
	"github.com/vrental/booking-service/internal/models"
)

// BookingService is the part of the orchestrator behind the booking routes
type BookingService interface {
	Preview(ctx context.Context, userID uuid.UUID, req *models.PreviewRequest) (*models.PreviewResponse, error)
	Confirm(ctx context.Context, userID uuid.UUID, req *models.ConfirmRequest) (*models.ConfirmResponse, error)
	GetSoftLock(ctx context.Context, actor models.Actor, token string) (*models.SoftLock, error)
	CancelSoftLock(ctx context.Context, actor models.Actor, token, reason string) (*models.SoftLock, error)
}

// BookingHandler handles quote (soft lock) and confirmation endpoints
type BookingHandler struct {
	bookings BookingService
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		logger:   logger,
	}
}

// ============================================================================
// PREVIEW - POST /api/v1/bookings/preview
// ============================================================================

// Preview quotes a rental and holds the vehicle for the soft lock TTL
func (h *BookingHandler) Preview(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	var req models.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	response, err := h.bookings.Preview(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err, "Preview")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ============================================================================
// CONFIRM - POST /api/v1/bookings/confirm
// ============================================================================

// Confirm consumes the soft lock and creates a pending order
func (h *BookingHandler) Confirm(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	var req models.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	response, err := h.bookings.Confirm(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err, "Confirm")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ============================================================================
// SOFT LOCKS - /api/v1/bookings/soft-locks/:token
// ============================================================================

// GetSoftLock returns the quote behind a token
func (h *BookingHandler) GetSoftLock(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	lock, err := h.bookings.GetSoftLock(c.Request.Context(), userCtx.Actor(), c.Param("token"))
	if err != nil {
		respondError(c, h.logger, err, "Get soft lock")
		return
	}

	c.JSON(http.StatusOK, lock)
}

// CancelSoftLock releases a quote before it expires
func (h *BookingHandler) CancelSoftLock(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	var req models.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
	}

	lock, err := h.bookings.CancelSoftLock(c.Request.Context(), userCtx.Actor(), c.Param("token"), req.Reason)
	if err != nil {
		respondError(c, h.logger, err, "Cancel soft lock")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Soft lock released",
		"soft_lock": lock,
	})
}
