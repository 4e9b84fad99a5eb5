package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/models"
	"github.com/vrental/booking-service/pkg/validator"
)

// errorMapping is the client contract for a business rejection
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{models.ErrVehicleUnavailable, http.StatusConflict, "vehicle_unavailable", "The vehicle is booked for this window. Pick another vehicle or window."},
	{models.ErrLockExpired, http.StatusGone, "lock_expired", "Your quote has expired or was already used. Request a new preview."},
	{models.ErrStaleQuote, http.StatusConflict, "stale_quote", "The price no longer matches the quote. Request a new preview."},
	{models.ErrInvalidWindow, http.StatusBadRequest, "invalid_window", "The rental window is not valid."},
	{models.ErrInvalidQuote, http.StatusBadRequest, "invalid_quote", "Hourly rate and vehicle value must be positive."},
	{models.ErrSoftLockNotFound, http.StatusNotFound, "soft_lock_not_found", "No quote exists for this token."},
	{models.ErrSoftLockMismatch, http.StatusBadRequest, "soft_lock_mismatch", "The request does not match the quoted vehicle and window."},
	{models.ErrOrderNotFound, http.StatusNotFound, "order_not_found", "Order not found."},
	{models.ErrOrderNotPending, http.StatusConflict, "order_not_pending", "The order is not awaiting payment."},
	{models.ErrOrderExpired, http.StatusGone, "order_expired", "The payment deadline has passed."},
	{models.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "The order status does not allow this action."},
	{models.ErrForbidden, http.StatusForbidden, "forbidden", "You don't have permission to access this resource."},
	{models.ErrAmountMismatch, http.StatusUnprocessableEntity, "amount_mismatch", "Paid amount does not match the amount due."},
	{models.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature", "Invalid payment signature."},
}

// respondError writes the mapped business rejection, or a 500 for anything
// else. Business rejections are logged at info, infrastructure failures at
// error.
func respondError(c *gin.Context, logger *logrus.Logger, err error, action string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			logger.WithFields(logrus.Fields{
				"code": m.code,
				"path": c.FullPath(),
			}).Info(action + " rejected: " + err.Error())
			c.JSON(m.status, gin.H{
				"error":   m.code,
				"code":    m.code,
				"message": m.message,
				"detail":  err.Error(),
			})
			return
		}
	}

	logger.WithError(err).WithField("path", c.FullPath()).Error(action + " failed")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"code":    "internal_error",
		"message": "Something went wrong. Please try again.",
	})
}

// respondBindingError writes a 400 with per-field validation messages
func respondBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"code":    "invalid_request",
		"message": "Request validation failed",
		"fields":  validator.Translate(err),
	})
}

func respondUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"code":    "MISSING_USER_CONTEXT",
		"message": "user not authenticated",
	})
}
