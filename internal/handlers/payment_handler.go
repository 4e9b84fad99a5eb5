package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/models"
	"github.com/vrental/booking-service/internal/utils"
)

// PaymentCallbackProcessor verifies and applies payment callbacks
type PaymentCallbackProcessor interface {
	ProcessCallback(ctx context.Context, req *models.PaymentCallbackRequest) (*models.Order, error)
}

// PaymentAuditReader reads the payment callback audit trail
type PaymentAuditReader interface {
	ListByOrder(ctx context.Context, orderID int64) ([]models.PaymentAudit, error)
	ListAmountMismatches(ctx context.Context, limit int) ([]models.PaymentAudit, error)
}

// PaymentHandler handles the payment collaborator's callback
type PaymentHandler struct {
	payments PaymentCallbackProcessor
	audits   PaymentAuditReader
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentCallbackProcessor, audits PaymentAuditReader, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		audits:   audits,
		logger:   logger,
	}
}

// Callback applies a signed payment result
// POST /api/v1/payments/callback (no JWT, HMAC signed)
func (h *PaymentHandler) Callback(c *gin.Context) {
	var req models.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Malformed payment callback")
		respondBindingError(c, err)
		return
	}
	req.ClientIP = utils.GetRealIP(c)
	req.UserAgent = c.Request.UserAgent()

	h.logger.WithFields(logrus.Fields{
		"order_id":       req.OrderID,
		"transaction_id": req.TransactionID,
		"status":         req.Status,
		"amount":         req.Amount,
	}).Info("Payment callback received")

	order, err := h.payments.ProcessCallback(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "Payment callback")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": order.ID,
		"status":   order.Status,
	})
}

// ListAudits returns the callback audit trail of an order (staff)
// GET /api/v1/admin/orders/:id/payment-audits
func (h *PaymentHandler) ListAudits(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": "invalid_request", "message": "invalid order id"})
		return
	}

	audits, err := h.audits.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err, "List payment audits")
		return
	}
	if audits == nil {
		audits = []models.PaymentAudit{}
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"audits":   audits,
		"count":    len(audits),
	})
}

// ListAmountMismatches returns recent callbacks whose amount was wrong (staff)
// GET /api/v1/admin/payment-audits/mismatches?limit=
func (h *PaymentHandler) ListAmountMismatches(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}

	audits, err := h.audits.ListAmountMismatches(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err, "List amount mismatches")
		return
	}
	if audits == nil {
		audits = []models.PaymentAudit{}
	}

	c.JSON(http.StatusOK, gin.H{
		"audits": audits,
		"count":  len(audits),
	})
}
