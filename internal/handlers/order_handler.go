package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/middleware"
	"github.com/vrental/booking-service/internal/models"
)

// OrderService is the part of the orchestrator behind the order routes
type OrderService interface {
	GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, status models.OrderStatus, limit, offset int) ([]models.Order, error)
	CancelOrder(ctx context.Context, actor models.Actor, orderID int64, reason string) (*models.Order, error)
	StartRental(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
	CompleteRental(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
}

// OrderHandler handles rental order endpoints
type OrderHandler struct {
	orders OrderService
	logger *logrus.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderService, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

var validOrderStatuses = map[models.OrderStatus]bool{
	models.OrderPending:    true,
	models.OrderPaid:       true,
	models.OrderInProgress: true,
	models.OrderCompleted:  true,
	models.OrderCancelled:  true,
	models.OrderExpired:    true,
}

// ListOrders returns the caller's orders
// GET /api/v1/orders?status=&limit=&offset=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	status := models.OrderStatus(c.Query("status"))
	if status != "" && !validOrderStatuses[status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": "invalid_request", "message": "unknown status filter"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.orders.ListUserOrders(c.Request.Context(), userCtx.UserID, status, limit, offset)
	if err != nil {
		respondError(c, h.logger, err, "List orders")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder returns one order
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	h.withOrder(c, "Get order", h.orders.GetOrder)
}

// CancelOrder cancels a non-terminal order
// POST /api/v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req models.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
	}

	h.withOrder(c, "Cancel order", func(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
		return h.orders.CancelOrder(ctx, actor, orderID, req.Reason)
	})
}

// StartRental marks the vehicle as picked up (staff)
// POST /api/v1/orders/:id/start
func (h *OrderHandler) StartRental(c *gin.Context) {
	h.withOrder(c, "Start rental", h.orders.StartRental)
}

// CompleteRental marks the vehicle as returned (staff)
// POST /api/v1/orders/:id/complete
func (h *OrderHandler) CompleteRental(c *gin.Context) {
	h.withOrder(c, "Complete rental", h.orders.CompleteRental)
}

func (h *OrderHandler) withOrder(
	c *gin.Context,
	action string,
	fn func(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error),
) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": "invalid_request", "message": "invalid order id"})
		return
	}

	order, err := fn(c.Request.Context(), userCtx.Actor(), orderID)
	if err != nil {
		respondError(c, h.logger, err, action)
		return
	}

	c.JSON(http.StatusOK, order)
}
