package handlers

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/middleware"
	"github.com/vrental/booking-service/internal/services"
)

// NotificationHandler streams order lifecycle notifications over SSE
type NotificationHandler struct {
	hub       *services.NotificationHub
	heartbeat time.Duration
	logger    *logrus.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(hub *services.NotificationHub, heartbeat time.Duration, logger *logrus.Logger) *NotificationHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &NotificationHandler{
		hub:       hub,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Stream keeps the connection open and writes one SSE event per notification
// GET /api/v1/notifications/stream
func (h *NotificationHandler) Stream(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	session := h.hub.Subscribe(userCtx.UserID, c.Request.UserAgent())
	defer h.hub.Unsubscribe(session)

	log := h.logger.WithFields(logrus.Fields{
		"user_id":    userCtx.UserID,
		"session_id": session.ID,
		"device":     session.Device.DeviceType,
	})
	log.Info("Notification stream opened")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{
		"session_id": session.ID,
		"device":     session.Device,
	})
	// Headers and the first event go out now, not after the first tick
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n, ok := <-session.Events():
			if !ok {
				return false
			}
			c.SSEvent(string(n.Kind), n)
			return true
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			return true
		}
	})

	log.WithField("duration", time.Since(session.ConnectedAt).String()).Info("Notification stream closed")
}
