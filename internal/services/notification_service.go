package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/models"
	"github.com/vrental/booking-service/internal/utils"
)

// NotificationSession is one connected client of a user
type NotificationSession struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Device      utils.ClientDevice
	ConnectedAt time.Time

	events chan models.Notification
}

// Events returns the channel the session's notifications arrive on. It is
// closed when the session is unsubscribed.
func (s *NotificationSession) Events() <-chan models.Notification {
	return s.events
}

// NotificationHub keeps the connected sessions of each user in this process
// and delivers notifications to them. Delivery never blocks: a session whose
// buffer is full misses the event.
type NotificationHub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[uuid.UUID]*NotificationSession
	buffer   int
	dropped  atomic.Int64
	logger   *logrus.Logger
}

// NewNotificationHub creates a hub whose sessions buffer up to buffer events
func NewNotificationHub(buffer int, logger *logrus.Logger) *NotificationHub {
	if buffer < 1 {
		buffer = 1
	}
	return &NotificationHub{
		sessions: make(map[uuid.UUID]map[uuid.UUID]*NotificationSession),
		buffer:   buffer,
		logger:   logger,
	}
}

// Subscribe registers a new session for the user
func (h *NotificationHub) Subscribe(userID uuid.UUID, userAgent string) *NotificationSession {
	session := &NotificationSession{
		ID:          uuid.New(),
		UserID:      userID,
		Device:      utils.ParseClientDevice(userAgent),
		ConnectedAt: time.Now(),
		events:      make(chan models.Notification, h.buffer),
	}

	h.mu.Lock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[uuid.UUID]*NotificationSession)
	}
	h.sessions[userID][session.ID] = session
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"session_id":  session.ID,
		"device_type": session.Device.DeviceType,
		"browser":     session.Device.Browser,
	}).Debug("Notification session opened")
	return session
}

// Unsubscribe removes the session and closes its channel. Safe to call twice.
func (h *NotificationHub) Unsubscribe(session *NotificationSession) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userSessions := h.sessions[session.UserID]
	if _, ok := userSessions[session.ID]; !ok {
		return
	}
	delete(userSessions, session.ID)
	if len(userSessions) == 0 {
		delete(h.sessions, session.UserID)
	}
	close(session.events)
}

// CloseAll ends every open session, so streaming handlers return during
// shutdown
func (h *NotificationHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, userSessions := range h.sessions {
		for _, session := range userSessions {
			close(session.events)
		}
		delete(h.sessions, userID)
	}
}

// Deliver pushes n to every local session of n.UserID and returns how many
// sessions accepted it. No subscriber is not an error.
func (h *NotificationHub) Deliver(n models.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, session := range h.sessions[n.UserID] {
		select {
		case session.events <- n:
			delivered++
		default:
			h.dropped.Add(1)
			h.logger.WithFields(logrus.Fields{
				"user_id":    n.UserID,
				"session_id": session.ID,
				"kind":       n.Kind,
			}).Warn("Notification dropped, session buffer full")
		}
	}
	return delivered
}

// Notify implements Notifier for single-instance deployments
func (h *NotificationHub) Notify(_ context.Context, n models.Notification) {
	h.Deliver(n)
}

// SessionCount returns the number of open sessions for the user
func (h *NotificationHub) SessionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Dropped returns how many deliveries were dropped on full buffers
func (h *NotificationHub) Dropped() int64 {
	return h.dropped.Load()
}
