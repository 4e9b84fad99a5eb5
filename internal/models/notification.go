package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies a lifecycle event pushed to clients
type NotificationKind string

const (
	NotificationOrderExpired       NotificationKind = "order_expired"
	NotificationPaymentSuccess     NotificationKind = "payment_success"
	NotificationPaymentFailed      NotificationKind = "payment_failed"
	NotificationOrderStatusChanged NotificationKind = "order_status_changed"
)

// Notification is a best-effort event delivered to every session of a user
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Kind      NotificationKind `json:"kind"`
	UserID    uuid.UUID        `json:"user_id"`
	OrderID   int64            `json:"order_id"`
	Payload   map[string]any   `json:"payload,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewOrderNotification builds a notification for an order event
func NewOrderNotification(kind NotificationKind, order *Order, payload map[string]any, at time.Time) Notification {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = order.Status
	payload["vehicle_id"] = order.VehicleID
	return Notification{
		ID:        uuid.New(),
		Kind:      kind,
		UserID:    order.UserID,
		OrderID:   order.ID,
		Payload:   payload,
		Timestamp: at,
	}
}
