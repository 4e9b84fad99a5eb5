package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// ORDER STATUSES (matches DB CHECK constraint on orders.status)
// ============================================================================

// OrderStatus represents the lifecycle status of a rental order
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"     // Created from a soft lock, waiting for payment
	OrderPaid       OrderStatus = "paid"        // Payment callback succeeded
	OrderInProgress OrderStatus = "in_progress" // Vehicle picked up
	OrderCompleted  OrderStatus = "completed"   // Vehicle returned
	OrderCancelled  OrderStatus = "cancelled"   // Cancelled by user or staff
	OrderExpired    OrderStatus = "expired"     // Payment deadline passed
)

// NonTerminalOrderStatuses are the statuses that still occupy the vehicle
var NonTerminalOrderStatuses = []OrderStatus{OrderPending, OrderPaid, OrderInProgress}

// IsTerminal reports whether the order can no longer change state
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderCompleted, OrderCancelled, OrderExpired:
		return true
	}
	return false
}

// ExpiredOrderReason is recorded when the order expirer reaps a pending order
const ExpiredOrderReason = "payment not initiated in time"

// ============================================================================
// ORDER MODEL (orders table)
// ============================================================================

// Order is a committed, payment-pending (or later) booking of a vehicle
type Order struct {
	ID        int64       `json:"id" db:"id"`
	UserID    uuid.UUID   `json:"user_id" db:"user_id"`
	VehicleID int64       `json:"vehicle_id" db:"vehicle_id"`
	FromDate  time.Time   `json:"from_date" db:"from_date"`
	ToDate    time.Time   `json:"to_date" db:"to_date"`
	Status    OrderStatus `json:"status" db:"status"`

	// Pricing snapshot
	HourlyRate    float64 `json:"hourly_rate" db:"hourly_rate"`
	TotalCost     float64 `json:"total_cost" db:"total_cost"`
	DepositAmount float64 `json:"deposit_amount" db:"deposit_amount"`
	TrustScore    int     `json:"trust_score" db:"trust_score"`

	// Traceability back to the consumed soft lock
	SoftLockToken *string `json:"soft_lock_token,omitempty" db:"soft_lock_token"`

	CancelReason *string `json:"cancel_reason,omitempty" db:"cancel_reason"`

	// Payment tracking
	PaymentTransactionID *string    `json:"payment_transaction_id,omitempty" db:"payment_transaction_id"`
	PaidAt               *time.Time `json:"paid_at,omitempty" db:"paid_at"`

	// Payment deadline
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsPaymentOverdueAt reports whether the payment deadline passed at now (inclusive boundary)
func (o *Order) IsPaymentOverdueAt(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// OrderTransition describes a conditional status change applied by the store
type OrderTransition struct {
	From []OrderStatus
	To   OrderStatus
	At   time.Time

	// Optional columns written with the transition
	CancelReason         *string
	PaymentTransactionID *string
	// NotAfter, when set, requires expires_at >= NotAfter for the update to apply
	NotAfter *time.Time
}
