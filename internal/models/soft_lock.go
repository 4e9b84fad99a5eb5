package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// SOFT LOCK STATUSES (matches DB CHECK constraint on soft_locks.status)
// ============================================================================

// SoftLockStatus represents the status of a soft lock
type SoftLockStatus string

const (
	SoftLockActive    SoftLockStatus = "active"    // Vehicle window held, waiting for confirm
	SoftLockConfirmed SoftLockStatus = "confirmed" // Consumed by an order
	SoftLockExpired   SoftLockStatus = "expired"   // TTL passed, reaped
	SoftLockCancelled SoftLockStatus = "cancelled" // Released by the user
)

// IsTerminal reports whether the lock can no longer change state
func (s SoftLockStatus) IsTerminal() bool {
	return s != SoftLockActive
}

// ============================================================================
// SOFT LOCK MODEL (soft_locks table)
// ============================================================================

// SoftLock provisionally holds a vehicle for a time window while the client
// decides whether to confirm the quoted price.
type SoftLock struct {
	Token     string         `json:"token" db:"token"`
	VehicleID int64          `json:"vehicle_id" db:"vehicle_id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	FromDate  time.Time      `json:"from_date" db:"from_date"`
	ToDate    time.Time      `json:"to_date" db:"to_date"`
	Status    SoftLockStatus `json:"status" db:"status"`

	// Quote snapshot (server-calculated at preview time)
	HourlyRate        float64 `json:"hourly_rate" db:"hourly_rate"`
	TotalCost         float64 `json:"total_cost" db:"total_cost"`
	DepositAmount     float64 `json:"deposit_amount" db:"deposit_amount"`
	DepositPercentage float64 `json:"deposit_percentage" db:"deposit_percentage"`
	TrustScore        int     `json:"trust_score" db:"trust_score"`

	CancelReason *string `json:"cancel_reason,omitempty" db:"cancel_reason"`

	// TTL Management
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsExpiredAt reports whether the lock's validity window has passed at now.
// The boundary is inclusive: a lock is still valid at exactly ExpiresAt.
func (l *SoftLock) IsExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// CanConfirmAt reports whether Confirm may consume the lock at now
func (l *SoftLock) CanConfirmAt(now time.Time) bool {
	return l.Status == SoftLockActive && !l.IsExpiredAt(now)
}

// MatchesRequest reports whether the stored hold is for the same user, vehicle and window
func (l *SoftLock) MatchesRequest(userID uuid.UUID, vehicleID int64, from, to time.Time) bool {
	return l.UserID == userID &&
		l.VehicleID == vehicleID &&
		l.FromDate.Equal(from) &&
		l.ToDate.Equal(to)
}
