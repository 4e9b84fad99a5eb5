package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// REQUEST/RESPONSE STRUCTS
// ============================================================================

// PreviewRequest asks for a quote and a short-lived hold on a vehicle
type PreviewRequest struct {
	VehicleID    int64     `json:"vehicle_id" binding:"required,gt=0"`
	FromDate     time.Time `json:"from_date" binding:"required"`
	ToDate       time.Time `json:"to_date" binding:"required,gtfield=FromDate"`
	HourlyRate   float64   `json:"hourly_rate" binding:"required,gt=0"`
	VehicleValue float64   `json:"vehicle_value" binding:"required,gt=0"`
}

// PreviewResponse is the quote returned together with the soft lock token
type PreviewResponse struct {
	Token             string    `json:"token"`
	VehicleID         int64     `json:"vehicle_id"`
	FromDate          time.Time `json:"from_date"`
	ToDate            time.Time `json:"to_date"`
	TotalCost         float64   `json:"total_cost"`
	DepositAmount     float64   `json:"deposit_amount"`
	DepositPercentage float64   `json:"deposit_percentage"`
	TrustScore        int       `json:"trust_score"`
	ExpiresAt         time.Time `json:"expires_at"`
	TTLSeconds        int       `json:"ttl_seconds"` // Remaining TTL for countdown
}

// ConfirmRequest consumes a soft lock and creates a pending order
type ConfirmRequest struct {
	Token      string    `json:"token" binding:"required,len=32,hexadecimal"`
	VehicleID  int64     `json:"vehicle_id" binding:"required,gt=0"`
	FromDate   time.Time `json:"from_date" binding:"required"`
	ToDate     time.Time `json:"to_date" binding:"required"`
	HourlyRate float64   `json:"hourly_rate" binding:"required,gt=0"`
	TotalCost  float64   `json:"total_cost" binding:"money"`
}

// ConfirmResponse is returned after the order is created
type ConfirmResponse struct {
	OrderID   int64       `json:"order_id"`
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message"`
	ExpiresAt time.Time   `json:"expires_at"` // Payment deadline
}

// CancelRequest carries the optional cancellation reason
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// PaymentCallbackRequest is posted by the payment collaborator
type PaymentCallbackRequest struct {
	OrderID         int64   `json:"order_id" binding:"required,gt=0"`
	TransactionID   string  `json:"transaction_id" binding:"required,txn_id"`
	Amount          float64 `json:"amount" binding:"money"`
	Status          string  `json:"status" binding:"required,oneof=success failed"`
	GatewayResponse string  `json:"gateway_response" binding:"max=2000"`
	Signature       string  `json:"signature" binding:"required,hexadecimal"`

	// Filled by the handler from the HTTP request, for the audit trail
	ClientIP  string `json:"-"`
	UserAgent string `json:"-"`
}

// AvailabilityResponse answers a vehicle availability query
type AvailabilityResponse struct {
	VehicleID int64     `json:"vehicle_id"`
	FromDate  time.Time `json:"from_date"`
	ToDate    time.Time `json:"to_date"`
	Available bool      `json:"available"`
}

// Actor identifies who performs a state-changing action
type Actor struct {
	UserID  uuid.UUID
	IsStaff bool
}
