package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentAuditOutcome records what a payment callback did
type PaymentAuditOutcome string

const (
	PaymentAuditApplied  PaymentAuditOutcome = "applied"  // Order updated (or duplicate acknowledged)
	PaymentAuditRejected PaymentAuditOutcome = "rejected" // Business rule refused the callback
	PaymentAuditError    PaymentAuditOutcome = "error"    // Infrastructure failure, gateway should retry
)

// PaymentAudit is an append-only record of one payment callback
type PaymentAudit struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OrderID       int64     `json:"order_id" db:"order_id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	PaymentStatus string    `json:"payment_status" db:"payment_status"`

	// Amount tracking
	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount float64  `json:"received_amount" db:"received_amount"`
	Currency       string   `json:"currency" db:"currency"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	SignatureValid bool                `json:"signature_valid" db:"signature_valid"`
	IsDuplicate    bool                `json:"is_duplicate" db:"is_duplicate"`
	Outcome        PaymentAuditOutcome `json:"outcome" db:"outcome"`
	ErrorMessage   *string             `json:"error_message,omitempty" db:"error_message"`

	// Metadata
	IPAddress        *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent        *string `json:"user_agent,omitempty" db:"user_agent"`
	ProcessingTimeMs int     `json:"processing_time_ms" db:"processing_time_ms"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit starts an audit entry for a received callback
func NewPaymentAudit(req *PaymentCallbackRequest, currency string) *PaymentAudit {
	pa := &PaymentAudit{
		ID:             uuid.New(),
		OrderID:        req.OrderID,
		TransactionID:  req.TransactionID,
		PaymentStatus:  strings.ToLower(req.Status),
		ReceivedAmount: req.Amount,
		Currency:       currency,
		CreatedAt:      time.Now(),
	}
	if req.ClientIP != "" {
		pa.IPAddress = &req.ClientIP
	}
	if req.UserAgent != "" {
		pa.UserAgent = &req.UserAgent
	}
	return pa
}

// SetExpected records the amount due and whether the callback matches it
func (pa *PaymentAudit) SetExpected(expected, tolerance float64) bool {
	match := math.Abs(expected-pa.ReceivedAmount) <= tolerance
	pa.ExpectedAmount = &expected
	pa.AmountsMatch = &match
	return match
}

// Finish sets the outcome from the processing error and the elapsed time
func (pa *PaymentAudit) Finish(err error, startTime time.Time) {
	pa.ProcessingTimeMs = int(time.Since(startTime).Milliseconds())
	switch {
	case err == nil:
		pa.Outcome = PaymentAuditApplied
	case IsBusinessError(err):
		pa.Outcome = PaymentAuditRejected
	default:
		pa.Outcome = PaymentAuditError
	}
	if err != nil {
		msg := err.Error()
		pa.ErrorMessage = &msg
	}
}
