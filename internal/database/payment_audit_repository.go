package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vrental/booking-service/internal/models"
)

// PaymentAuditRepository stores the payment callback audit trail
type PaymentAuditRepository struct {
	db *sqlx.DB
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db}
}

const paymentAuditColumns = `
	id, order_id, transaction_id, payment_status,
	expected_amount, received_amount, currency, amounts_match,
	signature_valid, is_duplicate, outcome, error_message,
	ip_address, user_agent, processing_time_ms, created_at`

// Log appends an audit entry. It never joins the caller's transaction: an
// audit row survives the rollback of the change it describes.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	query := `
		INSERT INTO payment_audits (` + paymentAuditColumns + `
		) VALUES (
			:id, :order_id, :transaction_id, :payment_status,
			:expected_amount, :received_amount, :currency, :amounts_match,
			:signature_valid, :is_duplicate, :outcome, :error_message,
			:ip_address, :user_agent, :processing_time_ms, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, audit); err != nil {
		return fmt.Errorf("failed to log payment audit: %w", err)
	}
	return nil
}

// ListByOrder returns every callback received for an order, newest first
func (r *PaymentAuditRepository) ListByOrder(ctx context.Context, orderID int64) ([]models.PaymentAudit, error) {
	query := `SELECT ` + paymentAuditColumns + `
		FROM payment_audits
		WHERE order_id = $1
		ORDER BY created_at DESC`

	var audits []models.PaymentAudit
	if err := r.db.SelectContext(ctx, &audits, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return audits, nil
}

// ListAmountMismatches returns recent callbacks whose amount did not match
func (r *PaymentAuditRepository) ListAmountMismatches(ctx context.Context, limit int) ([]models.PaymentAudit, error) {
	query := `SELECT ` + paymentAuditColumns + `
		FROM payment_audits
		WHERE amounts_match = FALSE
		ORDER BY created_at DESC
		LIMIT $1`

	var audits []models.PaymentAudit
	if err := r.db.SelectContext(ctx, &audits, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list amount mismatches: %w", err)
	}
	return audits, nil
}
