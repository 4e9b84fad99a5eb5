package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vrental/booking-service/internal/models"
)

const orderColumns = `
	id, user_id, vehicle_id, from_date, to_date, status,
	hourly_rate, total_cost, deposit_amount, trust_score,
	soft_lock_token, cancel_reason, payment_transaction_id, paid_at,
	expires_at, created_at, updated_at`

// OrderRepository handles order database operations
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// ============================================================================
// ORDER CRUD OPERATIONS
// ============================================================================

// Create inserts a new order and sets its generated ID. The caller must hold
// the vehicle lock.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			user_id, vehicle_id, from_date, to_date, status,
			hourly_rate, total_cost, deposit_amount, trust_score,
			soft_lock_token, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING id`

	err := querier(ctx, r.db).QueryRowxContext(ctx, query,
		order.UserID, order.VehicleID, order.FromDate, order.ToDate, order.Status,
		order.HourlyRate, order.TotalCost, order.DepositAmount, order.TrustScore,
		order.SoftLockToken, order.ExpiresAt, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", mapWriteError(err))
	}
	return nil
}

// GetByID retrieves an order by ID. Returns nil when not found.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves an order and row-locks it for the enclosing
// transaction. Returns nil when not found.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) get(ctx context.Context, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, querier(ctx, r.db), &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// ListByUser returns a user's orders, newest first. An empty status lists all.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, status, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	orders := []models.Order{}
	if err := sqlx.SelectContext(ctx, querier(ctx, r.db), &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ============================================================================
// AVAILABILITY / LIFECYCLE
// ============================================================================

// HasActiveOverlap reports whether a pending, paid or in-progress order
// overlaps [from, to) on the vehicle.
func (r *OrderRepository) HasActiveOverlap(ctx context.Context, vehicleID int64, from, to time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE vehicle_id = $1
			  AND status IN ('pending', 'paid', 'in_progress')
			  AND from_date < $3
			  AND to_date > $2
		)`

	var exists bool
	if err := sqlx.GetContext(ctx, querier(ctx, r.db), &exists, query, vehicleID, from, to); err != nil {
		return false, fmt.Errorf("failed to check order overlap: %w", err)
	}
	return exists, nil
}

// Transition applies a conditional status change. It returns false without
// error when the order is not in one of the expected statuses (or the
// deadline condition does not hold), which lets racing writers detect that
// someone else won.
func (r *OrderRepository) Transition(ctx context.Context, id int64, t models.OrderTransition) (bool, error) {
	if len(t.From) == 0 {
		return false, fmt.Errorf("order transition to %s has no source status", t.To)
	}

	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	var paidAt *time.Time
	if t.To == models.OrderPaid {
		paidAt = &t.At
	}

	query := `
		UPDATE orders
		SET status = ?,
		    updated_at = ?,
		    cancel_reason = COALESCE(?, cancel_reason),
		    payment_transaction_id = COALESCE(?, payment_transaction_id),
		    paid_at = COALESCE(?, paid_at)
		WHERE id = ? AND status IN (?)`
	args := []interface{}{string(t.To), t.At, t.CancelReason, t.PaymentTransactionID, paidAt, id, from}
	if t.NotAfter != nil {
		query += ` AND expires_at >= ?`
		args = append(args, *t.NotAfter)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to build order transition: %w", err)
	}
	query = r.db.Rebind(query)

	result, err := querier(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", mapWriteError(err))
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListExpiredPending returns pending orders whose payment deadline passed
// before now, oldest first.
func (r *OrderRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	var orders []models.Order
	if err := sqlx.SelectContext(ctx, querier(ctx, r.db), &orders, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired orders: %w", err)
	}
	return orders, nil
}
