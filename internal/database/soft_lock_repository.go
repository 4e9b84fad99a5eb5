package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vrental/booking-service/internal/models"
)

const softLockColumns = `
	token, vehicle_id, user_id, from_date, to_date, status,
	hourly_rate, total_cost, deposit_amount, deposit_percentage, trust_score,
	cancel_reason, expires_at, created_at, updated_at`

// SoftLockRepository handles soft lock database operations
type SoftLockRepository struct {
	db *sqlx.DB
}

// NewSoftLockRepository creates a new SoftLockRepository
func NewSoftLockRepository(db *sqlx.DB) *SoftLockRepository {
	return &SoftLockRepository{db: db}
}

// ============================================================================
// SOFT LOCK CRUD OPERATIONS
// ============================================================================

// Create inserts a new soft lock. The caller must hold the vehicle lock.
func (r *SoftLockRepository) Create(ctx context.Context, lock *models.SoftLock) error {
	query := `
		INSERT INTO soft_locks (` + softLockColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err := querier(ctx, r.db).ExecContext(ctx, query,
		lock.Token, lock.VehicleID, lock.UserID, lock.FromDate, lock.ToDate, lock.Status,
		lock.HourlyRate, lock.TotalCost, lock.DepositAmount, lock.DepositPercentage, lock.TrustScore,
		lock.CancelReason, lock.ExpiresAt, lock.CreatedAt, lock.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("soft lock token collision: %w", err)
		}
		return fmt.Errorf("failed to create soft lock: %w", mapWriteError(err))
	}
	return nil
}

// GetByToken retrieves a soft lock by token. Returns nil when not found.
func (r *SoftLockRepository) GetByToken(ctx context.Context, token string) (*models.SoftLock, error) {
	return r.get(ctx, `SELECT `+softLockColumns+` FROM soft_locks WHERE token = $1`, token)
}

// GetByTokenForUpdate retrieves a soft lock and row-locks it for the
// enclosing transaction. Returns nil when not found.
func (r *SoftLockRepository) GetByTokenForUpdate(ctx context.Context, token string) (*models.SoftLock, error) {
	return r.get(ctx, `SELECT `+softLockColumns+` FROM soft_locks WHERE token = $1 FOR UPDATE`, token)
}

func (r *SoftLockRepository) get(ctx context.Context, query string, args ...interface{}) (*models.SoftLock, error) {
	var lock models.SoftLock
	err := sqlx.GetContext(ctx, querier(ctx, r.db), &lock, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get soft lock: %w", err)
	}
	return &lock, nil
}

// ============================================================================
// AVAILABILITY / LIFECYCLE
// ============================================================================

// HasActiveOverlap reports whether an unexpired active soft lock overlaps
// [from, to) on the vehicle. A lock is still live at exactly expires_at.
func (r *SoftLockRepository) HasActiveOverlap(ctx context.Context, vehicleID int64, from, to, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM soft_locks
			WHERE vehicle_id = $1
			  AND status = 'active'
			  AND expires_at >= $4
			  AND from_date < $3
			  AND to_date > $2
		)`

	var exists bool
	if err := sqlx.GetContext(ctx, querier(ctx, r.db), &exists, query, vehicleID, from, to, now); err != nil {
		return false, fmt.Errorf("failed to check soft lock overlap: %w", err)
	}
	return exists, nil
}

// ExpireStaleForVehicle marks the vehicle's active locks whose TTL passed
// before now as expired, so they stop occupying the exclusion constraint.
func (r *SoftLockRepository) ExpireStaleForVehicle(ctx context.Context, vehicleID int64, now time.Time) (int, error) {
	query := `
		UPDATE soft_locks
		SET status = 'expired', updated_at = $2
		WHERE vehicle_id = $1 AND status = 'active' AND expires_at < $2`

	result, err := querier(ctx, r.db).ExecContext(ctx, query, vehicleID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale soft locks: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// Transition moves a soft lock from one status to another. It returns false
// without error when the lock is no longer in the expected status.
func (r *SoftLockRepository) Transition(ctx context.Context, token string, from, to models.SoftLockStatus, reason *string, at time.Time) (bool, error) {
	query := `
		UPDATE soft_locks
		SET status = $3, cancel_reason = COALESCE($4, cancel_reason), updated_at = $5
		WHERE token = $1 AND status = $2`

	result, err := querier(ctx, r.db).ExecContext(ctx, query, token, from, to, reason, at)
	if err != nil {
		return false, fmt.Errorf("failed to update soft lock status: %w", mapWriteError(err))
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListExpiredActive returns active locks whose TTL passed before now, oldest first
func (r *SoftLockRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.SoftLock, error) {
	query := `SELECT ` + softLockColumns + `
		FROM soft_locks
		WHERE status = 'active' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	var locks []models.SoftLock
	if err := sqlx.SelectContext(ctx, querier(ctx, r.db), &locks, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired soft locks: %w", err)
	}
	return locks, nil
}
