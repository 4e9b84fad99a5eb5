package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/vrental/booking-service/internal/models"
)

// SQLSTATE codes mapped to business errors
const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

type txKey struct{}

// TxManager runs units of work inside one database transaction and
// serializes competing writers per vehicle.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager creates a new TxManager
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx runs fn inside a READ COMMITTED transaction. Repositories called with
// the context passed to fn join the transaction. Nested calls reuse the outer
// transaction.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockVehicle takes a transaction-scoped advisory lock on the vehicle. Every
// check-then-write on a vehicle's windows goes through this lock, so two
// previews or confirms for the same vehicle cannot interleave. The lock is
// released on commit or rollback.
func (m *TxManager) LockVehicle(ctx context.Context, vehicleID int64) error {
	tx := txFromContext(ctx)
	if tx == nil {
		return errors.New("vehicle lock requires an open transaction")
	}
	_, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		vehicleLockKey(vehicleID))
	if err != nil {
		return fmt.Errorf("failed to lock vehicle %d: %w", vehicleID, err)
	}
	return nil
}

func vehicleLockKey(vehicleID int64) string {
	return fmt.Sprintf("vehicle:%d", vehicleID)
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// querier returns the transaction bound to ctx, or the pool
func querier(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

// mapWriteError turns overlap constraint violations into ErrVehicleUnavailable.
// The exclusion constraints only fire if a writer skipped LockVehicle.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqExclusionViolation {
		return models.ErrVehicleUnavailable
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
