package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vrental/booking-service/internal/models"
)

// Transactor runs a unit of work in one transaction and serializes writers
// per vehicle. Implemented by database.TxManager.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockVehicle(ctx context.Context, vehicleID int64) error
}

// SoftLockStore persists soft locks. Implemented by database.SoftLockRepository.
type SoftLockStore interface {
	Create(ctx context.Context, lock *models.SoftLock) error
	GetByToken(ctx context.Context, token string) (*models.SoftLock, error)
	GetByTokenForUpdate(ctx context.Context, token string) (*models.SoftLock, error)
	HasActiveOverlap(ctx context.Context, vehicleID int64, from, to, now time.Time) (bool, error)
	ExpireStaleForVehicle(ctx context.Context, vehicleID int64, now time.Time) (int, error)
	Transition(ctx context.Context, token string, from, to models.SoftLockStatus, reason *string, at time.Time) (bool, error)
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.SoftLock, error)
}

// OrderStore persists orders. Implemented by database.OrderRepository.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status models.OrderStatus, limit, offset int) ([]models.Order, error)
	HasActiveOverlap(ctx context.Context, vehicleID int64, from, to time.Time) (bool, error)
	Transition(ctx context.Context, id int64, t models.OrderTransition) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
}

// Notifier delivers lifecycle notifications. Delivery is best effort and
// never fails the state change that triggered it.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n models.Notification)

// Notify calls f(ctx, n)
func (f NotifierFunc) Notify(ctx context.Context, n models.Notification) { f(ctx, n) }

// MultiNotifier fans a notification out to several notifiers in order
type MultiNotifier []Notifier

// Notify forwards n to every notifier
func (m MultiNotifier) Notify(ctx context.Context, n models.Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}
