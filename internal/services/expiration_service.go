package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/clock"
	"github.com/vrental/booking-service/internal/models"
)

// SoftLockReaper expires active soft locks whose TTL has passed. Lock expiry
// is internal bookkeeping, so nobody is notified.
type SoftLockReaper struct {
	softLocks SoftLockStore
	clock     clock.Clock
	batchSize int
	logger    *logrus.Logger
}

// NewSoftLockReaper creates a new SoftLockReaper
func NewSoftLockReaper(softLocks SoftLockStore, clk clock.Clock, batchSize int, logger *logrus.Logger) *SoftLockReaper {
	return &SoftLockReaper{
		softLocks: softLocks,
		clock:     clk,
		batchSize: batchSize,
		logger:    logger,
	}
}

// RunOnce runs a single reaping pass and returns how many locks it expired.
// A failed row is logged and skipped; only a failed bulk read aborts the pass.
func (r *SoftLockReaper) RunOnce(ctx context.Context) (int, error) {
	now := r.clock.Now()

	locks, err := r.softLocks.ListExpiredActive(ctx, now, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load expired soft locks: %w", err)
	}
	if len(locks) == 0 {
		return 0, nil
	}

	expired := 0
	for _, lock := range locks {
		if ctx.Err() != nil {
			break
		}
		changed, err := r.softLocks.Transition(ctx, lock.Token, models.SoftLockActive, models.SoftLockExpired, nil, now)
		if err != nil {
			r.logger.WithError(err).WithField("token", lock.Token).Error("Failed to expire soft lock")
			continue
		}
		if changed {
			expired++
		}
	}

	r.logger.WithFields(logrus.Fields{
		"candidates": len(locks),
		"expired":    expired,
	}).Info("Soft lock reaper pass finished")
	return expired, nil
}

// OrderExpirer expires pending orders whose payment deadline has passed and
// tells the owner.
type OrderExpirer struct {
	orders    OrderStore
	notifier  Notifier
	clock     clock.Clock
	batchSize int
	logger    *logrus.Logger
}

// NewOrderExpirer creates a new OrderExpirer
func NewOrderExpirer(orders OrderStore, notifier Notifier, clk clock.Clock, batchSize int, logger *logrus.Logger) *OrderExpirer {
	return &OrderExpirer{
		orders:    orders,
		notifier:  notifier,
		clock:     clk,
		batchSize: batchSize,
		logger:    logger,
	}
}

// RunOnce runs a single expiry pass and returns how many orders it expired.
// An order that was paid or cancelled meanwhile is left alone and produces no
// notification.
func (e *OrderExpirer) RunOnce(ctx context.Context) (int, error) {
	now := e.clock.Now()

	orders, err := e.orders.ListExpiredPending(ctx, now, e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load expired orders: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	reason := models.ExpiredOrderReason
	expired := 0
	for i := range orders {
		if ctx.Err() != nil {
			break
		}
		order := &orders[i]

		changed, err := e.orders.Transition(ctx, order.ID, models.OrderTransition{
			From:         []models.OrderStatus{models.OrderPending},
			To:           models.OrderExpired,
			At:           now,
			CancelReason: &reason,
		})
		if err != nil {
			e.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to expire order")
			continue
		}
		if !changed {
			continue
		}
		expired++

		order.Status = models.OrderExpired
		order.CancelReason = &reason
		order.UpdatedAt = now
		if e.notifier != nil {
			e.notifier.Notify(ctx, models.NewOrderNotification(models.NotificationOrderExpired, order, map[string]any{
				"reason": reason,
			}, now))
		}
		e.logger.WithFields(logrus.Fields{
			"order_id":   order.ID,
			"user_id":    order.UserID,
			"vehicle_id": order.VehicleID,
		}).Info("Order expired, payment not received in time")
	}

	e.logger.WithFields(logrus.Fields{
		"candidates": len(orders),
		"expired":    expired,
	}).Info("Order expirer pass finished")
	return expired, nil
}
