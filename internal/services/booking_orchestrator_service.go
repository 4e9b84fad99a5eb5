package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/clock"
	"github.com/vrental/booking-service/internal/models"
	"github.com/vrental/booking-service/internal/utils"
)

// BookingOrchestratorConfig holds configuration for the orchestrator
type BookingOrchestratorConfig struct {
	SoftLockTTL       time.Duration // How long a preview quote holds the vehicle (default 5 min)
	PaymentTTL        time.Duration // How long a pending order waits for payment (default 5 min)
	MaxRentalDuration time.Duration // Longest window a single order may cover
	CostTolerance     float64       // Allowed drift between quoted and confirmed amounts
}

// DefaultOrchestratorConfig returns default configuration
func DefaultOrchestratorConfig() BookingOrchestratorConfig {
	return BookingOrchestratorConfig{
		SoftLockTTL:       5 * time.Minute,
		PaymentTTL:        5 * time.Minute,
		MaxRentalDuration: 30 * 24 * time.Hour,
		CostTolerance:     0.01,
	}
}

// BookingOrchestratorService runs the Preview → Confirm → Pay lifecycle.
// Every write on a vehicle's windows happens under that vehicle's lock, so
// same-vehicle calls are linearized while other vehicles proceed in parallel.
type BookingOrchestratorService struct {
	tx           Transactor
	softLocks    SoftLockStore
	orders       OrderStore
	availability *AvailabilityService
	trust        TrustScoreProvider
	notifier     Notifier
	clock        clock.Clock
	config       BookingOrchestratorConfig
	logger       *logrus.Logger
}

// NewBookingOrchestratorService creates a new orchestrator service
func NewBookingOrchestratorService(
	tx Transactor,
	softLocks SoftLockStore,
	orders OrderStore,
	availability *AvailabilityService,
	trust TrustScoreProvider,
	notifier Notifier,
	clk clock.Clock,
	config BookingOrchestratorConfig,
	logger *logrus.Logger,
) *BookingOrchestratorService {
	return &BookingOrchestratorService{
		tx:           tx,
		softLocks:    softLocks,
		orders:       orders,
		availability: availability,
		trust:        trust,
		notifier:     notifier,
		clock:        clk,
		config:       config,
		logger:       logger,
	}
}

// ============================================================================
// PREVIEW (soft lock)
// ============================================================================

// Preview quotes the rental and holds the vehicle window for SoftLockTTL
func (s *BookingOrchestratorService) Preview(
	ctx context.Context,
	userID uuid.UUID,
	req *models.PreviewRequest,
) (*models.PreviewResponse, error) {
	from, to := normalizeWindow(req.FromDate, req.ToDate)
	if err := s.validateWindow(from, to); err != nil {
		return nil, err
	}
	if !isPositiveAmount(req.HourlyRate) || !isPositiveAmount(req.VehicleValue) {
		return nil, models.ErrInvalidQuote
	}

	// Fetched before the vehicle lock so a slow user service never holds it
	score := s.trustScore(ctx, userID)
	percentage := DepositPercentage(score)

	token, err := generateSoftLockToken()
	if err != nil {
		return nil, err
	}

	lock := &models.SoftLock{
		Token:             token,
		VehicleID:         req.VehicleID,
		UserID:            userID,
		FromDate:          from,
		ToDate:            to,
		Status:            models.SoftLockActive,
		HourlyRate:        req.HourlyRate,
		TotalCost:         CalculateTotalCost(from, to, req.HourlyRate),
		DepositAmount:     CalculateDeposit(req.VehicleValue, percentage),
		DepositPercentage: percentage,
		TrustScore:        score,
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockVehicle(ctx, req.VehicleID); err != nil {
			return err
		}

		now := s.clock.Now()

		// Stale holds still occupy the exclusion constraint until reaped
		reclaimed, err := s.softLocks.ExpireStaleForVehicle(ctx, req.VehicleID, now)
		if err != nil {
			return err
		}
		if reclaimed > 0 {
			s.logger.WithFields(logrus.Fields{
				"vehicle_id": req.VehicleID,
				"count":      reclaimed,
			}).Debug("Reclaimed stale soft locks")
		}

		available, err := s.availability.Check(ctx, req.VehicleID, from, to)
		if err != nil {
			return err
		}
		if !available {
			return models.ErrVehicleUnavailable
		}

		lock.ExpiresAt = now.Add(s.config.SoftLockTTL)
		lock.CreatedAt = now
		lock.UpdatedAt = now
		return s.softLocks.Create(ctx, lock)
	})
	if err != nil {
		s.logOutcome(err, "Preview rejected", logrus.Fields{
			"vehicle_id": req.VehicleID,
			"user_id":    userID,
		})
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"token":      lock.Token,
		"vehicle_id": lock.VehicleID,
		"user_id":    userID,
		"total_cost": lock.TotalCost,
		"expires_at": lock.ExpiresAt,
	}).Info("Soft lock created")

	return &models.PreviewResponse{
		Token:             lock.Token,
		VehicleID:         lock.VehicleID,
		FromDate:          lock.FromDate,
		ToDate:            lock.ToDate,
		TotalCost:         lock.TotalCost,
		DepositAmount:     lock.DepositAmount,
		DepositPercentage: lock.DepositPercentage,
		TrustScore:        lock.TrustScore,
		ExpiresAt:         lock.ExpiresAt,
		TTLSeconds:        int(s.config.SoftLockTTL.Seconds()),
	}, nil
}

// ============================================================================
// CONFIRM (soft lock → pending order)
// ============================================================================

// Confirm consumes an active soft lock and creates a pending order. A lock is
// still confirmable at exactly its expires_at.
func (s *BookingOrchestratorService) Confirm(
	ctx context.Context,
	userID uuid.UUID,
	req *models.ConfirmRequest,
) (*models.ConfirmResponse, error) {
	from, to := normalizeWindow(req.FromDate, req.ToDate)
	if !to.After(from) {
		return nil, models.ErrInvalidWindow
	}

	score := s.trustScore(ctx, userID)
	token := strings.ToLower(req.Token)

	var order *models.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockVehicle(ctx, req.VehicleID); err != nil {
			return err
		}

		lock, err := s.softLocks.GetByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if lock == nil {
			return models.ErrSoftLockNotFound
		}
		if !lock.MatchesRequest(userID, req.VehicleID, from, to) {
			return models.ErrSoftLockMismatch
		}

		now := s.clock.Now()
		if lock.Status != models.SoftLockActive {
			return fmt.Errorf("%w: soft lock is already %s", models.ErrLockExpired, lock.Status)
		}
		if lock.IsExpiredAt(now) {
			return models.ErrLockExpired
		}
		if !amountsMatch(req.HourlyRate, lock.HourlyRate, s.config.CostTolerance) ||
			!amountsMatch(req.TotalCost, lock.TotalCost, s.config.CostTolerance) {
			return models.ErrStaleQuote
		}

		// The lock excludes other soft locks only; re-check committed orders
		booked, err := s.orders.HasActiveOverlap(ctx, req.VehicleID, from, to)
		if err != nil {
			return err
		}
		if booked {
			return models.ErrVehicleUnavailable
		}

		order = &models.Order{
			UserID:        userID,
			VehicleID:     lock.VehicleID,
			FromDate:      lock.FromDate,
			ToDate:        lock.ToDate,
			Status:        models.OrderPending,
			HourlyRate:    lock.HourlyRate,
			TotalCost:     lock.TotalCost,
			DepositAmount: lock.DepositAmount,
			TrustScore:    score,
			SoftLockToken: &lock.Token,
			ExpiresAt:     now.Add(s.config.PaymentTTL),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}

		consumed, err := s.softLocks.Transition(ctx, lock.Token, models.SoftLockActive, models.SoftLockConfirmed, nil, now)
		if err != nil {
			return err
		}
		if !consumed {
			return fmt.Errorf("%w: soft lock was consumed concurrently", models.ErrLockExpired)
		}
		return nil
	})
	if err != nil {
		s.logOutcome(err, "Confirm rejected", logrus.Fields{
			"token":      token,
			"vehicle_id": req.VehicleID,
			"user_id":    userID,
		})
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"token":      token,
		"vehicle_id": order.VehicleID,
		"user_id":    userID,
		"expires_at": order.ExpiresAt,
	}).Info("Order created from soft lock")

	return &models.ConfirmResponse{
		OrderID:   order.ID,
		Status:    order.Status,
		Message:   "Order created. Complete payment before the deadline.",
		ExpiresAt: order.ExpiresAt,
	}, nil
}

// ============================================================================
// CANCEL
// ============================================================================

// CancelSoftLock releases an active soft lock. Cancelling a lock that is
// already terminal succeeds without changing it.
func (s *BookingOrchestratorService) CancelSoftLock(
	ctx context.Context,
	actor models.Actor,
	token string,
	reason string,
) (*models.SoftLock, error) {
	token = strings.ToLower(token)

	var result *models.SoftLock
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		lock, err := s.softLocks.GetByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if lock == nil {
			return models.ErrSoftLockNotFound
		}
		if lock.UserID != actor.UserID && !actor.IsStaff {
			return models.ErrForbidden
		}
		result = lock
		if lock.Status.IsTerminal() {
			return nil
		}

		now := s.clock.Now()
		changed, err := s.softLocks.Transition(ctx, token, models.SoftLockActive, models.SoftLockCancelled, optionalString(reason), now)
		if err != nil {
			return err
		}
		if changed {
			lock.Status = models.SoftLockCancelled
			lock.CancelReason = optionalString(reason)
			lock.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"token":  token,
		"status": result.Status,
	}).Info("Soft lock cancel processed")
	return result, nil
}

// CancelOrder cancels a pending or paid order. Staff may also cancel an
// in-progress rental. Cancelling a terminal order succeeds without changing it.
func (s *BookingOrchestratorService) CancelOrder(
	ctx context.Context,
	actor models.Actor,
	orderID int64,
	reason string,
) (*models.Order, error) {
	var (
		result   *models.Order
		previous models.OrderStatus
		changed  bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return models.ErrOrderNotFound
		}
		if order.UserID != actor.UserID && !actor.IsStaff {
			return models.ErrForbidden
		}
		result = order
		if order.Status.IsTerminal() {
			return nil
		}
		if order.Status == models.OrderInProgress && !actor.IsStaff {
			return models.ErrInvalidTransition
		}

		now := s.clock.Now()
		changed, err = s.orders.Transition(ctx, orderID, models.OrderTransition{
			From:         models.NonTerminalOrderStatuses,
			To:           models.OrderCancelled,
			At:           now,
			CancelReason: optionalString(reason),
		})
		if err != nil {
			return err
		}
		if changed {
			previous = order.Status
			order.Status = models.OrderCancelled
			order.CancelReason = optionalString(reason)
			order.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.WithFields(logrus.Fields{
			"order_id":        orderID,
			"previous_status": previous,
			"by_staff":        actor.IsStaff,
		}).Info("Order cancelled")
		s.notify(ctx, models.NotificationOrderStatusChanged, result, map[string]any{
			"previous_status": previous,
			"reason":          reason,
		})
	}
	return result, nil
}

// ============================================================================
// PAYMENT CALLBACK CONTRACT
// ============================================================================

// ConfirmPayment moves a pending order to paid. It fails when the order is
// not pending or its payment deadline has passed. A repeated callback for the
// transaction that already paid the order is acknowledged without changes.
func (s *BookingOrchestratorService) ConfirmPayment(
	ctx context.Context,
	orderID int64,
	transactionID string,
	gatewayResponse string,
) (*models.Order, error) {
	var (
		result  *models.Order
		changed bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return models.ErrOrderNotFound
		}
		result = order

		if order.Status == models.OrderPaid && order.PaymentTransactionID != nil &&
			*order.PaymentTransactionID == transactionID {
			return nil
		}
		if order.Status != models.OrderPending {
			return models.ErrOrderNotPending
		}

		now := s.clock.Now()
		if order.IsPaymentOverdueAt(now) {
			return models.ErrOrderExpired
		}

		changed, err = s.orders.Transition(ctx, orderID, models.OrderTransition{
			From:                 []models.OrderStatus{models.OrderPending},
			To:                   models.OrderPaid,
			At:                   now,
			PaymentTransactionID: &transactionID,
			NotAfter:             &now,
		})
		if err != nil {
			return err
		}
		if !changed {
			return models.ErrOrderNotPending
		}
		order.Status = models.OrderPaid
		order.PaymentTransactionID = &transactionID
		order.PaidAt = &now
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.logOutcome(err, "Payment confirmation rejected", logrus.Fields{
			"order_id":       orderID,
			"transaction_id": transactionID,
		})
		return nil, err
	}

	if changed {
		s.logger.WithFields(logrus.Fields{
			"order_id":       orderID,
			"transaction_id": transactionID,
		}).Info("Order paid")
		s.notify(ctx, models.NotificationPaymentSuccess, result, map[string]any{
			"transaction_id":   transactionID,
			"deposit_amount":   result.DepositAmount,
			"gateway_response": gatewayResponse,
		})
	}
	return result, nil
}

// FailPayment records a failed payment attempt. The order stays pending so
// the user can retry until the deadline.
func (s *BookingOrchestratorService) FailPayment(
	ctx context.Context,
	orderID int64,
	transactionID string,
	reason string,
) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, models.ErrOrderNotFound
	}
	if order.Status != models.OrderPending {
		return nil, models.ErrOrderNotPending
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":       orderID,
		"transaction_id": transactionID,
		"reason":         reason,
	}).Warn("Payment failed")
	s.notify(ctx, models.NotificationPaymentFailed, order, map[string]any{
		"transaction_id": transactionID,
		"reason":         reason,
		"expires_at":     order.ExpiresAt,
	})
	return order, nil
}

// ============================================================================
// RENTAL PROGRESS (staff)
// ============================================================================

// StartRental marks a paid order as picked up
func (s *BookingOrchestratorService) StartRental(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	return s.advance(ctx, actor, orderID, models.OrderPaid, models.OrderInProgress)
}

// CompleteRental marks an in-progress order as returned
func (s *BookingOrchestratorService) CompleteRental(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	return s.advance(ctx, actor, orderID, models.OrderInProgress, models.OrderCompleted)
}

func (s *BookingOrchestratorService) advance(
	ctx context.Context,
	actor models.Actor,
	orderID int64,
	from, to models.OrderStatus,
) (*models.Order, error) {
	if !actor.IsStaff {
		return nil, models.ErrForbidden
	}

	var (
		result  *models.Order
		changed bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return models.ErrOrderNotFound
		}
		result = order
		if order.Status == to {
			return nil
		}
		if order.Status != from {
			return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
		}

		now := s.clock.Now()
		changed, err = s.orders.Transition(ctx, orderID, models.OrderTransition{
			From: []models.OrderStatus{from},
			To:   to,
			At:   now,
		})
		if err != nil {
			return err
		}
		if !changed {
			return models.ErrInvalidTransition
		}
		order.Status = to
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"from":     from,
			"to":       to,
		}).Info("Order status changed")
		s.notify(ctx, models.NotificationOrderStatusChanged, result, map[string]any{
			"previous_status": from,
		})
	}
	return result, nil
}

// ============================================================================
// READS
// ============================================================================

// GetOrder returns an order visible to the actor
func (s *BookingOrchestratorService) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, models.ErrOrderNotFound
	}
	if order.UserID != actor.UserID && !actor.IsStaff {
		return nil, models.ErrForbidden
	}
	return order, nil
}

// ListUserOrders returns the user's orders, newest first
func (s *BookingOrchestratorService) ListUserOrders(
	ctx context.Context,
	userID uuid.UUID,
	status models.OrderStatus,
	limit, offset int,
) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListByUser(ctx, userID, status, limit, offset)
}

// GetSoftLock returns a soft lock visible to the actor
func (s *BookingOrchestratorService) GetSoftLock(ctx context.Context, actor models.Actor, token string) (*models.SoftLock, error) {
	lock, err := s.softLocks.GetByToken(ctx, strings.ToLower(token))
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, models.ErrSoftLockNotFound
	}
	if lock.UserID != actor.UserID && !actor.IsStaff {
		return nil, models.ErrForbidden
	}
	return lock, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *BookingOrchestratorService) validateWindow(from, to time.Time) error {
	if !to.After(from) {
		return fmt.Errorf("%w: to_date must be after from_date", models.ErrInvalidWindow)
	}
	if from.Before(s.clock.Now()) {
		return fmt.Errorf("%w: from_date is in the past", models.ErrInvalidWindow)
	}
	if s.config.MaxRentalDuration > 0 && to.Sub(from) > s.config.MaxRentalDuration {
		return fmt.Errorf("%w: window exceeds %s", models.ErrInvalidWindow, s.config.MaxRentalDuration)
	}
	return nil
}

// trustScore never fails the booking: an unreachable provider yields score 0,
// which selects the highest deposit tier.
func (s *BookingOrchestratorService) trustScore(ctx context.Context, userID uuid.UUID) int {
	score, err := s.trust.GetScore(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Trust score unavailable, using lowest score")
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (s *BookingOrchestratorService) notify(ctx context.Context, kind models.NotificationKind, order *models.Order, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(context.WithoutCancel(ctx), models.NewOrderNotification(kind, order, payload, s.clock.Now()))
}

// logOutcome logs business rejections at info and infrastructure failures at error
func (s *BookingOrchestratorService) logOutcome(err error, msg string, fields logrus.Fields) {
	entry := s.logger.WithFields(fields).WithError(err)
	if models.IsBusinessError(err) {
		entry.Info(msg)
		return
	}
	entry.Error(msg)
}

// generateSoftLockToken returns 128 random bits as 32 hex characters
func generateSoftLockToken() (string, error) {
	token, err := utils.GenerateSecret(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate soft lock token: %w", err)
	}
	return token, nil
}

// normalizeWindow matches the precision timestamptz stores, so a window read
// back from the store compares equal to the one the client was quoted
func normalizeWindow(from, to time.Time) (time.Time, time.Time) {
	return from.UTC().Truncate(time.Microsecond), to.UTC().Truncate(time.Microsecond)
}

func isPositiveAmount(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
