package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/clock"
	"github.com/vrental/booking-service/internal/models"
)

// AvailabilityService answers whether a vehicle is free for a window. It
// never writes and holds no cache; every call re-reads the stores.
type AvailabilityService struct {
	softLocks SoftLockStore
	orders    OrderStore
	clock     clock.Clock
	logger    *logrus.Logger
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(softLocks SoftLockStore, orders OrderStore, clk clock.Clock, logger *logrus.Logger) *AvailabilityService {
	return &AvailabilityService{
		softLocks: softLocks,
		orders:    orders,
		clock:     clk,
		logger:    logger,
	}
}

// Check reports whether [from, to) is free of live soft locks and of pending,
// paid or in-progress orders on the vehicle. Windows that only touch at a
// boundary do not conflict.
func (s *AvailabilityService) Check(ctx context.Context, vehicleID int64, from, to time.Time) (bool, error) {
	if !to.After(from) {
		return false, models.ErrInvalidWindow
	}

	locked, err := s.softLocks.HasActiveOverlap(ctx, vehicleID, from, to, s.clock.Now())
	if err != nil {
		return false, fmt.Errorf("availability: %w", err)
	}
	if locked {
		return false, nil
	}

	booked, err := s.orders.HasActiveOverlap(ctx, vehicleID, from, to)
	if err != nil {
		return false, fmt.Errorf("availability: %w", err)
	}
	return !booked, nil
}

// IsAvailable is Check that fails closed: a lookup error reports the vehicle
// as unavailable.
func (s *AvailabilityService) IsAvailable(ctx context.Context, vehicleID int64, from, to time.Time) bool {
	ok, err := s.Check(ctx, vehicleID, from, to)
	if err != nil {
		s.logger.WithError(err).WithField("vehicle_id", vehicleID).Warn("Availability lookup failed, reporting unavailable")
		return false
	}
	return ok
}
