package models

import "errors"

// Business-rule rejections. These are expected outcomes of contention and
// validation, returned to callers as typed failures.
var (
	ErrVehicleUnavailable = errors.New("vehicle is not available for the requested window")
	ErrLockExpired        = errors.New("soft lock has expired or was already used")
	ErrStaleQuote         = errors.New("quoted price no longer matches")
	ErrInvalidWindow      = errors.New("invalid reservation window")
	ErrInvalidQuote       = errors.New("hourly rate and vehicle value must be positive")
	ErrSoftLockNotFound   = errors.New("soft lock not found")
	ErrSoftLockMismatch   = errors.New("soft lock does not match the request")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotPending    = errors.New("order is not awaiting payment")
	ErrOrderExpired       = errors.New("order payment deadline has passed")
	ErrInvalidTransition  = errors.New("order status does not allow this action")
	ErrForbidden          = errors.New("not allowed to act on this resource")
	ErrAmountMismatch     = errors.New("paid amount does not match order")
	ErrInvalidSignature   = errors.New("invalid payment signature")
)

// IsBusinessError reports whether err is an expected business rejection
// rather than an infrastructure failure.
func IsBusinessError(err error) bool {
	for _, target := range []error{
		ErrVehicleUnavailable, ErrLockExpired, ErrStaleQuote, ErrInvalidWindow,
		ErrInvalidQuote, ErrSoftLockNotFound, ErrSoftLockMismatch, ErrOrderNotFound,
		ErrOrderNotPending, ErrOrderExpired, ErrInvalidTransition, ErrForbidden,
		ErrAmountMismatch, ErrInvalidSignature,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
