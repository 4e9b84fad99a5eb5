package services

import (
	"math"
	"time"
)

// Deposit tiers by trust score. Lower trust secures a larger share of the
// vehicle value.
const (
	HighTrustThreshold   = 80
	MediumTrustThreshold = 50

	HighTrustDeposit   = 0.30
	MediumTrustDeposit = 0.40
	LowTrustDeposit    = 0.50
)

// RentalHours returns the fractional number of hours in [from, to)
func RentalHours(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}

// CalculateTotalCost prices the window at hourlyRate, rounded to cents
func CalculateTotalCost(from, to time.Time, hourlyRate float64) float64 {
	return roundMoney(RentalHours(from, to) * hourlyRate)
}

// DepositPercentage maps a trust score to the deposit share of vehicle value
func DepositPercentage(trustScore int) float64 {
	switch {
	case trustScore >= HighTrustThreshold:
		return HighTrustDeposit
	case trustScore >= MediumTrustThreshold:
		return MediumTrustDeposit
	default:
		return LowTrustDeposit
	}
}

// CalculateDeposit returns the deposit owed for a vehicle of the given value
func CalculateDeposit(vehicleValue, percentage float64) float64 {
	return roundMoney(vehicleValue * percentage)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// amountsMatch reports whether two money amounts agree within tolerance
func amountsMatch(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
