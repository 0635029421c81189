// Package core holds the request-scoped value types of the round-up savings
// engine: instants, currency amounts, transactions, and rule periods.
//
// This file contains the money helpers. Amounts are float64 rounded to
// currency units (2 decimals); sub-cent precision is out of scope.
package core

import "math"

// MaxAmount is the exclusive upper bound for any single currency value the
// engine accepts (transaction amounts and period values alike).
const MaxAmount = 500000

// Round2 rounds a currency value to 2 decimals, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NextMultipleOf100 returns the smallest multiple of 100 at or above amount.
//
// Examples:
//
//	NextMultipleOf100(37.50) -> 100
//	NextMultipleOf100(100)   -> 100
//	NextMultipleOf100(620)   -> 700
func NextMultipleOf100(amount float64) float64 {
	// Round first so float noise just below a boundary does not bump the
	// result to the next multiple.
	return math.Ceil(Round2(amount)/100) * 100
}

// RemanentFor returns the round-up residual for amount: the gap between the
// amount and its ceiling.
func RemanentFor(amount float64) float64 {
	return Round2(NextMultipleOf100(amount) - amount)
}
