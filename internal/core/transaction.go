package core

import "fmt"

// Transaction is one round-up savings transaction. Instances are immutable
// after construction; rule adjustments produce derived values, never
// mutations.
type Transaction struct {
	Timestamp Instant
	Amount    float64
	Ceiling   float64
	Remanent  float64
}

// NewTransaction derives ceiling and remanent from the amount.
func NewTransaction(ts Instant, amount float64) Transaction {
	ceiling := NextMultipleOf100(amount)
	return Transaction{
		Timestamp: ts,
		Amount:    Round2(amount),
		Ceiling:   ceiling,
		Remanent:  Round2(ceiling - Round2(amount)),
	}
}

// Validate checks the structural invariants that hold for every built
// transaction regardless of where its ceiling/remanent came from.
func (t Transaction) Validate() error {
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: transaction has no timestamp", ErrMissingTimestamp)
	}
	if t.Amount < 0 {
		return fmt.Errorf("%w: amount cannot be negative", ErrAmountOutOfBounds)
	}
	if t.Amount >= MaxAmount {
		return fmt.Errorf("%w: amount must be < %d", ErrAmountOutOfBounds, MaxAmount)
	}
	if t.Ceiling < t.Amount {
		return fmt.Errorf("%w: ceiling cannot be lower than amount", ErrAmountOutOfBounds)
	}
	if t.Remanent < 0 {
		return fmt.Errorf("%w: remanent cannot be negative", ErrAmountOutOfBounds)
	}
	return nil
}
