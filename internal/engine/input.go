// Package engine evaluates round-up savings transactions against temporal
// override/extra/aggregate rules and projects investment returns.
//
// Every entry point is a pure function over already-deserialized primitive
// values: the transport layer owns JSON shape checking, the engine owns
// semantic validation. All returned errors wrap a sentinel from the core
// package and are recoverable client-input failures.
package engine

import (
	"fmt"

	"roundup/internal/core"
)

// RawTransaction is one untyped transaction record as handed over by the
// transport layer. Either Date or Timestamp carries the instant; nil numeric
// fields are absent fields.
type RawTransaction struct {
	Date      string
	Timestamp string
	Amount    *float64
	Ceiling   *float64
	Remanent  *float64
}

// RawPeriod is one untyped rule period. Value is nil for aggregate periods,
// which carry no amount.
type RawPeriod struct {
	Start string
	End   string
	Value *float64
}

func (r RawTransaction) timestampField() (string, bool) {
	if r.Date != "" {
		return r.Date, true
	}
	if r.Timestamp != "" {
		return r.Timestamp, true
	}
	return "", false
}

func numeric(v *float64, field string) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: field %q must be numeric", core.ErrNonNumericField, field)
	}
	return *v, nil
}

// buildTransaction normalizes one raw record into a Transaction. When
// requireCeilingRemanent is set (validator path) the supplied ceiling and
// remanent are preserved as-is so the validator can consistency-check them;
// otherwise missing values are derived from the amount.
func buildTransaction(raw RawTransaction, requireCeilingRemanent bool) (core.Transaction, error) {
	field, ok := raw.timestampField()
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: transaction must include 'date' or 'timestamp'", core.ErrMissingTimestamp)
	}
	ts, err := core.ParseInstant(field)
	if err != nil {
		return core.Transaction{}, err
	}

	amount, err := numeric(raw.Amount, "amount")
	if err != nil {
		return core.Transaction{}, err
	}
	if amount < 0 {
		return core.Transaction{}, fmt.Errorf("%w: amount cannot be negative", core.ErrAmountOutOfBounds)
	}
	if amount >= core.MaxAmount {
		return core.Transaction{}, fmt.Errorf("%w: amount must be < %d", core.ErrAmountOutOfBounds, core.MaxAmount)
	}

	var ceiling, remanent float64
	if requireCeilingRemanent {
		if ceiling, err = numeric(raw.Ceiling, "ceiling"); err != nil {
			return core.Transaction{}, err
		}
		if remanent, err = numeric(raw.Remanent, "remanent"); err != nil {
			return core.Transaction{}, err
		}
	} else {
		if raw.Ceiling != nil {
			ceiling = *raw.Ceiling
		} else {
			ceiling = core.NextMultipleOf100(amount)
		}
		if raw.Remanent != nil {
			remanent = *raw.Remanent
		} else {
			remanent = core.RemanentFor(amount)
		}
	}

	tx := core.Transaction{
		Timestamp: ts,
		Amount:    core.Round2(amount),
		Ceiling:   core.Round2(ceiling),
		Remanent:  core.Round2(remanent),
	}
	if tx.Ceiling < tx.Amount {
		return core.Transaction{}, fmt.Errorf("%w: ceiling cannot be lower than amount", core.ErrAmountOutOfBounds)
	}
	if tx.Remanent < 0 {
		return core.Transaction{}, fmt.Errorf("%w: remanent cannot be negative", core.ErrAmountOutOfBounds)
	}
	return tx, nil
}
