package core

import "fmt"

const (
	// PeriodOverride replaces a transaction's contribution (wire tag "q").
	PeriodOverride PeriodKind = "override"
	// PeriodExtra adds to a transaction's contribution (wire tag "p").
	PeriodExtra PeriodKind = "extra"
	// PeriodAggregate buckets contributions for reporting (wire tag "k").
	PeriodAggregate PeriodKind = "aggregate"
)

type (
	PeriodKind string

	// Period is a time-bounded rule. SourceIndex is the position in the
	// submitted rule list and breaks ties between rules of equal precedence.
	Period struct {
		Kind        PeriodKind
		Start       Instant
		End         Instant
		Value       float64
		SourceIndex int
	}
)

// Contains reports whether ts falls inside the inclusive [Start, End] window.
func (p Period) Contains(ts Instant) bool {
	e := ts.Epoch()
	return p.Start.Epoch() <= e && e <= p.End.Epoch()
}

// Validate checks the period invariants for its kind. Aggregate periods must
// stay inside a single calendar year; override/extra values are bounded like
// transaction amounts.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: %s period must include start and end", ErrMissingTimestamp, p.Kind)
	}
	if p.End.Epoch() < p.Start.Epoch() {
		return fmt.Errorf("%w: %s period start must be <= end", ErrInvalidPeriod, p.Kind)
	}
	switch p.Kind {
	case PeriodOverride, PeriodExtra:
		if p.Value < 0 {
			return fmt.Errorf("%w: %s period value cannot be negative", ErrInvalidPeriod, p.Kind)
		}
		if p.Value >= MaxAmount {
			return fmt.Errorf("%w: %s period value must be < %d", ErrInvalidPeriod, p.Kind, MaxAmount)
		}
	case PeriodAggregate:
		if p.Start.Year() != p.End.Year() {
			return fmt.Errorf("%w: window %s..%s", ErrCrossYearAggregatePeriod, p.Start, p.End)
		}
	default:
		return fmt.Errorf("%w: unknown period kind %q", ErrInvalidPeriod, p.Kind)
	}
	return nil
}
