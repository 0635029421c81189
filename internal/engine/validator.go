package engine

import (
	"fmt"
	"sort"

	"roundup/internal/core"
)

// RejectedTransaction is an invalid or duplicate record annotated with the
// rejection reason.
type RejectedTransaction struct {
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Ceiling  float64 `json:"ceiling"`
	Remanent float64 `json:"remanent"`
	Reason   string  `json:"message"`
}

// ValidationBuckets partitions the input: every candidate lands in exactly
// one of the three slices.
type ValidationBuckets struct {
	Valid      []core.Transaction    `json:"valid"`
	Invalid    []RejectedTransaction `json:"invalid"`
	Duplicates []RejectedTransaction `json:"duplicates"`
}

const cumulativeSlack = 1e-9

func rejected(raw RawTransaction, tx core.Transaction, reason string) RejectedTransaction {
	r := RejectedTransaction{Reason: reason}
	if !tx.Timestamp.IsZero() {
		r.Date = tx.Timestamp.String()
		r.Amount = tx.Amount
		r.Ceiling = tx.Ceiling
		r.Remanent = tx.Remanent
		return r
	}
	r.Date, _ = raw.timestampField()
	if raw.Amount != nil {
		r.Amount = core.Round2(*raw.Amount)
	}
	if raw.Ceiling != nil {
		r.Ceiling = core.Round2(*raw.Ceiling)
	}
	if raw.Remanent != nil {
		r.Remanent = core.Round2(*raw.Remanent)
	}
	return r
}

// ValidateTransactions partitions raw records into valid, invalid and
// duplicate buckets. Ceiling and remanent must be supplied and must match the
// values derived from the amount (within a rounding tolerance of 0.01). The
// cumulative remanent of valid transactions, taken in timestamp order, may
// not exceed maxInvestment (wage*12 when unset); a transaction that would
// push the running total past the limit is rejected and does not consume any
// of it.
func ValidateTransactions(wage float64, maxInvestment *float64, raws []RawTransaction) (ValidationBuckets, error) {
	if wage < 0 {
		return ValidationBuckets{}, fmt.Errorf("%w: wage cannot be negative", core.ErrInvalidWageOrLimit)
	}
	limit := core.Round2(wage * 12)
	if maxInvestment != nil {
		limit = core.Round2(*maxInvestment)
	}
	if limit < 0 {
		return ValidationBuckets{}, fmt.Errorf("%w: maximum investment cannot be negative", core.ErrInvalidWageOrLimit)
	}

	buckets := ValidationBuckets{
		Valid:      []core.Transaction{},
		Invalid:    []RejectedTransaction{},
		Duplicates: []RejectedTransaction{},
	}
	var candidates []core.Transaction
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		tx, err := buildTransaction(raw, true)
		if err != nil {
			buckets.Invalid = append(buckets.Invalid, rejected(raw, core.Transaction{}, err.Error()))
			continue
		}

		key := tx.Timestamp.String()
		if _, dup := seen[key]; dup {
			buckets.Duplicates = append(buckets.Duplicates, rejected(raw, tx, "duplicate transaction timestamp"))
			continue
		}
		seen[key] = struct{}{}

		expectedCeiling := core.NextMultipleOf100(tx.Amount)
		expectedRemanent := core.RemanentFor(tx.Amount)
		switch {
		case !nearlyEqual(tx.Ceiling, expectedCeiling):
			buckets.Invalid = append(buckets.Invalid, rejected(raw, tx, "invalid ceiling value for the amount: expected next multiple of 100"))
		case !nearlyEqual(tx.Remanent, expectedRemanent):
			buckets.Invalid = append(buckets.Invalid, rejected(raw, tx, "invalid remanent value: expected ceiling - amount"))
		case tx.Remanent > core.MaxAmount:
			buckets.Invalid = append(buckets.Invalid, rejected(raw, tx, fmt.Sprintf("remanent must be < %d", core.MaxAmount)))
		default:
			candidates = append(candidates, tx)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Epoch() < candidates[j].Timestamp.Epoch()
	})

	running := 0.0
	for _, tx := range candidates {
		if running+tx.Remanent > limit+cumulativeSlack {
			buckets.Invalid = append(buckets.Invalid, rejected(RawTransaction{}, tx, "cumulative remanent exceeds maximum allowed investment"))
			continue
		}
		running += tx.Remanent
		buckets.Valid = append(buckets.Valid, tx)
	}
	return buckets, nil
}

func nearlyEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= 0.01
}
