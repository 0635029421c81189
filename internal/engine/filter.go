package engine

import (
	"errors"
	"strings"

	"roundup/internal/core"
)

// FilteredTransaction is a surviving transaction with its rule-adjusted
// remanent.
type FilteredTransaction struct {
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Ceiling  float64 `json:"ceiling"`
	Remanent float64 `json:"remanent"`
	InWindow bool    `json:"inKPeriod"`
}

// FilterRejection is a transaction excluded from the filter result.
type FilterRejection struct {
	Date    string  `json:"date"`
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

// FilterResult splits transactions into rule-adjusted survivors and
// rejections.
type FilterResult struct {
	Valid   []FilteredTransaction `json:"valid"`
	Invalid []FilterRejection     `json:"invalid"`
}

func filterRejection(raw RawTransaction, tx core.Transaction, message string) FilterRejection {
	r := FilterRejection{Message: message}
	if !tx.Timestamp.IsZero() {
		r.Date = tx.Timestamp.String()
		r.Amount = tx.Amount
		return r
	}
	r.Date, _ = raw.timestampField()
	if raw.Amount != nil {
		r.Amount = core.Round2(*raw.Amount)
	}
	return r
}

// FilterTransactions canonicalizes the records, applies override and extra
// rules, and keeps the transactions that fall inside an aggregate window
// with a positive adjusted remanent. Malformed records, duplicates and
// out-of-window transactions are reported; adjusted remanents of zero or
// less are dropped silently.
func FilterTransactions(raws []RawTransaction, rules RuleSet) FilterResult {
	result := FilterResult{Valid: []FilteredTransaction{}, Invalid: []FilterRejection{}}
	var canonical []core.Transaction
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		tx, err := buildTransaction(raw, false)
		if err != nil {
			message := err.Error()
			if errors.Is(err, core.ErrAmountOutOfBounds) && strings.Contains(message, "amount cannot be negative") {
				message = "negative amounts are not allowed"
			}
			result.Invalid = append(result.Invalid, filterRejection(raw, core.Transaction{}, message))
			continue
		}
		key := tx.Timestamp.String()
		if _, dup := seen[key]; dup {
			result.Invalid = append(result.Invalid, filterRejection(raw, tx, "duplicate transaction"))
			continue
		}
		seen[key] = struct{}{}
		canonical = append(canonical, tx)
	}

	ordered := orderIndices(canonical)
	contributions := applyTemporalRules(canonical, rules.Overrides, rules.Extras, ordered)
	membership := windowMembership(canonical, rules.Aggregates, ordered)

	for i, c := range contributions {
		if !membership[i] {
			result.Invalid = append(result.Invalid, filterRejection(RawTransaction{}, c.tx, "transaction is outside all evaluation windows"))
			continue
		}
		if c.adjusted <= 0 {
			continue
		}
		result.Valid = append(result.Valid, FilteredTransaction{
			Date:     c.tx.Timestamp.String(),
			Amount:   c.tx.Amount,
			Ceiling:  c.tx.Ceiling,
			Remanent: c.adjusted,
			InWindow: true,
		})
	}
	return result
}
