package engine

import (
	"fmt"

	"roundup/internal/core"
)

// ParseResult is the canonical form of an expense list together with its
// running totals.
type ParseResult struct {
	Transactions  []core.Transaction `json:"transactions"`
	TotalAmount   float64            `json:"total_amount"`
	TotalCeiling  float64            `json:"total_ceiling"`
	TotalRemanent float64            `json:"total_remanent"`
}

// BuildTransactions converts raw expense records into canonical transactions,
// deriving the ceiling (next multiple of 100) and remanent for each. The
// first malformed record aborts the whole batch.
func BuildTransactions(raws []RawTransaction) (ParseResult, error) {
	res := ParseResult{Transactions: make([]core.Transaction, 0, len(raws))}
	for i, raw := range raws {
		tx, err := buildTransaction(raw, false)
		if err != nil {
			return ParseResult{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		res.Transactions = append(res.Transactions, tx)
		res.TotalAmount += tx.Amount
		res.TotalCeiling += tx.Ceiling
		res.TotalRemanent += tx.Remanent
	}
	res.TotalAmount = core.Round2(res.TotalAmount)
	res.TotalCeiling = core.Round2(res.TotalCeiling)
	res.TotalRemanent = core.Round2(res.TotalRemanent)
	return res, nil
}
