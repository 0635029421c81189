package engine

import (
	"fmt"
	"math"

	"roundup/internal/core"
)

// Scheme selects the investment vehicle for a returns projection.
type Scheme string

const (
	// SchemePension is the tax-advantaged pension scheme.
	SchemePension Scheme = "pension"
	// SchemeIndex is a plain index fund, no tax benefit.
	SchemeIndex Scheme = "index"
)

const (
	pensionAnnualRate = 0.0711
	indexAnnualRate   = 0.1449

	// taxDeductionCap is the absolute ceiling on the pension tax deduction.
	taxDeductionCap = 200000
)

// ReturnsInput is one returns projection request.
type ReturnsInput struct {
	Scheme       Scheme
	Age          int
	Wage         float64
	Inflation    float64
	Transactions []RawTransaction
	Rules        RuleSet
}

// SavingsWindow is the projection for one aggregate period.
type SavingsWindow struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Amount     float64 `json:"amount"`
	Profits    float64 `json:"profits"`
	TaxBenefit float64 `json:"taxBenefit"`
}

// ReturnsResult carries the per-window projections plus request totals and
// the counts of records dropped while preparing the input.
type ReturnsResult struct {
	TotalAmount    float64         `json:"transactionsTotalAmount"`
	TotalCeiling   float64         `json:"transactionsTotalCeiling"`
	Savings        []SavingsWindow `json:"savingsByDates"`
	InvalidCount   int             `json:"-"`
	DuplicateCount int             `json:"-"`
}

// NormalizeInflation maps a percentage-style rate (> 1) to its decimal form
// and rejects negative rates.
func NormalizeInflation(inflation float64) (float64, error) {
	if inflation < 0 {
		return 0, fmt.Errorf("%w: inflation cannot be negative", core.ErrNegativeInflation)
	}
	if inflation > 1 {
		return inflation / 100, nil
	}
	return inflation, nil
}

// investmentHorizon is the number of compounding years for a saver of the
// given age: until 60, or a flat 5 years past it.
func investmentHorizon(age int) int {
	if age < 60 {
		return 60 - age
	}
	return 5
}

// realProfit compounds the principal at the annual rate over years, deflates
// by inflation and returns the inflation-adjusted gain.
func realProfit(principal, annualRate, inflationRate float64, years int) float64 {
	nominal := principal * math.Pow(1+annualRate, float64(years))
	real := nominal / math.Pow(1+inflationRate, float64(years))
	return core.Round2(real - principal)
}

// pensionTaxBenefit is min(invested, 10% of annual income, the absolute cap).
func pensionTaxBenefit(invested, monthlyWage float64) float64 {
	benefit := invested
	if incomeShare := monthlyWage * 12 * 0.10; incomeShare < benefit {
		benefit = incomeShare
	}
	if benefit > taxDeductionCap {
		benefit = taxDeductionCap
	}
	return core.Round2(benefit)
}

// prepareReturnsTransactions canonicalizes the records leniently: supplied
// ceiling/remanent values are ignored and re-derived from the amount,
// malformed records and repeated timestamps are counted and dropped instead
// of failing the request.
func prepareReturnsTransactions(raws []RawTransaction) (txs []core.Transaction, invalid, duplicate int) {
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		tx, err := buildTransaction(RawTransaction{Date: raw.Date, Timestamp: raw.Timestamp, Amount: raw.Amount}, false)
		if err != nil {
			invalid++
			continue
		}
		key := tx.Timestamp.String()
		if _, dup := seen[key]; dup {
			duplicate++
			continue
		}
		seen[key] = struct{}{}
		txs = append(txs, tx)
	}
	return txs, invalid, duplicate
}

// CalculateReturns projects per-window savings under the selected scheme.
func CalculateReturns(in ReturnsInput) (ReturnsResult, error) {
	if in.Age < 0 {
		return ReturnsResult{}, fmt.Errorf("%w: age cannot be negative", core.ErrInvalidScalarInput)
	}
	if in.Wage < 0 {
		return ReturnsResult{}, fmt.Errorf("%w: wage cannot be negative", core.ErrInvalidScalarInput)
	}
	inflation, err := NormalizeInflation(in.Inflation)
	if err != nil {
		return ReturnsResult{}, err
	}

	txs, invalidCount, duplicateCount := prepareReturnsTransactions(in.Transactions)
	if len(txs) == 0 {
		return ReturnsResult{}, fmt.Errorf("%w for returns calculation", core.ErrNoValidTransactions)
	}

	ordered := orderIndices(txs)
	contributions := applyTemporalRules(txs, in.Rules.Overrides, in.Rules.Extras, ordered)
	orderedContributions := make([]contribution, len(ordered))
	for pos, idx := range ordered {
		orderedContributions[pos] = contributions[idx]
	}
	totals := windowTotals(orderedContributions, in.Rules.Aggregates)

	years := investmentHorizon(in.Age)
	rate := indexAnnualRate
	if in.Scheme == SchemePension {
		rate = pensionAnnualRate
	}

	result := ReturnsResult{
		Savings:        make([]SavingsWindow, 0, len(totals)),
		InvalidCount:   invalidCount,
		DuplicateCount: duplicateCount,
	}
	for _, tx := range txs {
		result.TotalAmount += tx.Amount
		result.TotalCeiling += tx.Ceiling
	}
	result.TotalAmount = core.Round2(result.TotalAmount)
	result.TotalCeiling = core.Round2(result.TotalCeiling)

	for _, wt := range totals {
		window := SavingsWindow{
			Start:   wt.Start,
			End:     wt.End,
			Amount:  wt.Amount,
			Profits: realProfit(wt.Amount, rate, inflation, years),
		}
		if in.Scheme == SchemePension {
			window.TaxBenefit = pensionTaxBenefit(wt.Amount, in.Wage)
		}
		result.Savings = append(result.Savings, window)
	}
	return result, nil
}
