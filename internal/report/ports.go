// Package report defines the outbound port for exporting evaluation
// summaries to reporting destinations.
package report

import (
	"context"
	"time"
)

// Evaluation is one summary row to export.
type Evaluation struct {
	Operation        string
	Scheme           string
	TransactionCount int
	InvalidCount     int
	DuplicateCount   int
	TotalAmount      float64
	DurationMs       int64
	EvaluatedAt      time.Time
}

// Writer appends evaluation summaries to a reporting destination.
type Writer interface {
	Append(ctx context.Context, e Evaluation) (rowRef string, err error)
}
