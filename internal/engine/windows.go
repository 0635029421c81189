package engine

import (
	"sort"

	"roundup/internal/core"
)

// epochSpan is an inclusive [start, end] interval over epoch seconds.
type epochSpan struct {
	start int64
	end   int64
}

// mergeWindows collapses aggregate periods into disjoint spans, joining
// intervals that touch or sit one second apart.
func mergeWindows(periods []core.Period) []epochSpan {
	if len(periods) == 0 {
		return nil
	}
	spans := make([]epochSpan, len(periods))
	for i, p := range periods {
		spans[i] = epochSpan{start: p.Start.Epoch(), end: p.End.Epoch()}
	}
	sort.Slice(spans, func(a, b int) bool {
		if spans[a].start != spans[b].start {
			return spans[a].start < spans[b].start
		}
		return spans[a].end < spans[b].end
	})

	merged := []epochSpan{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end+1 {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// windowMembership reports, per transaction position, whether the instant
// falls inside any aggregate window. An empty rule list means every
// transaction is in scope.
func windowMembership(txs []core.Transaction, aggregates []core.Period, orderedIndices []int) []bool {
	membership := make([]bool, len(txs))
	if len(txs) == 0 {
		return membership
	}
	if len(aggregates) == 0 {
		for i := range membership {
			membership[i] = true
		}
		return membership
	}
	if orderedIndices == nil {
		orderedIndices = orderIndices(txs)
	}

	merged := mergeWindows(aggregates)
	ptr := 0
	for _, idx := range orderedIndices {
		ts := txs[idx].Timestamp.Epoch()
		for ptr < len(merged) && merged[ptr].end < ts {
			ptr++
		}
		if ptr < len(merged) {
			membership[idx] = merged[ptr].start <= ts && ts <= merged[ptr].end
		}
	}
	return membership
}

// WindowTotal is the summed contribution for one aggregate period as
// supplied, not merged.
type WindowTotal struct {
	Start  string  `json:"start"`
	End    string  `json:"end"`
	Amount float64 `json:"amount"`
}

// windowTotals sums adjusted contributions per source aggregate period using
// a prefix sum over the time-ordered contributions. ordered must be sorted
// by epoch ascending.
func windowTotals(ordered []contribution, aggregates []core.Period) []WindowTotal {
	if len(aggregates) == 0 {
		return nil
	}

	times := make([]int64, len(ordered))
	prefix := make([]float64, len(ordered)+1)
	for i, c := range ordered {
		times[i] = c.tx.Timestamp.Epoch()
		prefix[i+1] = prefix[i] + c.adjusted
	}

	totals := make([]WindowTotal, 0, len(aggregates))
	for _, p := range aggregates {
		start, end := p.Start.Epoch(), p.End.Epoch()
		left := sort.Search(len(times), func(i int) bool { return times[i] >= start })
		right := sort.Search(len(times), func(i int) bool { return times[i] > end })
		totals = append(totals, WindowTotal{
			Start:  p.Start.String(),
			End:    p.End.String(),
			Amount: core.Round2(prefix[right] - prefix[left]),
		})
	}
	return totals
}
