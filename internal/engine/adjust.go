package engine

import (
	"sort"

	"roundup/internal/core"
)

// contribution pairs a transaction with its rule-adjusted remanent.
type contribution struct {
	tx       core.Transaction
	adjusted float64
}

// orderIndices returns transaction positions sorted by (epoch, position), so
// equal timestamps keep input order.
func orderIndices(txs []core.Transaction) []int {
	indices := make([]int, len(txs))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return txs[indices[a]].Timestamp.Epoch() < txs[indices[b]].Timestamp.Epoch()
	})
	return indices
}

type extraEvent struct {
	at    int64
	value float64
}

func sortedExtraEvents(periods []core.Period, end bool) []extraEvent {
	events := make([]extraEvent, len(periods))
	for i, p := range periods {
		at := p.Start.Epoch()
		if end {
			at = p.End.Epoch() + 1
		}
		events[i] = extraEvent{at: at, value: p.Value}
	}
	sort.Slice(events, func(a, b int) bool { return events[a].at < events[b].at })
	return events
}

// applyTemporalRules computes each transaction's adjusted remanent: the
// override value of the winning q period when one covers it (otherwise the
// transaction's own remanent), plus the sum of all p extras active at its
// instant. Results are positionally aligned with txs.
func applyTemporalRules(txs []core.Transaction, overrides, extras []core.Period, orderedIndices []int) []contribution {
	if len(txs) == 0 {
		return nil
	}
	if orderedIndices == nil {
		orderedIndices = orderIndices(txs)
	}
	orderedTimes := make([]int64, len(orderedIndices))
	for pos, idx := range orderedIndices {
		orderedTimes[pos] = txs[idx].Timestamp.Epoch()
	}

	resolve := chooseOverrideResolver(orderedTimes, overrides)
	resolved := resolve(orderedTimes, overrides)

	startEvents := sortedExtraEvents(extras, false)
	endEvents := sortedExtraEvents(extras, true)

	out := make([]contribution, len(txs))
	startPtr, endPtr := 0, 0
	runningExtra := 0.0
	for pos, idx := range orderedIndices {
		ts := orderedTimes[pos]
		for startPtr < len(startEvents) && startEvents[startPtr].at <= ts {
			runningExtra += startEvents[startPtr].value
			startPtr++
		}
		for endPtr < len(endEvents) && endEvents[endPtr].at <= ts {
			runningExtra -= endEvents[endPtr].value
			endPtr++
		}

		base := txs[idx].Remanent
		if resolved[pos].ok {
			base = resolved[pos].value
		}
		out[idx] = contribution{tx: txs[idx], adjusted: core.Round2(base + runningExtra)}
	}
	return out
}
