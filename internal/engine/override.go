package engine

import (
	"container/heap"
	"math"
	"sort"

	"roundup/internal/core"
)

// override is the resolved q value for one transaction position. ok is false
// when no override period covers the instant.
type override struct {
	value float64
	ok    bool
}

// overrideResolver computes, for each element of orderedTimes (ascending
// epochs), the winning override value among the periods covering it. The
// winner is the period with the latest start; ties go to the smallest source
// index.
type overrideResolver func(orderedTimes []int64, periods []core.Period) []override

// qItem is one active override period. The heap surfaces the current winner
// at the root.
type qItem struct {
	start int64
	index int
	end   int64
	value float64
}

type qHeap []qItem

func (h qHeap) Len() int { return len(h) }
func (h qHeap) Less(i, j int) bool {
	if h[i].start != h[j].start {
		return h[i].start > h[j].start
	}
	return h[i].index < h[j].index
}
func (h qHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *qHeap) Push(x any)        { *h = append(*h, x.(qItem)) }
func (h *qHeap) Pop() any          { old := *h; n := len(old); x := old[n-1]; *h = old[:n-1]; return x }

// resolveOverridesHeap sweeps transactions in time order, pushing periods as
// they start and lazily popping winners whose end has passed.
func resolveOverridesHeap(orderedTimes []int64, periods []core.Period) []override {
	overrides := make([]override, len(orderedTimes))
	if len(orderedTimes) == 0 || len(periods) == 0 {
		return overrides
	}

	sorted := make([]core.Period, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool {
		si, sj := sorted[i].Start.Epoch(), sorted[j].Start.Epoch()
		if si != sj {
			return si < sj
		}
		return sorted[i].SourceIndex < sorted[j].SourceIndex
	})

	active := &qHeap{}
	next := 0
	for pos, ts := range orderedTimes {
		for next < len(sorted) && sorted[next].Start.Epoch() <= ts {
			p := sorted[next]
			heap.Push(active, qItem{start: p.Start.Epoch(), index: p.SourceIndex, end: p.End.Epoch(), value: p.Value})
			next++
		}
		for active.Len() > 0 && (*active)[0].end < ts {
			heap.Pop(active)
		}
		if active.Len() > 0 {
			overrides[pos] = override{value: (*active)[0].value, ok: true}
		}
	}
	return overrides
}

// resolveOverridesUnion assigns positions from the highest-priority period
// down, using a union-find over positions so each transaction is claimed at
// most once. Bisected position bounds are cached per distinct (start, end)
// pair, which pays off when many periods repeat the same window.
func resolveOverridesUnion(orderedTimes []int64, periods []core.Period) []override {
	size := len(orderedTimes)
	overrides := make([]override, size)
	if size == 0 || len(periods) == 0 {
		return overrides
	}

	byPriority := make([]core.Period, len(periods))
	copy(byPriority, periods)
	sort.Slice(byPriority, func(i, j int) bool {
		si, sj := byPriority[i].Start.Epoch(), byPriority[j].Start.Epoch()
		if si != sj {
			return si > sj
		}
		return byPriority[i].SourceIndex < byPriority[j].SourceIndex
	})

	parent := make([]int, size+1)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	type bound struct{ left, right int }
	boundsCache := make(map[[2]int64]bound)
	assigned := 0

	for _, p := range byPriority {
		if assigned >= size {
			break
		}
		key := [2]int64{p.Start.Epoch(), p.End.Epoch()}
		b, cached := boundsCache[key]
		if !cached {
			b.left = sort.Search(size, func(i int) bool { return orderedTimes[i] >= key[0] })
			b.right = sort.Search(size, func(i int) bool { return orderedTimes[i] > key[1] }) - 1
			boundsCache[key] = b
		}
		if b.left > b.right {
			continue
		}
		for pos := find(b.left); pos <= b.right; pos = parent[pos] {
			overrides[pos] = override{value: p.Value, ok: true}
			assigned++
			parent[pos] = find(pos + 1)
		}
	}
	return overrides
}

// chooseOverrideResolver picks a resolver from the input shape. The heap is
// the default; union-find wins when override windows repeat heavily or when
// the period count dwarfs the transaction count.
func chooseOverrideResolver(orderedTimes []int64, periods []core.Period) overrideResolver {
	qCount, txCount := len(periods), len(orderedTimes)
	if qCount == 0 || txCount == 0 || qCount < 2048 {
		return resolveOverridesHeap
	}

	sampleSize := qCount
	if sampleSize > 4096 {
		sampleSize = 4096
	}
	uniqueBounds := make(map[[2]int64]struct{}, sampleSize)
	for i := 0; i < sampleSize; i++ {
		uniqueBounds[[2]int64{periods[i].Start.Epoch(), periods[i].End.Epoch()}] = struct{}{}
	}
	duplicateRatio := 1.0 - float64(len(uniqueBounds))/float64(sampleSize)
	if duplicateRatio >= 0.25 {
		return resolveOverridesUnion
	}

	logN := math.Log2(float64(txCount + 1))
	logQ := math.Log2(float64(qCount + 1))
	heapEstimate := (2.0*float64(qCount) + float64(txCount)) * logQ
	unionEstimate := float64(qCount)*logN + float64(txCount)
	if unionEstimate*0.85 < heapEstimate {
		return resolveOverridesUnion
	}
	return resolveOverridesHeap
}
