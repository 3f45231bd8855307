package keyvalue

import (
	"container/heap"
	"sort"

	"github.com/sakif/matchday-predictor/internal/model"
)

// ranksAbove orders the leaderboard: higher winning rate first, then
// username ascending so ties come out the same way every time.
func ranksAbove(a, b model.LeaderboardEntry) bool {
	if a.WinningRate != b.WinningRate {
		return a.WinningRate > b.WinningRate
	}
	return a.Username < b.Username
}

// entryHeap is a min-heap on rank: the root is the weakest kept entry.
type entryHeap []model.LeaderboardEntry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return ranksAbove(h[j], h[i]) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(model.LeaderboardEntry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK keeps the best limit entries seen so far in O(limit) memory.
type topK struct {
	limit int
	h     entryHeap
}

func newTopK(limit int) *topK {
	return &topK{limit: limit, h: make(entryHeap, 0, limit)}
}

// Offer considers e for the leaderboard.
func (t *topK) Offer(e model.LeaderboardEntry) {
	if t.h.Len() < t.limit {
		heap.Push(&t.h, e)
		return
	}
	if ranksAbove(e, t.h[0]) {
		t.h[0] = e
		heap.Fix(&t.h, 0)
	}
}

// Sorted returns the kept entries, best first.
func (t *topK) Sorted() []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool { return ranksAbove(out[i], out[j]) })
	return out
}
