package aggregate

import (
	"sync"

	"github.com/hazyhaar/zona9/report"
)

// Memo caches the Summary of the last (snapshot, view) pair it was asked
// about. The snapshot is compared by pointer: a new snapshot recomputes,
// the same one under the same view returns the cached result. Summaries
// go through Aggregator.Summarize, the same dispatch an uncached caller
// uses.
type Memo struct {
	agg Aggregator

	mu   sync.Mutex
	snap *report.Snapshot
	view report.ViewMode
	sum  *Summary
}

// NewMemo returns a Memo summarizing with a.
func NewMemo(a Aggregator) *Memo {
	return &Memo{agg: a}
}

// Get returns the summary of snap under view, computing it only if the
// pair differs from the previous call.
func (m *Memo) Get(snap *report.Snapshot, view report.ViewMode) *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap != nil && snap == m.snap && view == m.view {
		return m.sum
	}
	m.snap, m.view = snap, view
	m.sum = m.agg.Summarize(snap, view)
	return m.sum
}
