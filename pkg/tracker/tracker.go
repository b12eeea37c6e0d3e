package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker counts tack analysis outcomes per board.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*BoardStats
}

// BoardStats holds the counters for one board label.
// Fields are accessed atomically.
type BoardStats struct {
	Candidates int64
	Rejected   int64
	Skipped    int64
	Analyzed   int64
	Fallbacks  int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*BoardStats),
	}
}

// getStats returns the stats object for a board, creating it if needed.
func (t *Tracker) getStats(board string) *BoardStats {
	t.mu.RLock()
	s, ok := t.stats[board]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[board]; ok {
		return s
	}
	s = &BoardStats{}
	t.stats[board] = s
	return s
}

// TrackCandidate counts a maneuver considered as a tack.
func (t *Tracker) TrackCandidate(board string) {
	atomic.AddInt64(&t.getStats(board).Candidates, 1)
}

// TrackRejected counts a candidate that failed selection.
func (t *Tracker) TrackRejected(board string) {
	atomic.AddInt64(&t.getStats(board).Rejected, 1)
}

// TrackSkipped counts a candidate whose analysis could not complete.
func (t *Tracker) TrackSkipped(board string) {
	atomic.AddInt64(&t.getStats(board).Skipped, 1)
}

func (t *Tracker) TrackAnalyzed(board string) {
	atomic.AddInt64(&t.getStats(board).Analyzed, 1)
}

// TrackFallbacks adds n heuristic fallbacks used while analyzing a tack.
func (t *Tracker) TrackFallbacks(board string, n int) {
	if n == 0 {
		return
	}
	atomic.AddInt64(&t.getStats(board).Fallbacks, int64(n))
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]BoardStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]BoardStats)
	for k, v := range t.stats {
		result[k] = BoardStats{
			Candidates: atomic.LoadInt64(&v.Candidates),
			Rejected:   atomic.LoadInt64(&v.Rejected),
			Skipped:    atomic.LoadInt64(&v.Skipped),
			Analyzed:   atomic.LoadInt64(&v.Analyzed),
			Fallbacks:  atomic.LoadInt64(&v.Fallbacks),
		}
	}
	return result
}

// Total sums the counters over all boards.
func (t *Tracker) Total() BoardStats {
	var total BoardStats
	for _, s := range t.Snapshot() {
		total.Candidates += s.Candidates
		total.Rejected += s.Rejected
		total.Skipped += s.Skipped
		total.Analyzed += s.Analyzed
		total.Fallbacks += s.Fallbacks
	}
	return total
}

// Reset zeroes every counter. Boards already seen stay in the map.
func (t *Tracker) Reset() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, v := range t.stats {
		atomic.StoreInt64(&v.Candidates, 0)
		atomic.StoreInt64(&v.Rejected, 0)
		atomic.StoreInt64(&v.Skipped, 0)
		atomic.StoreInt64(&v.Analyzed, 0)
		atomic.StoreInt64(&v.Fallbacks, 0)
	}
}
