package geo

import (
	"sync"

	"github.com/paulmach/orb"
)

// TrackBuffer maintains a rolling window of positions and calculates the
// ground track across it.
type TrackBuffer struct {
	mu         sync.RWMutex
	samples    []orb.Point
	windowSize int
}

// NewTrackBuffer creates a new buffer with the specified sample window size.
func NewTrackBuffer(windowSize int) *TrackBuffer {
	if windowSize < 2 {
		windowSize = 2
	}
	return &TrackBuffer{
		windowSize: windowSize,
	}
}

// Push adds a [lon, lat] point to the buffer and returns the bearing from
// the oldest to the newest point in the window. ok is false until the
// window holds two distinct points.
func (b *TrackBuffer) Push(p orb.Point) (track float64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, p)
	if len(b.samples) > b.windowSize {
		b.samples = b.samples[1:]
	}

	first, last := b.samples[0], b.samples[len(b.samples)-1]
	if len(b.samples) < 2 || first.Equal(last) {
		return 0, false
	}

	return Bearing(first.Lat(), first.Lon(), last.Lat(), last.Lon()), true
}

// Len returns the number of points in the window.
func (b *TrackBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Reset clears the buffer history.
func (b *TrackBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}
