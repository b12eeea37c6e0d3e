package tack

import "time"

// Config holds the heuristics of the tack analysis.
// Index-valued settings count samples in the working window.
type Config struct {
	WindowBefore time.Duration // window start, before the maneuver start
	WindowAfter  time.Duration // window end, after the maneuver start
	MinSpacing   time.Duration // minimum gap to the next maneuver

	ROTThreshold  float64 // deg/s below which the boat is not turning
	StartLookback int     // start search begins this many samples before center
	DefaultStart  int     // start index when no steady sample is found

	EntryFrom time.Duration // entry averaging begins this long before start
	EntryTo   time.Duration // and ends this long before start

	EndSearch        int // samples after center searched for the twa extremum
	RecoveryOffset   int // recovery search begins this many samples after end
	RecoveryFallback int // recovery index relative to center when vmg never recovers
	RecoverySamples  int // samples averaged for the recovery metrics

	DownspeedRatio float64 // speed/target below which a note is added

	Workers int // tacks analyzed in parallel
}

// DefaultConfig returns the stock heuristics.
func DefaultConfig() Config {
	return Config{
		WindowBefore:     20 * time.Second,
		WindowAfter:      120 * time.Second,
		MinSpacing:       45 * time.Second,
		ROTThreshold:     2.5,
		StartLookback:    3,
		DefaultStart:     15,
		EntryFrom:        6 * time.Second,
		EntryTo:          2 * time.Second,
		EndSearch:        12,
		RecoveryOffset:   5,
		RecoveryFallback: 30,
		RecoverySamples:  6,
		DownspeedRatio:   0.9,
		Workers:          1,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowBefore <= 0 {
		c.WindowBefore = d.WindowBefore
	}
	if c.WindowAfter <= 0 {
		c.WindowAfter = d.WindowAfter
	}
	if c.MinSpacing <= 0 {
		c.MinSpacing = d.MinSpacing
	}
	if c.ROTThreshold <= 0 {
		c.ROTThreshold = d.ROTThreshold
	}
	if c.StartLookback <= 0 {
		c.StartLookback = d.StartLookback
	}
	if c.DefaultStart <= 0 {
		c.DefaultStart = d.DefaultStart
	}
	if c.EntryFrom <= 0 {
		c.EntryFrom = d.EntryFrom
	}
	if c.EntryTo <= 0 {
		c.EntryTo = d.EntryTo
	}
	if c.EndSearch <= 0 {
		c.EndSearch = d.EndSearch
	}
	if c.RecoveryOffset <= 0 {
		c.RecoveryOffset = d.RecoveryOffset
	}
	if c.RecoveryFallback <= 0 {
		c.RecoveryFallback = d.RecoveryFallback
	}
	if c.RecoverySamples <= 0 {
		c.RecoverySamples = d.RecoverySamples
	}
	if c.DownspeedRatio <= 0 {
		c.DownspeedRatio = d.DownspeedRatio
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}
