package model

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// TimingIndices holds the named instants of a tack as indices into the
// tack's working window. Only the index-based analysis phases use it.
type TimingIndices struct {
	Center    int
	Start     int
	End       int
	Recovered int
}

// Ordered reports whether Start <= Center <= End <= Recovered.
func (ti TimingIndices) Ordered() bool {
	return ti.Start <= ti.Center && ti.Center <= ti.End && ti.End <= ti.Recovered
}

// Instants converts the indices to the timestamps of the window samples.
// There is no inverse; once converted, a tack is in timestamp space for good.
func (ti TimingIndices) Instants(window []Sample) TimingInstants {
	return TimingInstants{
		Center:    window[ti.Center].T,
		Start:     window[ti.Start].T,
		End:       window[ti.End].T,
		Recovered: window[ti.Recovered].T,
	}
}

// TimingInstants holds the named instants of a tack as absolute times.
type TimingInstants struct {
	Center    time.Time `json:"center"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Recovered time.Time `json:"recovered"`
}

// Ordered reports whether Start <= Center <= End <= Recovered.
func (ti TimingInstants) Ordered() bool {
	return !ti.Center.Before(ti.Start) && !ti.End.Before(ti.Center) && !ti.Recovered.Before(ti.End)
}

// Duration returns Recovered - Start.
func (ti TimingInstants) Duration() time.Duration {
	return ti.Recovered.Sub(ti.Start)
}

// Tack is the analysis record for one upwind tack.
// Derived metrics are nil when no sample in their averaging range carried the
// underlying channel.
type Tack struct {
	ID     string         `json:"id"`
	Time   time.Time      `json:"time"`
	Board  Board          `json:"board"`
	Timing TimingInstants `json:"timing"`

	Position      *orb.Point `json:"position,omitempty"`
	StartPosition *orb.Point `json:"startPosition,omitempty"`
	EndPosition   *orb.Point `json:"endPosition,omitempty"`

	EntrySpeed *float64 `json:"entrySpeed,omitempty"`
	EntryVMG   *float64 `json:"entryVmg,omitempty"`
	EntryTWA   *float64 `json:"entryTwa,omitempty"`
	EntryHdg   *float64 `json:"entryHdg,omitempty"`

	MaxTWA *float64 `json:"maxTwa,omitempty"`

	RecoveryTWA   *float64 `json:"recoveryTwa,omitempty"`
	RecoveryHdg   *float64 `json:"recoveryHdg,omitempty"`
	RecoverySpeed *float64 `json:"recoverySpeed,omitempty"`

	TargetSpeed *float64 `json:"targetSpeed,omitempty"`
	TargetAngle *float64 `json:"targetAngle,omitempty"`

	TWS *float64 `json:"tws,omitempty"`
	TWD *float64 `json:"twd,omitempty"`

	Loss *float64 `json:"loss,omitempty"`

	Notes []string `json:"notes"`
}

// AddNote appends a diagnostic note.
func (t *Tack) AddNote(format string, args ...any) {
	t.Notes = append(t.Notes, fmt.Sprintf(format, args...))
}

// PositionOf returns the [lon, lat] point of a sample, or nil if either
// coordinate is absent.
func PositionOf(s Sample) *orb.Point {
	lat, okLat := s.Get(FieldLat)
	lon, okLon := s.Get(FieldLon)
	if !okLat || !okLon {
		return nil
	}
	return &orb.Point{lon, lat}
}
