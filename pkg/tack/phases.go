package tack

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HomegrownMarine/sailing-calculations/pkg/geo"
	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
	"github.com/HomegrownMarine/sailing-calculations/pkg/segment"

	"gonum.org/v1/gonum/stat"
)

// ErrCenterNotFound is returned when the working window holds no sample
// before the maneuver start, so the turn cannot be located.
var ErrCenterNotFound = errors.New("no sample before tack time")

// feetPerKnotSecond converts knot-seconds to feet.
const feetPerKnotSecond = 6076.11549 / 3600.0

// Diagnostic notes attached to tacks.
const (
	NoteCenterApprox      = "tack time not sampled, using nearest earlier sample"
	NoteStartNotFound     = "never found start of turn"
	NoteEntryDownspeed    = "started tack downspeed"
	NoteEndNotFound       = "no twa after center"
	NoteRecoveryNotFound  = "never found recovery"
	NoteRecoveryDownspeed = "recovered downspeed"
	NoteLossUndefined     = "no entry vmg, loss undefined"
)

// analysis carries one tack through the phases. Phases run in order; each
// reads what the earlier ones wrote.
type analysis struct {
	cfg    *Config
	window []model.Sample
	idx    model.TimingIndices
	tack   *model.Tack

	fallbacks int
}

func (a *analysis) fallback(note string) {
	a.fallbacks++
	a.tack.AddNote("%s", note)
}

// workingWindow returns the samples within [start-before, start+after],
// including the sample at the upper insertion point.
func workingWindow(samples []model.Sample, start time.Time, cfg *Config) []model.Sample {
	from := segment.SortedIndex(samples, start.Add(-cfg.WindowBefore))
	to := segment.SortedIndex(samples, start.Add(cfg.WindowAfter)) + 1
	if to > len(samples) {
		to = len(samples)
	}
	return samples[from:to]
}

// findCenter locates the last sample before the tack time.
func (a *analysis) findCenter() error {
	i := segment.SortedIndex(a.window, a.tack.Time)
	center := i - 1
	if center < 0 {
		return fmt.Errorf("tack at %s: %w", a.tack.Time.Format(time.RFC3339), ErrCenterNotFound)
	}
	if i >= len(a.window) || !a.window[i].T.Equal(a.tack.Time) {
		a.fallback(NoteCenterApprox)
	}

	a.idx.Center = center
	a.tack.Position = model.PositionOf(a.window[center])
	return nil
}

// findStart walks back from just before center to the first sample where
// the boat was not turning.
func (a *analysis) findStart() {
	start := -1
	for j := a.idx.Center - a.cfg.StartLookback; j >= 0; j-- {
		rot, ok := a.window[j].Get(model.FieldROT)
		if ok && math.Abs(rot) < a.cfg.ROTThreshold {
			start = j
			break
		}
	}

	if start < 0 {
		start = min(a.cfg.DefaultStart, a.idx.Center)
		a.fallback(NoteStartNotFound)
	}

	a.idx.Start = start
	a.tack.StartPosition = model.PositionOf(a.window[start])
}

// calculateEntrySpeeds averages the approach just before the turn started.
func (a *analysis) calculateEntrySpeeds() {
	ts := a.window[a.idx.Start].T
	from, to := ts.Add(-a.cfg.EntryFrom), ts.Add(-a.cfg.EntryTo)

	var entry []model.Sample
	for _, s := range a.window {
		if !s.T.Before(from) && !s.T.After(to) {
			entry = append(entry, s)
		}
	}

	a.tack.EntrySpeed = mean(entry, model.FieldSpeed)
	a.tack.EntryVMG = mean(entry, model.FieldVMG)
	a.tack.EntryTWA = mean(entry, model.FieldTWA)
	a.tack.EntryHdg = circularMean(entry, model.FieldHdg)
	a.tack.TargetSpeed = mean(entry, model.FieldTargetSpeed)
	a.tack.TargetAngle = mean(entry, model.FieldTargetAngle)

	if below(a.tack.EntrySpeed, a.tack.TargetSpeed, a.cfg.DownspeedRatio) {
		a.tack.AddNote("%s", NoteEntryDownspeed)
	}
}

// findEnd takes the twa extremum in the direction of the turn shortly after
// center: the most negative twa when settling onto port, the most positive
// otherwise.
func (a *analysis) findEnd() {
	lowest := a.tack.Board == model.BoardUpwindPort

	end := a.idx.Center
	bestTWA, seeded := a.window[end].Get(model.FieldTWA)

	limit := min(a.idx.Center+a.cfg.EndSearch, len(a.window))
	for j := a.idx.Center; j < limit; j++ {
		twa, ok := a.window[j].Get(model.FieldTWA)
		if !ok {
			continue
		}
		if !seeded || (lowest && twa < bestTWA) || (!lowest && twa > bestTWA) {
			end, bestTWA, seeded = j, twa, true
		}
	}

	if seeded {
		a.tack.MaxTWA = ptr(bestTWA)
	} else {
		a.fallback(NoteEndNotFound)
	}

	a.idx.End = end
	a.tack.EndPosition = model.PositionOf(a.window[end])
}

// findRecoveryTime finds the first sample after the turn where vmg is back
// to the entry vmg.
func (a *analysis) findRecoveryTime() {
	recovered := -1
	if a.tack.EntryVMG != nil {
		for j := a.idx.End + a.cfg.RecoveryOffset; j < len(a.window); j++ {
			vmg, ok := a.window[j].Get(model.FieldVMG)
			if ok && vmg >= *a.tack.EntryVMG {
				recovered = j
				break
			}
		}
	}

	if recovered < 0 {
		recovered = a.idx.Center + a.cfg.RecoveryFallback
		recovered = min(max(recovered, a.idx.End), len(a.window)-1)
		a.fallback(NoteRecoveryNotFound)
	}

	a.idx.Recovered = recovered
}

// findRecoveryMetrics averages the first samples after recovery.
func (a *analysis) findRecoveryMetrics() {
	limit := min(a.idx.Recovered+a.cfg.RecoverySamples, len(a.window))
	rec := a.window[a.idx.Recovered:limit]

	a.tack.RecoveryTWA = mean(rec, model.FieldTWA)
	a.tack.RecoverySpeed = mean(rec, model.FieldSpeed)
	a.tack.RecoveryHdg = circularMean(rec, model.FieldHdg)

	if below(a.tack.RecoverySpeed, a.tack.TargetSpeed, a.cfg.DownspeedRatio) {
		a.tack.AddNote("%s", NoteRecoveryDownspeed)
	}
}

// addClassificationStats records the wind the tack was sailed in.
func (a *analysis) addClassificationStats() {
	before := a.window[:a.idx.Start]
	a.tack.TWS = mean(before, model.FieldTWS)
	a.tack.TWD = circularMean(before, model.FieldTWD)
}

// convertIndexesToTimes moves the timing into timestamp space.
func (a *analysis) convertIndexesToTimes() {
	a.tack.Timing = a.idx.Instants(a.window)
}

// calculateLoss compares the distance made to windward between start and
// recovery with what the entry vmg would have made. Each interval between
// vmg samples is credited with the vmg of the sample closing it.
func (a *analysis) calculateLoss() {
	if a.tack.EntryVMG == nil {
		a.tack.AddNote("%s", NoteLossUndefined)
		return
	}

	start, recovered := a.tack.Timing.Start, a.tack.Timing.Recovered

	var (
		covered float64
		last    time.Time
		anchor  bool
	)
	for _, s := range a.window {
		if s.T.Before(start) || s.T.After(recovered) {
			continue
		}
		vmg, ok := s.Get(model.FieldVMG)
		if !ok {
			continue
		}
		if anchor {
			covered += s.T.Sub(last).Seconds() * vmg
		}
		last, anchor = s.T, true
	}

	ideal := *a.tack.EntryVMG * recovered.Sub(start).Seconds()
	a.tack.Loss = ptr(feetPerKnotSecond * (ideal - covered))
}

func ptr(v float64) *float64 {
	return &v
}

func values(samples []model.Sample, f model.Field) []float64 {
	var out []float64
	for _, s := range samples {
		if v, ok := s.Get(f); ok {
			out = append(out, v)
		}
	}
	return out
}

// mean is nil when no sample carries f.
func mean(samples []model.Sample, f model.Field) *float64 {
	vs := values(samples, f)
	if len(vs) == 0 {
		return nil
	}
	return ptr(stat.Mean(vs, nil))
}

func circularMean(samples []model.Sample, f model.Field) *float64 {
	vs := values(samples, f)
	if len(vs) == 0 {
		return nil
	}
	return ptr(geo.CircularMean(vs))
}

// below reports whether v < ratio*target, false when either is undefined.
func below(v, target *float64, ratio float64) bool {
	if v == nil || target == nil {
		return false
	}
	t := *target
	return *v < ratio*t
}
