// Package tack detects upwind tacks among classified maneuvers and measures
// how long they took and how much distance they cost.
package tack

import (
	"context"
	"log/slog"

	"github.com/HomegrownMarine/sailing-calculations/pkg/logging"
	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
	"github.com/HomegrownMarine/sailing-calculations/pkg/tracker"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Analyzer runs the tack analysis with one set of heuristics.
type Analyzer struct {
	cfg     Config
	logger  *slog.Logger
	tracker *tracker.Tracker
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracker sets the statistics sink.
func WithTracker(t *tracker.Tracker) Option {
	return func(a *Analyzer) {
		if t != nil {
			a.tracker = t
		}
	}
}

// NewAnalyzer creates an analyzer. Zero config values take their defaults.
func NewAnalyzer(cfg Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:     cfg.withDefaults(),
		logger:  slog.Default(),
		tracker: tracker.New(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Tracker returns the statistics sink.
func (a *Analyzer) Tracker() *tracker.Tracker {
	return a.tracker
}

// Analyze is a shorthand for the default analyzer with a background context.
func Analyze(maneuvers []model.Maneuver, samples []model.Sample) []model.Tack {
	tacks, _ := NewAnalyzer(DefaultConfig()).Analyze(context.Background(), maneuvers, samples)
	return tacks
}

// Analyze returns one record per accepted tack, in maneuver order.
// samples must be sorted by time and are never modified. Candidates whose
// analysis cannot complete are logged and left out. The only error is the
// context's.
func (a *Analyzer) Analyze(ctx context.Context, maneuvers []model.Maneuver, samples []model.Sample) ([]model.Tack, error) {
	candidates := a.candidates(maneuvers)
	if len(candidates) == 0 {
		return []model.Tack{}, nil
	}

	results := make([]*model.Tack, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, m := range candidates {
		i, m := i, m
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := a.analyzeOne(m, samples)
			if err != nil {
				a.logger.Warn("Skipping tack", "time", m.Start, "board", m.Board, "error", err)
				a.tracker.TrackSkipped(string(m.Board))
				return nil
			}
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tacks := make([]model.Tack, 0, len(results))
	for _, t := range results {
		if t != nil {
			tacks = append(tacks, *t)
		}
	}

	a.logger.Debug("Tack analysis complete", "candidates", len(candidates), "tacks", len(tacks))
	return tacks, nil
}

// candidates selects upwind-to-upwind transitions that are not crowded by
// the next maneuver. The first two maneuvers are never candidates.
func (a *Analyzer) candidates(maneuvers []model.Maneuver) []model.Maneuver {
	var out []model.Maneuver
	for i := 2; i < len(maneuvers); i++ {
		cur, prev := maneuvers[i], maneuvers[i-1]
		if !cur.Board.Upwind() {
			continue
		}

		board := string(cur.Board)
		if prev.Board == model.BoardPreStart {
			a.logger.Debug("Rejecting tack out of pre-start", "time", cur.Start)
			a.tracker.TrackCandidate(board)
			a.tracker.TrackRejected(board)
			continue
		}
		if !prev.Board.Upwind() {
			continue
		}

		a.tracker.TrackCandidate(board)
		if i+1 < len(maneuvers) && maneuvers[i+1].Start.Add(-a.cfg.MinSpacing).Before(cur.Start) {
			a.logger.Debug("Rejecting crowded tack", "time", cur.Start, "next", maneuvers[i+1].Start)
			a.tracker.TrackRejected(board)
			continue
		}

		out = append(out, cur)
	}
	return out
}

// analyzeOne runs every phase for one candidate.
func (a *Analyzer) analyzeOne(m model.Maneuver, samples []model.Sample) (*model.Tack, error) {
	window := workingWindow(samples, m.Start, &a.cfg)

	t := &model.Tack{
		ID:    uuid.NewString(),
		Time:  m.Start,
		Board: m.Board,
		Notes: []string{},
	}
	an := &analysis{cfg: &a.cfg, window: window, tack: t}

	if err := an.findCenter(); err != nil {
		return nil, err
	}
	an.findStart()
	an.calculateEntrySpeeds()
	an.findEnd()
	an.findRecoveryTime()
	an.findRecoveryMetrics()
	an.addClassificationStats()
	an.convertIndexesToTimes()
	an.calculateLoss()

	logging.Trace(a.logger, "Tack phases", "time", m.Start,
		"center", an.idx.Center, "start", an.idx.Start, "end", an.idx.End, "recovered", an.idx.Recovered,
		"window", len(window))

	board := string(m.Board)
	a.tracker.TrackAnalyzed(board)
	a.tracker.TrackFallbacks(board, an.fallbacks)
	if an.fallbacks > 0 {
		a.logger.Debug("Tack analyzed with fallbacks", "time", m.Start, "notes", t.Notes)
	}

	return t, nil
}
