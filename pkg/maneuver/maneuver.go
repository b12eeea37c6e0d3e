// Package maneuver labels each sample with the board the boat is sailing on
// and groups the labels into maneuvers.
package maneuver

import (
	"time"

	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
	"github.com/HomegrownMarine/sailing-calculations/pkg/segment"
)

// DefaultPreStart is the elapsed race time below which every sample is pre-start.
const DefaultPreStart = 300 * time.Second

// Classifier assigns boards to samples.
type Classifier struct {
	// PreStart overrides the wind-angle label while ot is below it.
	PreStart time.Duration
}

// NewClassifier creates a classifier. A non-positive preStart uses DefaultPreStart.
func NewClassifier(preStart time.Duration) *Classifier {
	if preStart <= 0 {
		preStart = DefaultPreStart
	}
	return &Classifier{PreStart: preStart}
}

// Board labels a single sample. Pre-start wins over the wind angle;
// otherwise a sample without twa has no label.
func (c *Classifier) Board(s model.Sample) (model.Board, bool) {
	if ot, ok := s.Get(model.FieldOT); ok && ot < c.PreStart.Seconds() {
		return model.BoardPreStart, true
	}

	twa, ok := s.Get(model.FieldTWA)
	if !ok {
		return "", false
	}

	switch {
	case -90 <= twa && twa < 0:
		return model.BoardUpwindPort, true
	case twa < -90:
		return model.BoardDownwindPort, true
	case twa > 90:
		return model.BoardDownwindStarboard, true
	default:
		return model.BoardUpwindStarboard, true
	}
}

// Classify splits samples into maneuvers of constant board.
func (c *Classifier) Classify(samples []model.Sample) []model.Maneuver {
	segs := segment.ChangeSegments(samples, c.Board)

	out := make([]model.Maneuver, len(segs))
	for i, seg := range segs {
		out[i] = model.Maneuver{Board: seg.Label, Start: seg.Start, End: seg.End}
	}
	return out
}

var defaultClassifier = NewClassifier(DefaultPreStart)

// Board labels s with the default pre-start threshold.
func Board(s model.Sample) (model.Board, bool) {
	return defaultClassifier.Board(s)
}

// Classify splits samples into maneuvers with the default pre-start threshold.
func Classify(samples []model.Sample) []model.Maneuver {
	return defaultClassifier.Classify(samples)
}
