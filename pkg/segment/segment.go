// Package segment splits time-ordered samples into labelled runs and fixed
// time buckets.
package segment

import (
	"math"
	"sort"
	"time"

	"github.com/HomegrownMarine/sailing-calculations/pkg/model"

	"gonum.org/v1/gonum/stat"
)

// DefaultBucket is the SummaryBuckets width used when none is given.
const DefaultBucket = 10 * time.Second

// Segment is a run of samples sharing one label, over [Start, End).
type Segment[L any] struct {
	Start time.Time
	End   time.Time
	Label L
}

// ChangeSegments walks samples in order and closes a segment every time the
// label changes. classify returns false for samples without a label; those
// are gaps and neither open nor close a segment. Leading unlabelled samples
// are skipped. The last open segment ends at the last labelled sample.
func ChangeSegments[L comparable](samples []model.Sample, classify func(model.Sample) (L, bool)) []Segment[L] {
	var (
		segs    []Segment[L]
		current L
		start   time.Time
		last    time.Time
		open    bool
	)

	for _, s := range samples {
		label, ok := classify(s)
		if !ok {
			continue
		}
		if !open {
			current, start, open = label, s.T, true
		} else if label != current {
			segs = append(segs, Segment[L]{Start: start, End: s.T, Label: current})
			current, start = label, s.T
		}
		last = s.T
	}

	if open {
		segs = append(segs, Segment[L]{Start: start, End: last, Label: current})
	}
	return segs
}

// Bucket is the mean of one field over a time bucket.
// Mean is NaN when no sample in the bucket carries the field.
type Bucket struct {
	Start time.Time
	End   time.Time
	Field model.Field
	Mean  float64
	Count int
}

// SummaryBuckets averages field over consecutive buckets of the given width.
// The first bucket starts at the first sample. A sample later than
// start+width closes the bucket at its own time and opens the next one there.
// The trailing partial bucket ends at the last sample.
func SummaryBuckets(samples []model.Sample, field model.Field, width time.Duration) []Bucket {
	if len(samples) == 0 {
		return nil
	}
	if width <= 0 {
		width = DefaultBucket
	}

	var (
		buckets []Bucket
		values  []float64
		start   = samples[0].T
	)

	closeBucket := func(end time.Time) {
		mean := math.NaN()
		if len(values) > 0 {
			mean = stat.Mean(values, nil)
		}
		buckets = append(buckets, Bucket{Start: start, End: end, Field: field, Mean: mean, Count: len(values)})
		values = values[:0]
	}

	for _, s := range samples {
		if s.T.After(start.Add(width)) {
			closeBucket(s.T)
			start = s.T
		}
		if v, ok := s.Get(field); ok {
			values = append(values, v)
		}
	}
	closeBucket(samples[len(samples)-1].T)

	return buckets
}

// Window is a segment together with the samples that fall inside it.
type Window[L any] struct {
	Segment[L]
	Samples []model.Sample
}

// SegmentData attaches to each segment the samples with Start <= t < End.
// The returned slices alias samples.
func SegmentData[L any](samples []model.Sample, segs []Segment[L]) []Window[L] {
	out := make([]Window[L], len(segs))
	for i, seg := range segs {
		from := SortedIndex(samples, seg.Start)
		to := SortedIndex(samples, seg.End)
		if to < from {
			to = from
		}
		out[i] = Window[L]{Segment: seg, Samples: samples[from:to]}
	}
	return out
}

// SortedIndex returns the leftmost index at which a sample at t could be
// inserted while keeping samples ordered.
func SortedIndex(samples []model.Sample, t time.Time) int {
	return sort.Search(len(samples), func(i int) bool {
		return !samples[i].T.Before(t)
	})
}
