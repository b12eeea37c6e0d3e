// Package stream provides stateful transforms that derive new channels from a
// sequence of sparse samples, one sample at a time.
//
// Each transform keeps its prior state in explicit fields and is not safe for
// concurrent use; feed it from a single goroutine in timestamp order.
package stream

import (
	"github.com/HomegrownMarine/sailing-calculations/pkg/geo"
	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
)

// Emission is a named value produced by a transform.
type Emission struct {
	Name  string
	Value float64
}

// Combinator consumes samples and occasionally emits a value.
type Combinator interface {
	Update(s model.Sample) (Emission, bool)
}

// Derivative emits the rate of change of Field per second, multiplied by Scale.
// When Angular is set the change is taken the short way round the compass.
type Derivative struct {
	Name    string
	Field   model.Field
	Scale   float64
	Angular bool

	last     float64
	lastTime int64 // unix nanos
	hasLast  bool
}

// NewDerivative creates a derivative transform. A zero scale means 1.
func NewDerivative(name string, field model.Field, scale float64) *Derivative {
	return &Derivative{Name: name, Field: field, Scale: scale}
}

func (d *Derivative) scale() float64 {
	if d.Scale == 0 {
		return 1
	}
	return d.Scale
}

// Update emits once a previous value exists. The previous value and time are
// replaced on every sample carrying Field, emitted or not. Samples at the
// same instant as the previous one emit nothing.
func (d *Derivative) Update(s model.Sample) (Emission, bool) {
	v, ok := s.Get(d.Field)
	if !ok {
		return Emission{}, false
	}

	now := s.T.UnixNano()
	var (
		out     Emission
		emitted bool
	)
	if d.hasLast && now != d.lastTime {
		dt := float64(now-d.lastTime) / 1e9
		diff := v - d.last
		if d.Angular {
			diff = geo.Steer(d.last, v)
		}
		out = Emission{Name: d.Name, Value: diff / dt * d.scale()}
		emitted = true
	}

	d.last = v
	d.lastTime = now
	d.hasLast = true
	return out, emitted
}

// RollingAverage emits the mean of the last Size values of Field.
// Until the buffer fills, the mean is over the values seen so far.
type RollingAverage struct {
	Name  string
	Field model.Field

	window []float64
	next   int
	filled int
	sum    float64
}

// NewRollingAverage creates a rolling mean over size values (at least 1).
func NewRollingAverage(name string, field model.Field, size int) *RollingAverage {
	if size < 1 {
		size = 1
	}
	return &RollingAverage{
		Name:   name,
		Field:  field,
		window: make([]float64, size),
	}
}

// Update emits on every sample carrying Field.
func (r *RollingAverage) Update(s model.Sample) (Emission, bool) {
	v, ok := s.Get(r.Field)
	if !ok {
		return Emission{}, false
	}

	if r.filled == len(r.window) {
		r.sum -= r.window[r.next]
	} else {
		r.filled++
	}
	r.window[r.next] = v
	r.sum += v
	r.next = (r.next + 1) % len(r.window)

	return Emission{Name: r.Name, Value: r.sum / float64(r.filled)}, true
}

// AllFieldsPresent calls Fn once every one of Fields has been seen, possibly
// spread over several samples. Values are passed in Fields order; the latest
// value of each field wins. The buffer is cleared after each call.
type AllFieldsPresent struct {
	Name   string
	Fields []model.Field
	Fn     func(values []float64) float64

	values []float64
	seen   []bool
}

// NewAllFieldsPresent creates the gate. name is the key of the emitted value.
func NewAllFieldsPresent(name string, fn func(values []float64) float64, fields ...model.Field) *AllFieldsPresent {
	return &AllFieldsPresent{
		Name:   name,
		Fields: fields,
		Fn:     fn,
	}
}

// Update buffers the fields present on s and emits when the set is complete.
func (a *AllFieldsPresent) Update(s model.Sample) (Emission, bool) {
	if len(a.values) != len(a.Fields) {
		a.values = make([]float64, len(a.Fields))
		a.seen = make([]bool, len(a.Fields))
	}

	complete := true
	for i, f := range a.Fields {
		if v, ok := s.Get(f); ok {
			a.values[i] = v
			a.seen[i] = true
		}
		if !a.seen[i] {
			complete = false
		}
	}
	if !complete {
		return Emission{}, false
	}

	args := make([]float64, len(a.values))
	copy(args, a.values)
	for i := range a.seen {
		a.seen[i] = false
	}
	return Emission{Name: a.Name, Value: a.Fn(args)}, true
}

// GroundTrack emits the course over ground across the last Size positions.
// Samples that already carry cog are trusted and emit nothing, but their
// position still enters the window.
type GroundTrack struct {
	Name string

	buf *geo.TrackBuffer
}

// NewGroundTrack creates a ground track transform over size positions.
func NewGroundTrack(name string, size int) *GroundTrack {
	return &GroundTrack{Name: name, buf: geo.NewTrackBuffer(size)}
}

// Update emits once two distinct positions have been seen.
func (g *GroundTrack) Update(s model.Sample) (Emission, bool) {
	p := model.PositionOf(s)
	if p == nil {
		return Emission{}, false
	}
	track, ok := g.buf.Push(*p)
	if !ok || s.Has(model.FieldCOG) {
		return Emission{}, false
	}
	return Emission{Name: g.Name, Value: track}, true
}
