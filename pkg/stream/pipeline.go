package stream

import (
	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
	"github.com/HomegrownMarine/sailing-calculations/pkg/wind"
)

// Pipeline runs a fixed list of combinators over each sample in order.
// Emissions whose name is a known field fill that field on the sample when it
// is absent, so later combinators in the list can consume them. Recorded
// channels are never replaced.
type Pipeline struct {
	stages []Combinator
}

// NewPipeline creates a pipeline over the given combinators.
func NewPipeline(stages ...Combinator) *Pipeline {
	return &Pipeline{stages: stages}
}

// Apply feeds s through every stage. It returns the enriched sample and every
// emission in stage order, including those that did not map to a field.
func (p *Pipeline) Apply(s model.Sample) (model.Sample, []Emission) {
	var out []Emission
	for _, c := range p.stages {
		e, ok := c.Update(s)
		if !ok {
			continue
		}
		out = append(out, e)
		if f, known := model.ParseField(e.Name); known && !s.Has(f) {
			s = s.With(f, e.Value)
		}
	}
	return s, out
}

// Run applies the pipeline to every sample and returns the enriched copies.
func (p *Pipeline) Run(samples []model.Sample) []model.Sample {
	res := make([]model.Sample, len(samples))
	for i, s := range samples {
		res[i], _ = p.Apply(s)
	}
	return res
}

// DefaultTrackWindow is the number of positions Derived fits cog over.
const DefaultTrackWindow = 5

// Derived returns the standard enrichment chain: rate of turn from heading,
// cog from positions when the log has none, then true wind speed, true wind
// angle and vmg from boat speed and apparent wind. The wind stages may draw
// their inputs from different samples.
func Derived() *Pipeline {
	rot := NewDerivative(model.FieldROT.String(), model.FieldHdg, 1)
	rot.Angular = true

	return NewPipeline(
		rot,
		NewGroundTrack(model.FieldCOG.String(), DefaultTrackWindow),
		NewAllFieldsPresent(model.FieldTWS.String(), func(v []float64) float64 {
			return wind.TrueWindSpeed(v[0], v[1], v[2])
		}, model.FieldSpeed, model.FieldAWA, model.FieldAWS),
		NewAllFieldsPresent(model.FieldTWA.String(), func(v []float64) float64 {
			return wind.TrueWindAngle(v[0], v[1], v[2])
		}, model.FieldSpeed, model.FieldAWA, model.FieldTWS),
		NewAllFieldsPresent(model.FieldVMG.String(), func(v []float64) float64 {
			return wind.VMG(v[0], v[1])
		}, model.FieldSpeed, model.FieldTWA),
	)
}
