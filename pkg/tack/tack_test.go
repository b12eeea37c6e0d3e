package tack

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/HomegrownMarine/sailing-calculations/pkg/geo"
	"github.com/HomegrownMarine/sailing-calculations/pkg/maneuver"
	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
	"github.com/HomegrownMarine/sailing-calculations/pkg/wind"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2014, 6, 1, 12, 0, 0, 0, time.UTC)

func ts(i int) time.Time {
	return t0.Add(time.Duration(i) * time.Second)
}

// course builds a 1 Hz close-hauled track in a steady 12 kt breeze from 040,
// starting on starboard and tacking at each given index. The twa crosses
// zero at the tack index; the turn takes ten seconds, overshoots to 45 degrees
// five seconds after the crossing and the boat is back to full speed thirty
// seconds after it.
func course(n int, tacks ...int) []model.Sample {
	const (
		fullSpeed = 6.5
		target    = 6.6
	)

	lat, lon := 47.68, -122.40
	out := make([]model.Sample, 0, n)

	for i := 0; i < n; i++ {
		twa, hdg, rot, speed := 40.0, 0.0, 0.0, fullSpeed

		for j, k := range tacks {
			d := i - k
			if d < -5 {
				break
			}

			old := 1.0 // +1 starboard, -1 port
			if j%2 == 1 {
				old = -1
			}
			hdgOld := 40 - 40*old

			switch {
			case d <= 4:
				twa = old * (36 - 8*float64(d+5))
				hdg = hdgOld + old*8*float64(d+6)
				rot = old * 8
				speed = fullSpeed - 3*float64(d+5)/10
			case d == 5:
				twa, hdg, rot, speed = -old*45, 80-hdgOld, 0, 3.5
			case d <= 30:
				twa, hdg, rot = -old*40, 80-hdgOld, 0
				if d == 6 {
					twa = -old * 42
				}
				speed = 3.5 + 3.1*float64(d-5)/25
			default:
				twa, hdg, rot, speed = -old*40, 80-hdgOld, 0, fullSpeed
			}
		}

		s := model.NewSample(ts(i)).
			With(model.FieldOT, 280+float64(i)).
			With(model.FieldLat, lat).
			With(model.FieldLon, lon).
			With(model.FieldHdg, math.Mod(hdg+360, 360)).
			With(model.FieldROT, rot).
			With(model.FieldSpeed, speed).
			With(model.FieldTWA, twa).
			With(model.FieldTWS, 12).
			With(model.FieldTWD, 40).
			With(model.FieldVMG, wind.VMG(speed, twa)).
			With(model.FieldTargetSpeed, target).
			With(model.FieldTargetAngle, 40)
		out = append(out, s)

		lat, lon = geo.DestinationPoint(lat, lon, speed/3600, hdg)
	}
	return out
}

func quietAnalyzer(cfg Config) *Analyzer {
	return NewAnalyzer(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestAnalyzeStarboardToPort(t *testing.T) {
	samples := course(230, 100)

	ms := maneuver.Classify(samples)
	require.Len(t, ms, 3)
	assert.Equal(t, model.BoardPreStart, ms[0].Board)
	assert.Equal(t, model.BoardUpwindStarboard, ms[1].Board)
	assert.Equal(t, model.BoardUpwindPort, ms[2].Board)

	tacks := Analyze(ms, samples)
	require.Len(t, tacks, 1)

	tk := tacks[0]
	assert.Equal(t, model.BoardUpwindPort, tk.Board)
	assert.Empty(t, tk.Notes)
	assert.NotEmpty(t, tk.ID)
	assert.True(t, tk.Time.Equal(ts(100)))

	assert.True(t, tk.Timing.Ordered(), "timing out of order: %+v", tk.Timing)
	assert.True(t, tk.Timing.Center.Equal(ts(99)), "center %v", tk.Timing.Center)
	assert.True(t, tk.Timing.Start.Equal(ts(94)), "start %v", tk.Timing.Start)
	assert.True(t, tk.Timing.End.Equal(ts(105)), "end %v", tk.Timing.End)
	assert.True(t, tk.Timing.Recovered.Equal(ts(130)), "recovered %v", tk.Timing.Recovered)

	require.NotNil(t, tk.Loss)
	assert.Greater(t, *tk.Loss, 0.0)

	require.NotNil(t, tk.MaxTWA)
	assert.InDelta(t, -45, *tk.MaxTWA, 1e-9)
	require.NotNil(t, tk.EntrySpeed)
	assert.InDelta(t, 6.5, *tk.EntrySpeed, 1e-9)
	require.NotNil(t, tk.EntryVMG)
	assert.InDelta(t, wind.VMG(6.5, 40), *tk.EntryVMG, 1e-9)
	require.NotNil(t, tk.EntryHdg)
	assert.InDelta(t, 0, math.Min(*tk.EntryHdg, 360-*tk.EntryHdg), 1e-6)
	require.NotNil(t, tk.TWS)
	assert.InDelta(t, 12, *tk.TWS, 1e-9)
	require.NotNil(t, tk.TWD)
	assert.InDelta(t, 40, *tk.TWD, 1e-6)
	require.NotNil(t, tk.RecoveryHdg)
	assert.InDelta(t, 80, *tk.RecoveryHdg, 1e-6)

	require.NotNil(t, tk.Position)
	require.NotNil(t, tk.StartPosition)
	require.NotNil(t, tk.EndPosition)
	assert.Greater(t, tk.EndPosition.Lat(), tk.StartPosition.Lat())
}

func TestAnalyzeParallelKeepsOrder(t *testing.T) {
	samples := course(330, 100, 200)
	ms := maneuver.Classify(samples)

	serial, err := quietAnalyzer(Config{Workers: 1}).Analyze(context.Background(), ms, samples)
	require.NoError(t, err)
	require.Len(t, serial, 2)
	assert.Equal(t, model.BoardUpwindPort, serial[0].Board)
	assert.Equal(t, model.BoardUpwindStarboard, serial[1].Board)

	parallel, err := quietAnalyzer(Config{Workers: 4}).Analyze(context.Background(), ms, samples)
	require.NoError(t, err)

	if diff := cmp.Diff(serial, parallel, cmpopts.IgnoreFields(model.Tack{}, "ID")); diff != "" {
		t.Errorf("parallel analysis differs (-serial +parallel):\n%s", diff)
	}

	for _, tk := range parallel {
		assert.True(t, tk.Timing.Ordered())
		assert.Empty(t, tk.Notes)
	}
	// port to starboard settles on the highest twa
	require.NotNil(t, parallel[1].MaxTWA)
	assert.InDelta(t, 45, *parallel[1].MaxTWA, 1e-9)
}

func TestAnalyzeDoesNotMutateSamples(t *testing.T) {
	samples := course(230, 100)
	before := make([]model.Sample, len(samples))
	copy(before, samples)

	Analyze(maneuver.Classify(samples), samples)
	assert.Equal(t, before, samples)
}

func TestAnalyzeCancelled(t *testing.T) {
	samples := course(230, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietAnalyzer(DefaultConfig()).Analyze(ctx, maneuver.Classify(samples), samples)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeCenterNotFound(t *testing.T) {
	samples := course(230, 100)
	ms := []model.Maneuver{
		{Board: model.BoardUpwindStarboard, Start: ts(-300), End: ts(-200)},
		{Board: model.BoardUpwindPort, Start: ts(-200), End: ts(-100)},
		{Board: model.BoardUpwindStarboard, Start: ts(-100), End: ts(0)},
	}

	a := quietAnalyzer(DefaultConfig())
	tacks, err := a.Analyze(context.Background(), ms, samples)
	require.NoError(t, err)
	assert.Empty(t, tacks)

	stats := a.Tracker().Snapshot()[string(model.BoardUpwindStarboard)]
	assert.Equal(t, int64(1), stats.Candidates)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Equal(t, int64(0), stats.Analyzed)
}

func TestFindCenterErrors(t *testing.T) {
	an := &analysis{
		cfg:    &Config{},
		window: course(10),
		tack:   &model.Tack{Time: ts(0)},
	}
	err := an.findCenter()
	assert.ErrorIs(t, err, ErrCenterNotFound)

	an.window = nil
	assert.ErrorIs(t, an.findCenter(), ErrCenterNotFound)
}

func TestFindCenterApproximate(t *testing.T) {
	samples := course(230, 100)
	ms := maneuver.Classify(samples)
	ms[2].Start = ms[2].Start.Add(500 * time.Millisecond)

	a := quietAnalyzer(DefaultConfig())
	tacks, err := a.Analyze(context.Background(), ms, samples)
	require.NoError(t, err)
	require.Len(t, tacks, 1)

	assert.Contains(t, tacks[0].Notes, NoteCenterApprox)
	assert.True(t, tacks[0].Timing.Center.Equal(ts(100)))
	assert.Equal(t, int64(1), a.Tracker().Total().Fallbacks)
}

func TestAnalyzeFallbacks(t *testing.T) {
	samples := course(230, 100)
	for i := range samples {
		samples[i] = samples[i].Without(model.FieldROT)
		if i >= 100 {
			samples[i] = samples[i].Without(model.FieldVMG)
		}
	}

	a := quietAnalyzer(DefaultConfig())
	tacks, err := a.Analyze(context.Background(), maneuver.Classify(samples), samples)
	require.NoError(t, err)
	require.Len(t, tacks, 1)

	tk := tacks[0]
	assert.Contains(t, tk.Notes, NoteStartNotFound)
	assert.Contains(t, tk.Notes, NoteRecoveryNotFound)
	assert.True(t, tk.Timing.Ordered())

	// window starts at t(80): default start index 15, recovery center+30
	assert.True(t, tk.Timing.Start.Equal(ts(95)), "start %v", tk.Timing.Start)
	assert.True(t, tk.Timing.Recovered.Equal(ts(129)), "recovered %v", tk.Timing.Recovered)

	assert.Equal(t, int64(2), a.Tracker().Total().Fallbacks)
}

func TestPhaseIndicesOrdered(t *testing.T) {
	withoutROT := func(samples []model.Sample) []model.Sample {
		for i := range samples {
			samples[i] = samples[i].Without(model.FieldROT)
			if i >= 100 {
				samples[i] = samples[i].Without(model.FieldVMG)
			}
		}
		return samples
	}

	tests := []struct {
		name    string
		samples []model.Sample
		cfg     func(*Config)
		want    model.TimingIndices
	}{
		{
			name:    "dense course",
			samples: course(230, 100),
			want:    model.TimingIndices{Center: 19, Start: 14, End: 25, Recovered: 50},
		},
		{
			name:    "start and recovery fallbacks",
			samples: withoutROT(course(230, 100)),
			want:    model.TimingIndices{Center: 19, Start: 15, End: 25, Recovered: 49},
		},
		{
			name:    "default start clamped to center",
			samples: withoutROT(course(230, 100)),
			cfg:     func(c *Config) { c.DefaultStart = 40 },
			want:    model.TimingIndices{Center: 19, Start: 19, End: 25, Recovered: 49},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			ms := maneuver.Classify(tt.samples)
			require.Len(t, ms, 3)
			m := ms[2]

			an := &analysis{
				cfg:    &cfg,
				window: workingWindow(tt.samples, m.Start, &cfg),
				tack:   &model.Tack{Time: m.Start, Board: m.Board},
			}
			require.NoError(t, an.findCenter())
			an.findStart()
			an.calculateEntrySpeeds()
			an.findEnd()
			an.findRecoveryTime()
			an.findRecoveryMetrics()
			an.addClassificationStats()

			assert.True(t, an.idx.Ordered(), "indices out of order: %+v", an.idx)
			assert.Equal(t, tt.want, an.idx)

			an.convertIndexesToTimes()
			assert.True(t, an.tack.Timing.Ordered(), "instants out of order: %+v", an.tack.Timing)
		})
	}
}

func TestAnalyzeDownspeed(t *testing.T) {
	samples := course(230, 100)
	for i := range samples {
		samples[i] = samples[i].With(model.FieldTargetSpeed, 8)
	}

	tacks := Analyze(maneuver.Classify(samples), samples)
	require.Len(t, tacks, 1)
	assert.Contains(t, tacks[0].Notes, NoteEntryDownspeed)
	assert.Contains(t, tacks[0].Notes, NoteRecoveryDownspeed)
}

func TestAnalyzeWithoutVMG(t *testing.T) {
	samples := course(230, 100)
	for i := range samples {
		samples[i] = samples[i].Without(model.FieldVMG)
	}

	tacks := Analyze(maneuver.Classify(samples), samples)
	require.Len(t, tacks, 1)
	assert.Nil(t, tacks[0].EntryVMG)
	assert.Nil(t, tacks[0].Loss)
	assert.Contains(t, tacks[0].Notes, NoteLossUndefined)
	assert.True(t, tacks[0].Timing.Ordered())
}

func TestCandidates(t *testing.T) {
	m := func(b model.Board, start int) model.Maneuver {
		return model.Maneuver{Board: b, Start: ts(start), End: ts(start + 1)}
	}

	tests := []struct {
		name      string
		maneuvers []model.Maneuver
		want      []time.Time
	}{
		{
			name:      "Too few maneuvers",
			maneuvers: []model.Maneuver{m("U-S", 0), m("U-P", 100)},
			want:      nil,
		},
		{
			name:      "Upwind to upwind",
			maneuvers: []model.Maneuver{m("PS", 0), m("U-S", 100), m("U-P", 200)},
			want:      []time.Time{ts(200)},
		},
		{
			name:      "Out of pre-start",
			maneuvers: []model.Maneuver{m("U-S", 0), m("PS", 100), m("U-P", 200), m("U-S", 300)},
			want:      []time.Time{ts(300)},
		},
		{
			name:      "Bear away",
			maneuvers: []model.Maneuver{m("PS", 0), m("U-S", 100), m("D-S", 200), m("D-P", 300)},
			want:      nil,
		},
		{
			name:      "Crowded by next maneuver",
			maneuvers: []model.Maneuver{m("PS", 0), m("U-S", 100), m("U-P", 200), m("U-S", 244), m("U-P", 400)},
			want:      []time.Time{ts(244), ts(400)},
		},
		{
			name:      "Exactly spaced",
			maneuvers: []model.Maneuver{m("PS", 0), m("U-S", 100), m("U-P", 200), m("D-P", 245)},
			want:      []time.Time{ts(200)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := quietAnalyzer(DefaultConfig())
			var got []time.Time
			for _, c := range a.candidates(tt.maneuvers) {
				got = append(got, c.Start)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("candidates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindEndSeedsFromFirstTWA(t *testing.T) {
	window := []model.Sample{
		model.NewSample(ts(0)),
		model.NewSample(ts(1)),
		model.NewSample(ts(2)).With(model.FieldTWA, 20),
		model.NewSample(ts(3)).With(model.FieldTWA, 44),
		model.NewSample(ts(4)).With(model.FieldTWA, 41),
	}
	cfg := DefaultConfig()
	an := &analysis{
		cfg:    &cfg,
		window: window,
		idx:    model.TimingIndices{Center: 1},
		tack:   &model.Tack{Board: model.BoardUpwindStarboard},
	}

	an.findEnd()
	assert.Equal(t, 3, an.idx.End)
	require.NotNil(t, an.tack.MaxTWA)
	assert.InDelta(t, 44, *an.tack.MaxTWA, 1e-9)
	assert.Empty(t, an.tack.Notes)

	an.window = window[:2]
	an.tack = &model.Tack{Board: model.BoardUpwindPort}
	an.findEnd()
	assert.Equal(t, 1, an.idx.End)
	assert.Nil(t, an.tack.MaxTWA)
	assert.Contains(t, an.tack.Notes, NoteEndNotFound)
}

func TestCalculateLoss(t *testing.T) {
	vmg := func(i int, v float64) model.Sample {
		return model.NewSample(ts(i)).With(model.FieldVMG, v)
	}
	entry := 6.0
	an := &analysis{
		window: []model.Sample{
			vmg(0, 9), // before start, ignored
			vmg(1, 6),
			model.NewSample(ts(2)), // no vmg, skipped
			vmg(3, 3),
			vmg(4, 6),
			vmg(5, 9), // after recovery, ignored
		},
		tack: &model.Tack{
			EntryVMG: &entry,
			Timing:   model.TimingInstants{Start: ts(1), Center: ts(2), End: ts(3), Recovered: ts(4)},
		},
	}

	an.calculateLoss()

	// ideal 6*3 = 18, covered 2*3 + 1*6 = 12
	require.NotNil(t, an.tack.Loss)
	assert.InDelta(t, 6*6076.11549/3600, *an.tack.Loss, 1e-9)
}

func TestConfigDefaults(t *testing.T) {
	got := NewAnalyzer(Config{ROTThreshold: 4}).Config()
	want := DefaultConfig()
	want.ROTThreshold = 4
	assert.Equal(t, want, got)
}
