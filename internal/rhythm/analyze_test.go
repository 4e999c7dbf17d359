package rhythm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-monitor/internal/domain"
)

func spaced(start float64, gaps ...float64) []domain.Beat {
	out := []domain.Beat{{Time: start}}
	t := start
	for _, g := range gaps {
		t += g
		out = append(out, domain.Beat{Time: t})
	}
	return out
}

func repeat(gap float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = gap
	}
	return out
}

func TestAnalyzeRegularRates(t *testing.T) {
	cases := map[string]struct {
		gap   float64
		rate  float64
		class domain.Rhythm
	}{
		"one second":  {gap: 1.0, rate: 60, class: domain.RhythmNormal},
		"half second": {gap: 0.5, rate: 120, class: domain.RhythmTachycardia},
		"1.2 seconds": {gap: 1.2, rate: 50, class: domain.RhythmBradycardia},
		"0.8 seconds": {gap: 0.8, rate: 75, class: domain.RhythmNormal},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res := Analyze(spaced(1, repeat(tc.gap, 8)...), 10, Options{})

			require.True(t, res.Defined)
			assert.InDelta(t, tc.rate, res.HeartRate, 1e-6)
			assert.Equal(t, tc.class, res.Class)
			assert.InDelta(t, 0, res.CV, 1e-9)
		})
	}
}

func TestAnalyzeIrregularIsAtrialFibrillation(t *testing.T) {
	gaps := []float64{0.5, 1.0, 0.5, 1.0, 0.5, 1.0, 0.5, 1.0}

	res := Analyze(spaced(0, gaps...), 10, Options{})

	require.True(t, res.Defined)
	assert.InDelta(t, 80, res.HeartRate, 1e-6)
	assert.InDelta(t, 1.0/3, res.CV, 1e-9)
	assert.InDelta(t, 100, res.PNN50, 1e-9)
	assert.InDelta(t, 0.5, res.RMSSD, 1e-9)
	assert.Equal(t, domain.RhythmAtrialFibrillation, res.Class)
}

func TestAnalyzeRateTakesPrecedenceOverIrregularity(t *testing.T) {
	gaps := []float64{0.3, 0.6, 0.3, 0.6, 0.3, 0.6}

	res := Analyze(spaced(0, gaps...), 10, Options{})

	assert.Greater(t, res.CV, DefaultIrregularityCV)
	assert.Equal(t, domain.RhythmTachycardia, res.Class)
}

func TestAnalyzeInsufficientData(t *testing.T) {
	for name, beats := range map[string][]domain.Beat{
		"none": nil,
		"one":  {{Time: 3}},
	} {
		t.Run(name, func(t *testing.T) {
			res := Analyze(beats, 10, Options{})
			assert.False(t, res.Defined)
			assert.Equal(t, domain.RhythmNormal, res.Class)
			assert.Zero(t, res.HeartRate)
		})
	}
}

func TestAnalyzeUsesTrailingWindow(t *testing.T) {
	// Slow beats long ago, then a regular 1 s run.
	beats := spaced(0, 2, 2, 2)
	beats = append(beats, spaced(7, repeat(1, 5)...)...)

	res := Analyze(beats, 4, Options{})

	assert.Equal(t, 5, res.BeatCount)
	assert.InDelta(t, 60, res.HeartRate, 1e-9)
	assert.Equal(t, 12.0, res.WindowEnd)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	beats := spaced(0.3, 0.71, 0.93, 0.52, 1.04, 0.66, 0.88, 0.79)

	first := Analyze(beats, 10, Options{})
	second := Analyze(beats, 10, Options{})

	assert.Equal(t, first, second)
}

func TestAnalyzeCustomCutoffs(t *testing.T) {
	res := Analyze(spaced(0, repeat(0.7, 6)...), 10, Options{TachycardiaAbove: 80})
	assert.Equal(t, domain.RhythmTachycardia, res.Class)
}

func TestIntervalsSkipsNonPositive(t *testing.T) {
	beats := []domain.Beat{{Time: 1}, {Time: 1}, {Time: 2}, {Time: 1.5}, {Time: 3}}

	rr := Intervals(beats)

	require.Len(t, rr, 2)
	for _, iv := range rr {
		assert.Positive(t, iv.Duration)
		assert.Equal(t, iv.End.Time-iv.Start.Time, iv.Duration)
	}
}
