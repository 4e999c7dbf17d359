package beats

import (
	"cmp"
	"math"
	"slices"

	"patient-monitor/internal/domain"
)

const (
	DefaultRefractory     = 0.6
	DefaultHeightFraction = 0.6

	flatEpsilon = 1e-9
)

// Options tune peak search. Zero values fall back to the defaults.
type Options struct {
	// Refractory is the minimum spacing between accepted peaks, in seconds.
	Refractory float64
	// HeightFraction places the threshold between the window minimum (0) and maximum (1).
	HeightFraction float64
}

func (o Options) withDefaults() Options {
	if o.Refractory <= 0 {
		o.Refractory = DefaultRefractory
	}
	if o.HeightFraction <= 0 || o.HeightFraction >= 1 {
		o.HeightFraction = DefaultHeightFraction
	}
	return o
}

// Detect returns the R peaks in samples, ordered by time.
//
// A sample is a candidate when it is a local maximum above the relative
// threshold. Candidates are accepted tallest first; one is dropped when an
// already accepted peak lies within the refractory window. Equal heights
// favour the earlier candidate.
func Detect(samples []domain.Sample, opts Options) []domain.Beat {
	opts = opts.withDefaults()
	threshold, ok := heightThreshold(samples, opts)
	if !ok {
		return nil
	}
	return selectPeaks(candidates(samples, threshold, math.Inf(-1)), opts.Refractory)
}

// heightThreshold places the candidate threshold within the signal range.
// It reports false for signals too short or too flat to hold a peak.
func heightThreshold(samples []domain.Sample, opts Options) (float64, bool) {
	if len(samples) < 3 {
		return 0, false
	}
	lo, hi := samples[0].Value, samples[0].Value
	for _, s := range samples[1:] {
		lo = min(lo, s.Value)
		hi = max(hi, s.Value)
	}
	if hi-lo <= flatEpsilon {
		return 0, false
	}
	return lo + opts.HeightFraction*(hi-lo), true
}

// candidates lists local maxima above threshold at or after from.
func candidates(samples []domain.Sample, threshold, from float64) []domain.Sample {
	var out []domain.Sample
	for i := 1; i < len(samples)-1; i++ {
		cur := samples[i]
		if cur.Time < from || cur.Value <= threshold {
			continue
		}
		if cur.Value <= samples[i-1].Value || cur.Value < samples[i+1].Value {
			continue
		}
		out = append(out, cur)
	}
	return out
}

func selectPeaks(peaks []domain.Sample, refractory float64) []domain.Beat {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(peaks[b].Value, peaks[a].Value)
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for _, i := range order {
		if !keep[i] {
			continue
		}
		for j := i - 1; j >= 0 && peaks[i].Time-peaks[j].Time < refractory; j-- {
			keep[j] = false
		}
		for j := i + 1; j < len(peaks) && peaks[j].Time-peaks[i].Time < refractory; j++ {
			keep[j] = false
		}
	}

	var beats []domain.Beat
	for i, p := range peaks {
		if keep[i] {
			beats = append(beats, domain.Beat{Time: p.Time})
		}
	}
	return beats
}
