package beats

import (
	"cmp"
	"slices"

	"patient-monitor/internal/domain"
	"patient-monitor/internal/dsp"
)

// PanTompkinsOptions tune the offline QRS detector. Zero values use the defaults.
type PanTompkinsOptions struct {
	// Low and High bound the QRS band in Hz.
	Low, High float64
	// Integration is the moving-window width in seconds.
	Integration float64
	// ThresholdFactor scales the mean integrated energy into the peak threshold.
	ThresholdFactor float64
	// Distance is the minimum spacing between detections in seconds.
	Distance float64
	// Search is the half-width in seconds used to relocate each detection onto the R peak.
	Search float64
}

func (o PanTompkinsOptions) withDefaults() PanTompkinsOptions {
	if o.Low <= 0 {
		o.Low = 5
	}
	if o.High <= o.Low {
		o.High = 15
	}
	if o.Integration <= 0 {
		o.Integration = 0.08
	}
	if o.ThresholdFactor <= 0 {
		o.ThresholdFactor = 0.6
	}
	if o.Distance <= 0 {
		o.Distance = 0.2
	}
	if o.Search <= 0 {
		o.Search = 0.025
	}
	return o
}

// PanTompkins detects R peaks by band-passing the signal to the QRS band,
// differentiating, squaring and integrating over a moving window. Peaks of
// the integrated energy are relocated to the tallest raw sample nearby.
func PanTompkins(samples []domain.Sample, opts PanTompkinsOptions) []domain.Beat {
	opts = opts.withDefaults()
	rate := SampleRate(samples)
	if rate <= 0 || opts.High >= rate/2 {
		return nil
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	filtered := dsp.Bandpass(opts.Low, opts.High, rate).FiltFilt(values)
	energy := dsp.MovingAverage(dsp.Square(dsp.Diff(filtered)), int(opts.Integration*rate))
	if len(energy) < 3 {
		return nil
	}

	var mean float64
	for _, v := range energy {
		mean += v
	}
	mean /= float64(len(energy))
	if mean <= flatEpsilon {
		return nil
	}

	integrated := make([]domain.Sample, len(energy))
	for i, v := range energy {
		integrated[i] = domain.Sample{Time: samples[i].Time, Value: v}
	}
	coarse := selectPeaks(candidates(integrated, opts.ThresholdFactor*mean, samples[0].Time), opts.Distance)

	search := int(opts.Search * rate)
	out := make([]domain.Beat, 0, len(coarse))
	for _, b := range coarse {
		at, _ := slices.BinarySearchFunc(samples, b.Time, func(s domain.Sample, t float64) int {
			return cmp.Compare(s.Time, t)
		})
		if at < search || at >= len(samples)-search {
			continue
		}
		best := at - search
		for i := best + 1; i < at+search; i++ {
			if samples[i].Value > samples[best].Value {
				best = i
			}
		}
		out = append(out, domain.Beat{Time: samples[best].Time})
	}
	slices.SortFunc(out, func(a, b domain.Beat) int { return cmp.Compare(a.Time, b.Time) })
	return slices.Compact(out)
}

// SampleRate estimates samples per second from the sample timestamps.
func SampleRate(samples []domain.Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	span := samples[len(samples)-1].Time - samples[0].Time
	if span <= 0 {
		return 0
	}
	return float64(len(samples)-1) / span
}
