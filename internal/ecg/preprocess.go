package ecg

import (
	"patient-monitor/internal/domain"
	"patient-monitor/internal/dsp"
)

// Mains lists the power line frequencies removed by Preprocess.
var Mains = []float64{50, 60}

// Preprocess removes baseline wander below 0.5 Hz, noise above 40 Hz and
// power line hum. Filters whose corner lies at or above Nyquist are skipped.
func Preprocess(samples []domain.Sample, rate float64) []domain.Sample {
	if len(samples) < 2 || rate <= 0 {
		return samples
	}
	nyquist := rate / 2
	chain := dsp.Cascade{dsp.HighPass(0.5, rate)}
	if nyquist > 40 {
		chain = append(chain, dsp.LowPass(40, rate))
	}
	for _, hz := range Mains {
		if hz < nyquist {
			chain = append(chain, dsp.Notch(hz, 30, rate))
		}
	}

	filtered := chain.FiltFilt(values(samples))
	out := make([]domain.Sample, len(samples))
	for i, s := range samples {
		out[i] = domain.Sample{Time: s.Time, Value: filtered[i]}
	}
	return out
}
