package ecg

import (
	"patient-monitor/internal/domain"
	"patient-monitor/internal/dsp"
)

const (
	// P waves are sought in [R-pSearchStart, R-pSearchEnd].
	pSearchStart = 0.2
	pSearchEnd   = 0.05
	// A P candidate must reach this fraction of the filtered R height.
	pMinFraction = 0.1
	// Fewer beats than this share with a visible P wave counts against sinus rhythm.
	pExpectedShare = 70.0
	pIrregularCV   = 0.2
)

// PWaveReport describes atrial activity ahead of each QRS complex.
type PWaveReport struct {
	Present     []bool
	PRIntervals []float64
	Locations   []float64
	// PresentPct is the share of beats preceded by a P wave.
	PresentPct float64
	MeanPR     float64
	// Regularity is the coefficient of variation of P-P spacing.
	Regularity float64
	// AFibEvidence grows with missing and irregular P waves, 0..100.
	AFibEvidence float64
}

// DetectPWaves looks for a P wave before every beat on a 1-10 Hz band-passed
// copy of the signal.
func DetectPWaves(samples []domain.Sample, rate float64, beats []domain.Beat) (PWaveReport, bool) {
	if len(beats) < 2 || rate <= 20 {
		return PWaveReport{}, false
	}
	filtered := dsp.Bandpass(1, 10, rate).FiltFilt(values(samples))

	report := PWaveReport{
		Present:     make([]bool, len(beats)),
		PRIntervals: make([]float64, len(beats)),
	}
	start, end := int(pSearchStart*rate), int(pSearchEnd*rate)
	var found int
	var prSum float64
	for i, b := range beats {
		r := indexAt(samples, b.Time)
		if r-start < 1 {
			continue
		}
		height := filtered[r]
		if height <= 0 {
			continue
		}
		best := -1
		for j := r - start; j < r-end; j++ {
			if filtered[j] <= filtered[j-1] || filtered[j] < filtered[j+1] {
				continue
			}
			if filtered[j] < pMinFraction*height {
				continue
			}
			if best < 0 || filtered[j] > filtered[best] {
				best = j
			}
		}
		if best < 0 {
			continue
		}
		report.Present[i] = true
		report.PRIntervals[i] = b.Time - samples[best].Time
		report.Locations = append(report.Locations, samples[best].Time)
		prSum += report.PRIntervals[i]
		found++
	}

	report.PresentPct = 100 * float64(found) / float64(len(beats))
	if found > 0 {
		report.MeanPR = prSum / float64(found)
	}
	if len(report.Locations) > 2 {
		pp := make([]float64, len(report.Locations)-1)
		for i := range pp {
			pp[i] = report.Locations[i+1] - report.Locations[i]
		}
		mean, std := meanStd(pp)
		if mean > 0 {
			report.Regularity = std / mean
		}
	}

	if report.PresentPct < pExpectedShare {
		report.AFibEvidence = 100 * (pExpectedShare - report.PresentPct) / pExpectedShare
	}
	if report.Regularity > pIrregularCV {
		report.AFibEvidence += 100 * report.Regularity
	}
	report.AFibEvidence = min(report.AFibEvidence, 100)
	return report, true
}
