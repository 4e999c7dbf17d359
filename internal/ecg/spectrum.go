package ecg

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"patient-monitor/internal/domain"
	"patient-monitor/internal/dsp"
)

const (
	// The RR tachogram is resampled at hrvRate Hz before the Welch estimate.
	hrvRate    = 4.0
	hrvSegment = 256
	minHRVBeat = 10
)

// HRVReport is the frequency-domain view of heart rate variability.
type HRVReport struct {
	LF float64
	HF float64
	// Ratio is LF/HF; +Inf when HF carries no power.
	Ratio float64
	// HFShare is HF over total power.
	HFShare      float64
	AFibEvidence float64
}

// HRVSpectrum estimates low (0.04-0.15 Hz) and high (0.15-0.4 Hz) frequency
// power of the RR series. At least ten beats are required.
func HRVSpectrum(beats []domain.Beat) (HRVReport, bool) {
	if len(beats) < minHRVBeat {
		return HRVReport{}, false
	}
	rr := rrDurations(beats)
	at := make([]float64, len(rr)+1)
	series := make([]float64, len(rr)+1)
	series[0] = rr[0]
	for i, d := range rr {
		at[i+1] = at[i] + d
		series[i+1] = d
	}
	n := int(at[len(at)-1] * hrvRate)
	if n < 2 {
		return HRVReport{}, false
	}
	grid := make([]float64, n)
	floats.Span(grid, 0, float64(n-1)/hrvRate)

	tachogram := dsp.Detrend(dsp.Interp(grid, at, series))
	freqs, psd := dsp.Welch(tachogram, hrvRate, hrvSegment)
	if freqs == nil {
		return HRVReport{}, false
	}

	report := HRVReport{
		LF: dsp.BandPower(freqs, psd, 0.04, 0.15),
		HF: dsp.BandPower(freqs, psd, 0.15, 0.4),
	}
	report.Ratio = math.Inf(1)
	if report.HF > 0 {
		report.Ratio = report.LF / report.HF
	}
	if total := floats.Sum(psd); total > 0 {
		report.HFShare = report.HF / total
	}
	if report.Ratio < 0.5 {
		report.AFibEvidence += 30
	}
	if report.HFShare > 0.5 {
		report.AFibEvidence += 30
	}
	return report, true
}
