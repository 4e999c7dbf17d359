// Package ecg holds the offline waveform analyses that need the whole
// recording: P wave search, QRS morphology, frequency-domain HRV and the
// combined condition assessment.
package ecg

import (
	"patient-monitor/internal/domain"
	"patient-monitor/internal/rhythm"
)

// Report is the full offline analysis of one ECG recording.
type Report struct {
	PWaves   *PWaveReport
	QRS      *QRSReport
	HRV      *HRVReport
	Findings []Finding
}

// Analyze runs every analysis over samples and the beats detected in them.
// res is the rhythm classification of the same beats.
func Analyze(samples []domain.Sample, rate float64, beats []domain.Beat, res rhythm.Result, opts rhythm.Options) Report {
	var report Report
	if p, ok := DetectPWaves(samples, rate, beats); ok {
		report.PWaves = &p
	}
	if q, ok := AnalyzeQRS(samples, rate, beats); ok {
		report.QRS = &q
	}
	if h, ok := HRVSpectrum(beats); ok {
		report.HRV = &h
	}

	limit := opts.IrregularityCV
	if limit <= 0 {
		limit = rhythm.DefaultIrregularityCV
	}
	report.Findings = Assess(Evidence{
		Rhythm:    res,
		Irregular: res.Defined && res.CV > limit,
		Beats:     len(beats),
		PWaves:    report.PWaves,
		QRS:       report.QRS,
		HRV:       report.HRV,
	})
	return report
}
