package ecg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-monitor/internal/domain"
	"patient-monitor/internal/rhythm"
)

const fs = 250.0

type wave struct {
	at, amp, width float64
}

func render(duration float64, waves []wave) []domain.Sample {
	out := make([]domain.Sample, int(duration*fs))
	for i := range out {
		t := float64(i) / fs
		var v float64
		for _, w := range waves {
			d := (t - w.at) / w.width
			if math.Abs(d) < 6 {
				v += w.amp * math.Exp(-d*d/2)
			}
		}
		out[i] = domain.Sample{Time: t, Value: v}
	}
	return out
}

func normalBeat(t float64, withP bool) []wave {
	out := []wave{
		{t - 0.03, -0.1, 0.01},
		{t, 1, 0.01},
		{t + 0.03, -0.2, 0.01},
		{t + 0.25, 0.3, 0.04},
	}
	if withP {
		out = append(out, wave{t - 0.16, 0.15, 0.02})
	}
	return out
}

func pvcBeat(t float64) []wave {
	return []wave{
		{t - 0.08, -0.1, 0.01},
		{t, 1, 0.025},
		{t + 0.08, -0.3, 0.01},
	}
}

func lbbbBeat(t float64) []wave {
	return []wave{
		{t - 0.07, -0.1, 0.01},
		{t, 0.3, 0.01},
		{t + 0.07, -1, 0.02},
	}
}

func strip(times []float64, shape func(float64) []wave) ([]domain.Sample, []domain.Beat) {
	var waves []wave
	beats := make([]domain.Beat, len(times))
	for i, t := range times {
		waves = append(waves, shape(t)...)
		beats[i] = domain.Beat{Time: t}
	}
	return render(times[len(times)-1]+1, waves), beats
}

func regular(first, rr float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = first + float64(i)*rr
	}
	return out
}

func TestDetectPWavesSinus(t *testing.T) {
	samples, beats := strip(regular(0.5, 0.8, 12), func(t float64) []wave { return normalBeat(t, true) })

	report, ok := DetectPWaves(samples, fs, beats)

	require.True(t, ok)
	assert.InDelta(t, 100, report.PresentPct, 1e-9)
	assert.InDelta(t, 0.16, report.MeanPR, 0.02)
	assert.Len(t, report.Locations, 12)
	assert.Less(t, report.Regularity, 0.05)
	assert.Zero(t, report.AFibEvidence)
}

func TestDetectPWavesMissing(t *testing.T) {
	times := []float64{0.5, 1.2, 2.1, 2.8, 3.9, 4.6, 5.3, 6.4, 7.1, 8.0}
	samples, beats := strip(times, func(t float64) []wave { return normalBeat(t, false) })

	report, ok := DetectPWaves(samples, fs, beats)

	require.True(t, ok)
	assert.Less(t, report.PresentPct, 20.0)
	assert.Greater(t, report.AFibEvidence, 50.0)
}

func TestDetectPWavesRejectsShortInput(t *testing.T) {
	samples, beats := strip([]float64{0.5}, func(t float64) []wave { return normalBeat(t, true) })
	_, ok := DetectPWaves(samples, fs, beats)
	assert.False(t, ok)

	_, ok = DetectPWaves(samples, 10, append(beats, domain.Beat{Time: 1}))
	assert.False(t, ok)
}

func TestAnalyzeQRSNarrowComplexes(t *testing.T) {
	samples, beats := strip(regular(0.5, 0.8, 10), func(t float64) []wave { return normalBeat(t, true) })

	report, ok := AnalyzeQRS(samples, fs, beats)

	require.True(t, ok)
	assert.InDelta(t, 0.06, report.MeanQRS, 0.01)
	assert.Zero(t, report.WidePct)
	assert.Empty(t, report.PVCs)
	assert.Zero(t, report.LBBBPercent)
	assert.Zero(t, report.RBBBPercent)
	for _, abnormal := range report.Abnormal {
		assert.False(t, abnormal)
	}
}

func TestAnalyzeQRSFindsPrematureBeat(t *testing.T) {
	times := regular(0.5, 0.8, 6)
	times = append(times, times[5]+0.5)
	times = append(times, regular(times[6]+1.1, 0.8, 5)...)
	var waves []wave
	beats := make([]domain.Beat, len(times))
	for i, at := range times {
		if i == 6 {
			waves = append(waves, pvcBeat(at)...)
		} else {
			waves = append(waves, normalBeat(at, true)...)
		}
		beats[i] = domain.Beat{Time: at}
	}
	samples := render(times[len(times)-1]+1, waves)

	report, ok := AnalyzeQRS(samples, fs, beats)

	require.True(t, ok)
	require.Len(t, report.PVCs, 1)
	assert.InDelta(t, times[6], report.PVCs[0], 1e-9)
	assert.True(t, report.Abnormal[6])
	assert.Greater(t, report.Durations[6], 0.12)
}

func TestAnalyzeQRSLeftBundleBranchBlock(t *testing.T) {
	samples, beats := strip(regular(0.5, 0.8, 10), lbbbBeat)

	report, ok := AnalyzeQRS(samples, fs, beats)

	require.True(t, ok)
	assert.InDelta(t, 100, report.WidePct, 1e-9)
	assert.InDelta(t, 80, report.LBBBPercent, 1e-9)
	assert.Zero(t, report.RBBBPercent)
}

func modulatedBeats(freq float64, seconds float64) []domain.Beat {
	var out []domain.Beat
	for t := 0.5; t < seconds; t += 0.8 + 0.05*math.Sin(2*math.Pi*freq*t) {
		out = append(out, domain.Beat{Time: t})
	}
	return out
}

func TestHRVSpectrumRespiratoryModulation(t *testing.T) {
	report, ok := HRVSpectrum(modulatedBeats(0.25, 300))

	require.True(t, ok)
	assert.Greater(t, report.HF, 10*report.LF)
	assert.Less(t, report.Ratio, 0.5)
	assert.Greater(t, report.HFShare, 0.5)
	assert.InDelta(t, 60, report.AFibEvidence, 1e-9)
}

func TestHRVSpectrumSlowModulation(t *testing.T) {
	report, ok := HRVSpectrum(modulatedBeats(0.1, 300))

	require.True(t, ok)
	assert.Greater(t, report.Ratio, 2.0)
	assert.Zero(t, report.AFibEvidence)
}

func TestHRVSpectrumNeedsTenBeats(t *testing.T) {
	_, ok := HRVSpectrum(modulatedBeats(0.25, 5))
	assert.False(t, ok)

	steady := make([]domain.Beat, 40)
	for i, at := range regular(0.5, 0.75, 40) {
		steady[i] = domain.Beat{Time: at}
	}
	report, ok := HRVSpectrum(steady)
	require.True(t, ok)
	assert.Zero(t, report.AFibEvidence)
	assert.True(t, math.IsInf(report.Ratio, 1))
}

func tone(freq, amp float64, samples []domain.Sample) {
	for i := range samples {
		samples[i].Value += amp * math.Sin(2*math.Pi*freq*samples[i].Time)
	}
}

func rms(samples []domain.Sample) float64 {
	var sum float64
	for _, s := range samples {
		sum += s.Value * s.Value
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestPreprocessRemovesDriftAndHum(t *testing.T) {
	noise := render(20, nil)
	tone(0.1, 0.5, noise)
	tone(50, 0.2, noise)
	tone(60, 0.2, noise)
	signal := render(20, nil)
	tone(10, 1, signal)

	cleaned := Preprocess(noise, fs)
	kept := Preprocess(signal, fs)

	require.Len(t, cleaned, len(noise))
	assert.Equal(t, noise[100].Time, cleaned[100].Time)
	mid := func(s []domain.Sample) []domain.Sample { return s[int(5*fs):int(15*fs)] }
	assert.Less(t, rms(mid(cleaned)), 0.02)
	assert.Greater(t, rms(mid(kept)), 0.95*rms(mid(signal)))
}

func TestPreprocessShortInput(t *testing.T) {
	one := []domain.Sample{{Time: 0, Value: 1}}
	assert.Equal(t, one, Preprocess(one, fs))
}

func finding(t *testing.T, findings []Finding, c Condition) Finding {
	t.Helper()
	for _, f := range findings {
		if f.Condition == c {
			return f
		}
	}
	t.Fatalf("no finding for %s", c)
	return Finding{}
}

func TestAssessUndefinedRhythm(t *testing.T) {
	findings := Assess(Evidence{})

	require.Len(t, findings, 8)
	assert.Equal(t, 100.0, finding(t, findings, ConditionSinus).Probability)
	for _, f := range findings[1:] {
		assert.Zero(t, f.Probability, f.Condition)
	}
}

func TestAssessRate(t *testing.T) {
	findings := Assess(Evidence{Rhythm: rhythm.Result{Defined: true, Class: domain.RhythmTachycardia}})

	tachy := finding(t, findings, ConditionTachycardia)
	assert.Equal(t, 90.0, tachy.Probability)
	assert.Equal(t, ConfidenceHigh, tachy.Confidence)
	assert.Equal(t, 70.0, finding(t, findings, ConditionSinus).Probability)
}

func TestAssessAtrialFibrillationNeedsTwoSources(t *testing.T) {
	res := rhythm.Result{Defined: true, Class: domain.RhythmAtrialFibrillation, RMSSD: 0.2}

	single := Assess(Evidence{Rhythm: res, Irregular: true})
	assert.Zero(t, finding(t, single, ConditionAFib).Probability)

	two := Assess(Evidence{Rhythm: res, Irregular: true, PWaves: &PWaveReport{AFibEvidence: 80}})
	afib := finding(t, two, ConditionAFib)
	assert.InDelta(t, 92, afib.Probability, 1e-9)
	assert.Equal(t, ConfidenceMedium, afib.Confidence)
	assert.Equal(t, 2, afib.Evidence)
	assert.Equal(t, 10.0, finding(t, two, ConditionSinus).Probability)

	three := Assess(Evidence{
		Rhythm:    res,
		Irregular: true,
		PWaves:    &PWaveReport{AFibEvidence: 80},
		HRV:       &HRVReport{AFibEvidence: 60},
	})
	afib = finding(t, three, ConditionAFib)
	assert.Equal(t, 95.0, afib.Probability)
	assert.Equal(t, ConfidenceHigh, afib.Confidence)
}

func TestAssessConduction(t *testing.T) {
	findings := Assess(Evidence{
		Rhythm: rhythm.Result{Defined: true},
		Beats:  20,
		PWaves: &PWaveReport{MeanPR: 0.24},
		QRS:    &QRSReport{PVCs: []float64{1, 2, 3}, RBBBPercent: 70},
	})

	pvc := finding(t, findings, ConditionPVC)
	assert.Equal(t, 90.0, pvc.Probability)
	assert.Equal(t, 3, pvc.Evidence)
	assert.Equal(t, 80.0, finding(t, findings, ConditionHeartBlock).Probability)
	assert.Equal(t, 70.0, finding(t, findings, ConditionRBBB).Probability)
	assert.Zero(t, finding(t, findings, ConditionLBBB).Probability)
	assert.Equal(t, 10.0, finding(t, findings, ConditionSinus).Probability)
}

func TestAnalyzeCombinesReports(t *testing.T) {
	samples, beats := strip(regular(0.5, 0.75, 12), lbbbBeat)
	res := rhythm.Analyze(beats, 20, rhythm.Options{})

	report := Analyze(samples, fs, beats, res, rhythm.Options{})

	require.NotNil(t, report.QRS)
	require.NotNil(t, report.PWaves)
	require.NotNil(t, report.HRV)
	assert.Equal(t, 80.0, finding(t, report.Findings, ConditionLBBB).Probability)
	assert.Zero(t, finding(t, report.Findings, ConditionAFib).Probability)
}
