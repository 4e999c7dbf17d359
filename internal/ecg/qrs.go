package ecg

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"patient-monitor/internal/domain"
)

const (
	// Q and S are the minima within qrsHalfWidth seconds either side of R.
	qrsHalfWidth = 0.1
	// Complexes wider than wideQRS seconds are conduction-delayed.
	wideQRS = 0.12
	// An R' must follow R within notchWindow seconds to count as notched.
	notchWindow = 0.06
)

// QRSReport describes ventricular depolarisation per beat.
type QRSReport struct {
	Durations  []float64
	Amplitudes []float64
	// Areas are |signal| integrated from Q to S, divided by amplitude.
	Areas    []float64
	Abnormal []bool
	// PVCs holds the times of premature, wide, differently shaped beats.
	PVCs        []float64
	MeanQRS     float64
	WidePct     float64
	LBBBPercent float64
	RBBBPercent float64
}

// AnalyzeQRS measures every complex whose search window fits in the signal.
func AnalyzeQRS(samples []domain.Sample, rate float64, beats []domain.Beat) (QRSReport, bool) {
	if len(beats) < 2 || rate <= 0 {
		return QRSReport{}, false
	}
	n := len(beats)
	report := QRSReport{
		Durations:  make([]float64, n),
		Amplitudes: make([]float64, n),
		Areas:      make([]float64, n),
		Abnormal:   make([]bool, n),
	}
	half := int(qrsHalfWidth * rate)
	measured := make([]bool, n)
	negative := make([]bool, n)
	notched := make([]bool, n)

	for i, b := range beats {
		r := indexAt(samples, b.Time)
		if r-half < 0 || r+half >= len(samples) {
			continue
		}
		q := argMin(samples, r-half, r)
		s := argMin(samples, r+1, r+half+1)
		report.Durations[i] = samples[s].Time - samples[q].Time

		var area float64
		for j := q; j < s; j++ {
			dt := samples[j+1].Time - samples[j].Time
			area += 0.5 * (math.Abs(samples[j].Value) + math.Abs(samples[j+1].Value)) * dt
		}
		amp := samples[r].Value - math.Min(samples[q].Value, samples[s].Value)
		report.Amplitudes[i] = amp
		if amp > 0 {
			report.Areas[i] = area / amp
		}

		var pos, neg float64
		for j := r - half; j <= r+half; j++ {
			if v := samples[j].Value; v > 0 {
				pos += v
			} else {
				neg -= v
			}
		}
		negative[i] = neg > pos
		notched[i] = hasNotch(samples, r, r+int(notchWindow*rate))
		measured[i] = true
	}

	var durations, areas []float64
	for i := range beats {
		if !measured[i] {
			continue
		}
		durations = append(durations, report.Durations[i])
		if report.Areas[i] > 0 {
			areas = append(areas, report.Areas[i])
		}
	}
	if len(durations) == 0 {
		return report, true
	}
	report.MeanQRS = stat.Mean(durations, nil)
	medianArea := median(areas)
	medianRR := median(rrDurations(beats))

	var wide, lbbb, rbbb int
	for i := range beats {
		if !measured[i] {
			continue
		}
		isWide := report.Durations[i] > wideQRS
		odd := medianArea > 0 && (report.Areas[i] > 1.5*medianArea || report.Areas[i] < 0.5*medianArea)
		report.Abnormal[i] = isWide || odd
		if isWide {
			wide++
		}
		if negative[i] {
			lbbb++
		} else if notched[i] {
			rbbb++
		}

		if i == 0 || i == n-1 || medianRR <= 0 {
			continue
		}
		prev := beats[i].Time - beats[i-1].Time
		next := beats[i+1].Time - beats[i].Time
		reshaped := medianArea > 0 && (report.Areas[i] < 0.7*medianArea || report.Areas[i] > 1.3*medianArea)
		if prev < 0.8*medianRR && next > 1.2*medianRR && isWide && reshaped {
			report.PVCs = append(report.PVCs, beats[i].Time)
		}
	}

	total := float64(len(durations))
	report.WidePct = 100 * float64(wide) / total
	if report.WidePct > 70 {
		switch share := float64(lbbb) / total; {
		case share > 0.7:
			report.LBBBPercent = 80
		case share > 0.5:
			report.LBBBPercent = 50
		}
		switch share := float64(rbbb) / total; {
		case share > 0.3:
			report.RBBBPercent = 70
		case share > 0.1:
			report.RBBBPercent = 40
		}
	}
	return report, true
}

// hasNotch reports a secondary local maximum strictly between from and to.
func hasNotch(samples []domain.Sample, from, to int) bool {
	to = min(to, len(samples)-1)
	for j := from + 1; j < to; j++ {
		if samples[j].Value > samples[j-1].Value && samples[j].Value >= samples[j+1].Value {
			return true
		}
	}
	return false
}

func argMin(samples []domain.Sample, from, to int) int {
	best := from
	for j := from + 1; j < to; j++ {
		if samples[j].Value < samples[best].Value {
			best = j
		}
	}
	return best
}

func rrDurations(beats []domain.Beat) []float64 {
	if len(beats) < 2 {
		return nil
	}
	out := make([]float64, len(beats)-1)
	for i := range out {
		out[i] = beats[i+1].Time - beats[i].Time
	}
	return out
}

func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func meanStd(x []float64) (float64, float64) {
	return stat.PopMeanStdDev(x, nil)
}

func values(samples []domain.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}

// indexAt returns the index of the first sample at or after t, clamped to the last sample.
func indexAt(samples []domain.Sample, t float64) int {
	i := sort.Search(len(samples), func(i int) bool { return samples[i].Time >= t })
	return min(i, len(samples)-1)
}
