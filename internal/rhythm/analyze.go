package rhythm

import (
	"math"

	"patient-monitor/internal/domain"
)

const (
	DefaultWindow          = 10.0
	DefaultIrregularityCV  = 0.15
	DefaultTachycardiaRate = 100.0
	DefaultBradycardiaRate = 60.0

	// Successive RR differences above this count toward pNN50.
	nn50Threshold = 0.05
)

// Options hold the classification cutoffs. Zero values use the defaults.
type Options struct {
	TachycardiaAbove float64
	BradycardiaBelow float64
	IrregularityCV   float64
}

func (o Options) withDefaults() Options {
	if o.TachycardiaAbove <= 0 {
		o.TachycardiaAbove = DefaultTachycardiaRate
	}
	if o.BradycardiaBelow <= 0 {
		o.BradycardiaBelow = DefaultBradycardiaRate
	}
	if o.IrregularityCV <= 0 {
		o.IrregularityCV = DefaultIrregularityCV
	}
	return o
}

// Result is the classification of one trailing window plus its evidence.
// When Defined is false the heart rate is unknown and Class is Normal.
type Result struct {
	Class     domain.Rhythm `json:"class"`
	Defined   bool          `json:"defined"`
	HeartRate float64       `json:"heart_rate"`
	MeanRR    float64       `json:"mean_rr"`
	SDNN      float64       `json:"sdnn"`
	CV        float64       `json:"cv"`
	RMSSD     float64       `json:"rmssd"`
	PNN50     float64       `json:"pnn50"`
	BeatCount int           `json:"beat_count"`
	// WindowEnd is the time of the newest beat considered.
	WindowEnd float64 `json:"window_end"`
}

// Intervals pairs consecutive beats. Pairs with a non-positive spacing are skipped.
func Intervals(beats []domain.Beat) []domain.RRInterval {
	if len(beats) < 2 {
		return nil
	}
	out := make([]domain.RRInterval, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		d := beats[i].Time - beats[i-1].Time
		if d <= 0 {
			continue
		}
		out = append(out, domain.RRInterval{Start: beats[i-1], End: beats[i], Duration: d})
	}
	return out
}

// Trailing returns the beats no older than window seconds before the newest one.
func Trailing(beats []domain.Beat, window float64) []domain.Beat {
	if len(beats) == 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultWindow
	}
	from := beats[len(beats)-1].Time - window
	i := len(beats) - 1
	for i > 0 && beats[i-1].Time >= from {
		i--
	}
	return beats[i:]
}

// Analyze classifies the trailing window of beats. Rate conditions take
// precedence over irregularity.
func Analyze(beats []domain.Beat, window float64, opts Options) Result {
	opts = opts.withDefaults()

	recent := Trailing(beats, window)
	res := Result{Class: domain.RhythmNormal, BeatCount: len(recent)}
	if len(recent) > 0 {
		res.WindowEnd = recent[len(recent)-1].Time
	}

	rr := Intervals(recent)
	if len(rr) == 0 {
		return res
	}

	var sum float64
	for _, iv := range rr {
		sum += iv.Duration
	}
	mean := sum / float64(len(rr))

	var sq float64
	for _, iv := range rr {
		d := iv.Duration - mean
		sq += d * d
	}
	sdnn := math.Sqrt(sq / float64(len(rr)))

	var succ float64
	var nn50 int
	for i := 1; i < len(rr); i++ {
		d := rr[i].Duration - rr[i-1].Duration
		succ += d * d
		if math.Abs(d) > nn50Threshold {
			nn50++
		}
	}
	if len(rr) > 1 {
		res.RMSSD = math.Sqrt(succ / float64(len(rr)-1))
		res.PNN50 = 100 * float64(nn50) / float64(len(rr)-1)
	}

	res.Defined = true
	res.MeanRR = mean
	res.HeartRate = 60 / mean
	res.SDNN = sdnn
	res.CV = sdnn / mean

	switch {
	case res.HeartRate > opts.TachycardiaAbove:
		res.Class = domain.RhythmTachycardia
	case res.HeartRate < opts.BradycardiaBelow:
		res.Class = domain.RhythmBradycardia
	case res.CV > opts.IrregularityCV:
		res.Class = domain.RhythmAtrialFibrillation
	}
	return res
}
