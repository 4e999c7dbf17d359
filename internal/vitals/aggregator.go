package vitals

import (
	"math"
	"math/rand/v2"

	"patient-monitor/internal/domain"
	"patient-monitor/internal/rhythm"
)

// Reading is one packaged vital value.
type Reading struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
	InRange bool    `json:"in_range"`
}

// Snapshot is the vitals picture for one tick. It is never mutated after
// Aggregate returns it.
type Snapshot struct {
	Time        float64       `json:"time"`
	Condition   domain.Rhythm `json:"-"`
	HeartRate   Reading       `json:"hr"`
	SpO2        Reading       `json:"spo2"`
	RespRate    Reading       `json:"resp"`
	Temp        Reading       `json:"temp"`
	BPSystolic  Reading       `json:"bp_sys"`
	BPDiastolic Reading       `json:"bp_dia"`
}

// Reading returns the value for p. ok is false for ParamECG and unknown names.
func (s Snapshot) Reading(p domain.Parameter) (Reading, bool) {
	switch p {
	case domain.ParamHeartRate:
		return s.HeartRate, true
	case domain.ParamSpO2:
		return s.SpO2, true
	case domain.ParamResp:
		return s.RespRate, true
	case domain.ParamTemp:
		return s.Temp, true
	case domain.ParamBPSystolic:
		return s.BPSystolic, true
	case domain.ParamBPDiastolic:
		return s.BPDiastolic, true
	}
	return Reading{}, false
}

// walk is a mean-reverting random walk kept inside physiological limits.
type walk struct {
	value      float64
	volatility float64
	lo, hi     float64
}

const reversionRate = 0.5

func (w *walk) step(target, dt float64, rng *rand.Rand) {
	w.value += reversionRate*(target-w.value)*dt + w.volatility*math.Sqrt(dt)*rng.NormFloat64()
	w.value = math.Min(math.Max(w.value, w.lo), w.hi)
}

// profile holds the walk targets for one condition.
type profile map[domain.Parameter]float64

var profiles = map[domain.Rhythm]profile{
	domain.RhythmNormal: {
		domain.ParamSpO2: 98, domain.ParamResp: 16, domain.ParamTemp: 37.0,
		domain.ParamBPSystolic: 120, domain.ParamBPDiastolic: 80,
	},
	domain.RhythmTachycardia: {
		domain.ParamSpO2: 96, domain.ParamResp: 22, domain.ParamTemp: 37.25,
		domain.ParamBPSystolic: 102.5, domain.ParamBPDiastolic: 65,
	},
	domain.RhythmBradycardia: {
		domain.ParamSpO2: 93, domain.ParamResp: 12, domain.ParamTemp: 36.25,
		domain.ParamBPSystolic: 100, domain.ParamBPDiastolic: 57.5,
	},
	domain.RhythmAtrialFibrillation: {
		domain.ParamSpO2: 95.5, domain.ParamResp: 18, domain.ParamTemp: 37.0,
		domain.ParamBPSystolic: 110, domain.ParamBPDiastolic: 70,
	},
}

func newWalks() map[domain.Parameter]*walk {
	start := profiles[domain.RhythmNormal]
	return map[domain.Parameter]*walk{
		domain.ParamSpO2:        {value: start[domain.ParamSpO2], volatility: 0.3, lo: 70, hi: 100},
		domain.ParamResp:        {value: start[domain.ParamResp], volatility: 0.5, lo: 4, hi: 40},
		domain.ParamTemp:        {value: start[domain.ParamTemp], volatility: 0.02, lo: 34, hi: 41},
		domain.ParamBPSystolic:  {value: start[domain.ParamBPSystolic], volatility: 1.5, lo: 60, hi: 200},
		domain.ParamBPDiastolic: {value: start[domain.ParamBPDiastolic], volatility: 1.0, lo: 30, hi: 130},
	}
}

// Aggregator combines the analyzed heart rate with modelled SpO2,
// respiration, temperature and blood pressure.
type Aggregator struct {
	ranges Ranges
	seed   uint64
	rng    *rand.Rand
	walks  map[domain.Parameter]*walk
}

// NewAggregator uses ranges for the in-range flags. A nil ranges uses DefaultRanges.
func NewAggregator(ranges Ranges, seed uint64) *Aggregator {
	if ranges == nil {
		ranges = DefaultRanges()
	}
	a := &Aggregator{ranges: ranges, seed: seed}
	a.Reset()
	return a
}

// Ranges returns the table used for the in-range flags.
func (a *Aggregator) Ranges() Ranges { return a.ranges }

// Reset returns every model to its resting value and reseeds the noise.
func (a *Aggregator) Reset() {
	a.rng = rand.New(rand.NewPCG(a.seed, a.seed+1))
	a.walks = newWalks()
}

// Aggregate advances the models by dt simulated seconds towards the profile
// of condition and packages the result. dt <= 0 repeats the current values.
func (a *Aggregator) Aggregate(now, dt float64, res rhythm.Result, condition domain.Rhythm) Snapshot {
	target, ok := profiles[condition]
	if !ok {
		target = profiles[domain.RhythmNormal]
	}
	if dt > 0 {
		for _, p := range domain.Vitals {
			if w, ok := a.walks[p]; ok {
				w.step(target[p], dt, a.rng)
			}
		}
	}

	snap := Snapshot{Time: now, Condition: condition}
	if res.Defined {
		snap.HeartRate = a.reading(domain.ParamHeartRate, res.HeartRate)
	}
	snap.SpO2 = a.reading(domain.ParamSpO2, a.walks[domain.ParamSpO2].value)
	snap.RespRate = a.reading(domain.ParamResp, a.walks[domain.ParamResp].value)
	snap.Temp = a.reading(domain.ParamTemp, a.walks[domain.ParamTemp].value)
	snap.BPSystolic = a.reading(domain.ParamBPSystolic, a.walks[domain.ParamBPSystolic].value)
	snap.BPDiastolic = a.reading(domain.ParamBPDiastolic, a.walks[domain.ParamBPDiastolic].value)
	return snap
}

func (a *Aggregator) reading(p domain.Parameter, v float64) Reading {
	return Reading{Value: v, Defined: true, InRange: a.ranges.Check(p, v)}
}
