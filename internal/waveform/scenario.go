package waveform

import (
	"math"

	"patient-monitor/internal/domain"
)

// Segment declares the condition in force until Until seconds into the loop.
type Segment struct {
	Until     float64
	Condition domain.Rhythm
}

// Scenario is a looping script of declared conditions.
type Scenario struct {
	Segments []Segment
}

// DemoScenario is the 60 s teaching loop: normal, tachycardia, normal,
// bradycardia, normal. withAFib appends 10 s of atrial fibrillation and a
// 10 s recovery.
func DemoScenario(withAFib bool) Scenario {
	s := Scenario{Segments: []Segment{
		{Until: 20, Condition: domain.RhythmNormal},
		{Until: 30, Condition: domain.RhythmTachycardia},
		{Until: 40, Condition: domain.RhythmNormal},
		{Until: 50, Condition: domain.RhythmBradycardia},
		{Until: 60, Condition: domain.RhythmNormal},
	}}
	if withAFib {
		s.Segments = append(s.Segments,
			Segment{Until: 70, Condition: domain.RhythmAtrialFibrillation},
			Segment{Until: 80, Condition: domain.RhythmNormal},
		)
	}
	return s
}

// Period is the loop length.
func (s Scenario) Period() float64 {
	if len(s.Segments) == 0 {
		return 0
	}
	return s.Segments[len(s.Segments)-1].Until
}

// At returns the declared condition at simulated time t. ok is false for an
// empty scenario.
func (s Scenario) At(t float64) (domain.Rhythm, bool) {
	period := s.Period()
	if period <= 0 {
		return domain.RhythmNormal, false
	}
	pos := math.Mod(math.Max(t, 0), period)
	for _, seg := range s.Segments {
		if pos < seg.Until {
			return seg.Condition, true
		}
	}
	return s.Segments[len(s.Segments)-1].Condition, true
}
