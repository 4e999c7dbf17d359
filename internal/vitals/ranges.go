package vitals

import (
	"fmt"

	"patient-monitor/internal/domain"
)

// Range is an inclusive normal interval.
type Range struct {
	Low  float64 `mapstructure:"low" json:"low"`
	High float64 `mapstructure:"high" json:"high"`
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// Ranges maps each vital parameter to its normal interval.
type Ranges map[domain.Parameter]Range

// DefaultRanges returns the adult resting normal ranges.
func DefaultRanges() Ranges {
	return Ranges{
		domain.ParamHeartRate:   {Low: 60, High: 100},
		domain.ParamSpO2:        {Low: 95, High: 100},
		domain.ParamResp:        {Low: 12, High: 20},
		domain.ParamTemp:        {Low: 36.5, High: 37.5},
		domain.ParamBPSystolic:  {Low: 90, High: 140},
		domain.ParamBPDiastolic: {Low: 60, High: 90},
	}
}

// Merge returns a copy of r with the entries of override replacing its own.
func (r Ranges) Merge(override Ranges) Ranges {
	out := make(Ranges, len(r)+len(override))
	for p, rg := range r {
		out[p] = rg
	}
	for p, rg := range override {
		out[p] = rg
	}
	return out
}

// Validate rejects inverted intervals and unknown parameters.
func (r Ranges) Validate() error {
	for p, rg := range r {
		if _, err := domain.ParseParameter(string(p)); err != nil || p == domain.ParamECG {
			return fmt.Errorf("threshold for unknown parameter %q", p)
		}
		if rg.Low > rg.High {
			return fmt.Errorf("threshold %s: low %g above high %g", p, rg.Low, rg.High)
		}
	}
	return nil
}

// Check reports whether v is normal for p. Parameters without a range are
// always normal.
func (r Ranges) Check(p domain.Parameter, v float64) bool {
	rg, ok := r[p]
	if !ok {
		return true
	}
	return rg.Contains(v)
}
