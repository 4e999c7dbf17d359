package alarm

import (
	"patient-monitor/internal/domain"
	"patient-monitor/internal/vitals"
)

var labels = map[domain.Parameter][2]string{
	domain.ParamHeartRate:   {"Low Heart Rate", "High Heart Rate"},
	domain.ParamSpO2:        {"Low SpO2", "High SpO2"},
	domain.ParamResp:        {"Bradypnea", "Tachypnea"},
	domain.ParamTemp:        {"Hypothermia", "Fever"},
	domain.ParamBPSystolic:  {"Hypotension", "Hypertension"},
	domain.ParamBPDiastolic: {"Low Diastolic Pressure", "High Diastolic Pressure"},
}

// Describe names the abnormality of value v for p. Values inside the range
// describe the parameter as normal.
func Describe(p domain.Parameter, v float64, ranges vitals.Ranges) string {
	l, ok := labels[p]
	if !ok {
		return string(p)
	}
	rg, ok := ranges[p]
	switch {
	case !ok || rg.Contains(v):
		return string(p) + " normal"
	case v < rg.Low:
		return l[0]
	default:
		return l[1]
	}
}
