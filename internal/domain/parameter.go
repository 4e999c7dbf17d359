package domain

import "fmt"

// Parameter identifies a monitored quantity with its own alarm.
type Parameter string

const (
	ParamECG         Parameter = "ecg"
	ParamHeartRate   Parameter = "hr"
	ParamSpO2        Parameter = "spo2"
	ParamResp        Parameter = "resp"
	ParamTemp        Parameter = "temp"
	ParamBPSystolic  Parameter = "bp_sys"
	ParamBPDiastolic Parameter = "bp_dia"
)

// Vitals lists the numeric parameters in display order.
var Vitals = []Parameter{ParamHeartRate, ParamSpO2, ParamResp, ParamTemp, ParamBPSystolic, ParamBPDiastolic}

// Parameters lists every alarmable parameter, rhythm first.
var Parameters = append([]Parameter{ParamECG}, Vitals...)

// Unit is the display unit of a parameter.
func (p Parameter) Unit() string {
	switch p {
	case ParamHeartRate:
		return "bpm"
	case ParamSpO2:
		return "%"
	case ParamResp:
		return "rpm"
	case ParamTemp:
		return "°C"
	case ParamBPSystolic, ParamBPDiastolic:
		return "mmHg"
	}
	return ""
}

// ParseParameter validates a parameter name.
func ParseParameter(s string) (Parameter, error) {
	for _, p := range Parameters {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown parameter %q", s)
}
