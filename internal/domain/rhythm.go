package domain

import (
	"fmt"
	"strings"
)

// Rhythm is the cardiac rhythm category of one evaluation window.
type Rhythm int

const (
	RhythmNormal Rhythm = iota
	RhythmBradycardia
	RhythmTachycardia
	RhythmAtrialFibrillation
)

func (r Rhythm) String() string {
	switch r {
	case RhythmBradycardia:
		return "bradycardia"
	case RhythmTachycardia:
		return "tachycardia"
	case RhythmAtrialFibrillation:
		return "atrial_fibrillation"
	default:
		return "normal"
	}
}

// Title is the display form used in alarm messages.
func (r Rhythm) Title() string {
	switch r {
	case RhythmBradycardia:
		return "Bradycardia"
	case RhythmTachycardia:
		return "Tachycardia"
	case RhythmAtrialFibrillation:
		return "Atrial Fibrillation"
	default:
		return "Normal"
	}
}

// ParseRhythm accepts the String form plus a few common abbreviations.
func ParseRhythm(s string) (Rhythm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "nsr", "":
		return RhythmNormal, nil
	case "bradycardia", "brady":
		return RhythmBradycardia, nil
	case "tachycardia", "tachy":
		return RhythmTachycardia, nil
	case "atrial_fibrillation", "afib", "af":
		return RhythmAtrialFibrillation, nil
	}
	return RhythmNormal, fmt.Errorf("unknown rhythm %q", s)
}

// Lead selects the displayed ECG morphology.
type Lead string

const (
	LeadI   Lead = "I"
	LeadII  Lead = "II"
	LeadIII Lead = "III"
	LeadV1  Lead = "V1"
)

// ParseLead validates a lead name.
func ParseLead(s string) (Lead, error) {
	switch l := Lead(strings.ToUpper(strings.TrimSpace(s))); l {
	case LeadI, LeadII, LeadIII, LeadV1:
		return l, nil
	}
	return "", fmt.Errorf("unsupported lead %q (want I, II, III or V1)", s)
}
