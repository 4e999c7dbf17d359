package ecg

import (
	"patient-monitor/internal/domain"
	"patient-monitor/internal/rhythm"
)

// Confidence grades how much evidence backs a Finding.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Condition names a rhythm or conduction finding.
type Condition string

const (
	ConditionSinus       Condition = "sinus rhythm"
	ConditionBradycardia Condition = "bradycardia"
	ConditionTachycardia Condition = "tachycardia"
	ConditionAFib        Condition = "atrial fibrillation"
	ConditionPVC         Condition = "premature ventricular contractions"
	ConditionHeartBlock  Condition = "first-degree AV block"
	ConditionLBBB        Condition = "left bundle branch block"
	ConditionRBBB        Condition = "right bundle branch block"
)

// Finding is one condition with its estimated probability in percent.
type Finding struct {
	Condition   Condition
	Probability float64
	Confidence  Confidence
	// Evidence counts the independent signals that raised the probability.
	Evidence int
}

// Evidence collects the per-analysis results fed to Assess. A nil pointer
// means that analysis could not run.
type Evidence struct {
	Rhythm    rhythm.Result
	Irregular bool
	Beats     int
	PWaves    *PWaveReport
	QRS       *QRSReport
	HRV       *HRVReport
}

// Assess combines the evidence into a probability for every condition.
// Atrial fibrillation needs at least two agreeing sources. Sinus rhythm starts
// at 100 and loses ground to every other finding.
func Assess(ev Evidence) []Finding {
	sinus := Finding{Condition: ConditionSinus, Probability: 100, Confidence: ConfidenceHigh}
	brady := Finding{Condition: ConditionBradycardia, Confidence: ConfidenceLow}
	tachy := Finding{Condition: ConditionTachycardia, Confidence: ConfidenceLow}
	afib := Finding{Condition: ConditionAFib, Confidence: ConfidenceLow}
	pvc := Finding{Condition: ConditionPVC, Confidence: ConfidenceLow}
	block := Finding{Condition: ConditionHeartBlock, Confidence: ConfidenceLow}
	lbbb := Finding{Condition: ConditionLBBB, Confidence: ConfidenceLow}
	rbbb := Finding{Condition: ConditionRBBB, Confidence: ConfidenceLow}
	all := func() []Finding {
		return []Finding{sinus, brady, tachy, afib, pvc, block, lbbb, rbbb}
	}
	if !ev.Rhythm.Defined {
		return all()
	}

	switch ev.Rhythm.Class {
	case domain.RhythmBradycardia:
		brady = Finding{Condition: ConditionBradycardia, Probability: 90, Confidence: ConfidenceHigh, Evidence: 1}
		sinus.Probability -= 30
	case domain.RhythmTachycardia:
		tachy = Finding{Condition: ConditionTachycardia, Probability: 90, Confidence: ConfidenceHigh, Evidence: 1}
		sinus.Probability -= 30
	}

	var afibScore float64
	if ev.PWaves != nil && ev.PWaves.AFibEvidence > 50 {
		afibScore += 0.4 * ev.PWaves.AFibEvidence
		afib.Evidence++
	}
	if ev.Irregular && ev.Rhythm.RMSSD > 0.1 {
		afibScore += 60
		afib.Evidence++
	}
	if ev.HRV != nil && ev.HRV.AFibEvidence > 50 {
		afibScore += 0.3 * ev.HRV.AFibEvidence
		afib.Evidence++
	}
	if afib.Evidence >= 2 {
		afib.Probability = min(95, afibScore)
		afib.Confidence = ConfidenceMedium
		if afib.Evidence > 2 {
			afib.Confidence = ConfidenceHigh
		}
		sinus.Probability -= afib.Probability
	} else {
		afib.Evidence = 0
	}

	if ev.QRS != nil && len(ev.QRS.PVCs) > 0 && ev.Beats > 0 {
		pvc.Evidence = len(ev.QRS.PVCs)
		switch share := 100 * float64(pvc.Evidence) / float64(ev.Beats); {
		case share > 10:
			pvc.Probability, pvc.Confidence = 90, ConfidenceHigh
			sinus.Probability -= 50
		case share > 5:
			pvc.Probability, pvc.Confidence = 70, ConfidenceMedium
			sinus.Probability -= 30
		default:
			pvc.Probability = 50
			sinus.Probability -= 10
		}
	}

	if ev.PWaves != nil && ev.PWaves.MeanPR > 0.2 {
		block = Finding{Condition: ConditionHeartBlock, Probability: 80, Confidence: ConfidenceHigh, Evidence: 1}
		sinus.Probability -= 30
	}

	if ev.QRS != nil {
		if ev.QRS.LBBBPercent > 60 {
			lbbb = Finding{Condition: ConditionLBBB, Probability: ev.QRS.LBBBPercent, Confidence: ConfidenceMedium, Evidence: 1}
			sinus.Probability -= 20
		}
		if ev.QRS.RBBBPercent > 60 {
			rbbb = Finding{Condition: ConditionRBBB, Probability: ev.QRS.RBBBPercent, Confidence: ConfidenceMedium, Evidence: 1}
			sinus.Probability -= 20
		}
	}

	findings := all()
	strong := false
	for i := range findings {
		findings[i].Probability = max(0, min(100, findings[i].Probability))
		if i > 0 && findings[i].Probability > 70 {
			strong = true
		}
	}
	if strong {
		findings[0].Probability = max(10, findings[0].Probability)
	}
	return findings
}
