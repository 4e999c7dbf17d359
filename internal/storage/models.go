package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"patient-monitor/internal/alarm"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/vitals"
)

// SnapshotRecord is a persisted vitals snapshot of the active run.
type SnapshotRecord struct {
	ID        int64
	SimTime   decimal.Decimal
	Rhythm    string
	HeartRate *decimal.Decimal
	SpO2      decimal.Decimal
	RespRate  decimal.Decimal
	TempC     decimal.Decimal
	BPSys     decimal.Decimal
	BPDia     decimal.Decimal
	CreatedAt time.Time
}

// AlarmEvent captures one alarm status change for auditing.
type AlarmEvent struct {
	ID         int64
	SimTime    decimal.Decimal
	Param      string
	FromStatus string
	ToStatus   string
	Message    string
	Value      decimal.Decimal
	CreatedAt  time.Time
}

// NewSnapshotRecord rounds snap for storage. An undefined heart rate is stored as NULL.
func NewSnapshotRecord(snap vitals.Snapshot, class domain.Rhythm, at time.Time) SnapshotRecord {
	rec := SnapshotRecord{
		SimTime:   decimal.NewFromFloat(snap.Time).Round(3),
		Rhythm:    class.String(),
		SpO2:      decimal.NewFromFloat(snap.SpO2.Value).Round(1),
		RespRate:  decimal.NewFromFloat(snap.RespRate.Value).Round(1),
		TempC:     decimal.NewFromFloat(snap.Temp.Value).Round(2),
		BPSys:     decimal.NewFromFloat(snap.BPSystolic.Value).Round(1),
		BPDia:     decimal.NewFromFloat(snap.BPDiastolic.Value).Round(1),
		CreatedAt: at.UTC(),
	}
	if snap.HeartRate.Defined {
		hr := decimal.NewFromFloat(snap.HeartRate.Value).Round(1)
		rec.HeartRate = &hr
	}
	return rec
}

// NewAlarmEvent converts an engine transition.
func NewAlarmEvent(tr alarm.Transition, at time.Time) AlarmEvent {
	return AlarmEvent{
		SimTime:    decimal.NewFromFloat(tr.At).Round(3),
		Param:      string(tr.Param),
		FromStatus: tr.From.String(),
		ToStatus:   tr.To.String(),
		Message:    tr.Message,
		Value:      decimal.NewFromFloat(tr.Value).Round(2),
		CreatedAt:  at.UTC(),
	}
}
