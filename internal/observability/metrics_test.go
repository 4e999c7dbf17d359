package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-monitor/internal/alarm"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/monitor"
	"patient-monitor/internal/rhythm"
	"patient-monitor/internal/vitals"
)

func sampleFrame() monitor.Frame {
	return monitor.Frame{
		Time: 12.5,
		Snapshot: vitals.Snapshot{
			Time:      12.5,
			HeartRate: vitals.Reading{Value: 121, Defined: true},
			SpO2:      vitals.Reading{Value: 96, Defined: true, InRange: true},
		},
		Rhythm: rhythm.Result{Class: domain.RhythmTachycardia, Defined: true, HeartRate: 121},
		States: map[domain.Parameter]alarm.State{
			domain.ParamHeartRate: {Status: alarm.StatusActive},
			domain.ParamSpO2:      {Status: alarm.StatusInactive},
		},
		Transitions: []alarm.Transition{
			{Param: domain.ParamHeartRate, From: alarm.StatusInactive, To: alarm.StatusActive},
		},
		NewBeats: []domain.Beat{{Time: 11.9}, {Time: 12.4}},
	}
}

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics("test", reg)
	require.NoError(t, err)

	m.Observe(sampleFrame(), 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.beats))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.simTime))
	assert.Equal(t, 121.0, testutil.ToFloat64(m.vitals.WithLabelValues("hr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alarms.WithLabelValues("hr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues("hr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rhythm.WithLabelValues("tachycardia")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rhythm.WithLabelValues("normal")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tickLatency))
}

func TestMetricsDropUndefinedVitals(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics("test", reg)
	require.NoError(t, err)

	m.Observe(sampleFrame(), time.Millisecond)
	frame := sampleFrame()
	frame.Snapshot.HeartRate = vitals.Reading{}
	frame.Rhythm = rhythm.Result{}
	m.Observe(frame, time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.vitals, "test_vital_value"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rhythm.WithLabelValues("tachycardia")))
}

func TestNewMetricsRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics("test", reg)
	require.NoError(t, err)

	_, err = NewMetrics("test", reg)
	assert.Error(t, err)
}

func TestNilMetricsObserve(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe(sampleFrame(), time.Millisecond) })
}
