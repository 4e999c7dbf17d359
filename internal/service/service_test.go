package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-monitor/internal/alarm"
	"patient-monitor/internal/alerting"
	"patient-monitor/internal/beats"
	"patient-monitor/internal/config"
	"patient-monitor/internal/control"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/monitor"
	"patient-monitor/internal/observability"
	"patient-monitor/internal/scheduler"
	"patient-monitor/internal/storage"
	"patient-monitor/internal/waveform"
)

type fakeRecorder struct {
	mu        sync.Mutex
	snapshots []storage.SnapshotRecord
	events    []storage.AlarmEvent
	resets    int
	insertErr error
}

func (f *fakeRecorder) InsertSnapshot(_ context.Context, rec storage.SnapshotRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.snapshots = append(f.snapshots, rec)
	return nil
}

func (f *fakeRecorder) ListRecentSnapshots(context.Context, int) ([]storage.SnapshotRecord, error) {
	return f.snapshots, nil
}

func (f *fakeRecorder) ListSnapshotsBetween(context.Context, decimal.Decimal, decimal.Decimal, int) ([]storage.SnapshotRecord, error) {
	return f.snapshots, nil
}

func (f *fakeRecorder) CountSnapshots(context.Context) (int64, error) {
	return int64(len(f.snapshots)), nil
}

func (f *fakeRecorder) InsertAlarmEvent(_ context.Context, ev storage.AlarmEvent) (storage.AlarmEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *fakeRecorder) ListRecentAlarmEvents(context.Context, int) ([]storage.AlarmEvent, error) {
	return f.events, nil
}

func (f *fakeRecorder) ResetSession(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.snapshots = nil
	f.events = nil
	return nil
}

func (f *fakeRecorder) Close() {}

type fakeNotifier struct {
	notes []alerting.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, note alerting.Notification) error {
	f.notes = append(f.notes, note)
	return nil
}

type fakePublisher struct {
	frames int
}

func (f *fakePublisher) PublishFrame(monitor.Frame) error {
	f.frames++
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Bed = "bed-7"
	cfg.Alerting.Enabled = true
	cfg.Alerting.Channels = []string{"telegram"}
	cfg.Database.RecordInterval = time.Second
	return cfg
}

func newTestService(t *testing.T, cond domain.Rhythm, deps Deps) *Service {
	t.Helper()
	mon, err := monitor.New(waveform.NewSynth(waveform.SynthOptions{Seed: 3}), monitor.Options{
		Detector: beats.Options{Refractory: 0.35},
		Scenario: waveform.Scenario{Segments: []waveform.Segment{{Until: 3600, Condition: cond}}},
	}, zerolog.Nop())
	require.NoError(t, err)
	return New(testConfig(), mon, nil, deps, zerolog.Nop())
}

func runFor(t *testing.T, svc *Service, seconds float64) {
	t.Helper()
	step := 100 * time.Millisecond
	for range int(seconds / step.Seconds()) {
		require.NoError(t, svc.Tick(context.Background(), step))
	}
}

func TestServiceRecordsAndNotifiesTachycardia(t *testing.T) {
	rec := &fakeRecorder{}
	notifier := &fakeNotifier{}
	pub := &fakePublisher{}
	metrics, err := observability.NewMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)

	svc := newTestService(t, domain.RhythmTachycardia, Deps{Recorder: rec, Notifier: notifier, Publisher: pub, Metrics: metrics})
	require.NoError(t, svc.Start())

	runFor(t, svc, 15)

	assert.Equal(t, 150, pub.frames)
	assert.GreaterOrEqual(t, len(rec.snapshots), 14)
	assert.LessOrEqual(t, len(rec.snapshots), 16)
	for i := 1; i < len(rec.snapshots); i++ {
		assert.True(t, rec.snapshots[i].SimTime.GreaterThan(rec.snapshots[i-1].SimTime))
	}

	params := map[string]bool{}
	for _, note := range notifier.notes {
		params[note.Param] = true
		assert.Equal(t, "bed-7", note.Bed)
		assert.Equal(t, "active", note.Status)
	}
	assert.True(t, params["ecg"], "rhythm alarm should notify")
	assert.True(t, params["hr"], "heart rate alarm should notify")
	assert.NotEmpty(t, rec.events)
}

func TestServiceSilenceRecordsEvents(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(t, domain.RhythmTachycardia, Deps{Recorder: rec})
	require.NoError(t, svc.Start())
	runFor(t, svc, 15)

	before := len(rec.events)
	muted := svc.Silence()

	require.Greater(t, muted, 0)
	require.Len(t, rec.events, before+muted)
	assert.Equal(t, "silenced", rec.events[len(rec.events)-1].ToStatus)
}

func TestServiceResetClearsSession(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(t, domain.RhythmNormal, Deps{Recorder: rec})
	require.NoError(t, svc.Start())
	runFor(t, svc, 3)
	require.NotEmpty(t, rec.snapshots)

	require.NoError(t, svc.Reset())

	assert.Equal(t, 1, rec.resets)
	assert.Empty(t, rec.snapshots)
	assert.Equal(t, "t=0.0s ready", svc.Status())

	require.NoError(t, svc.Start())
	runFor(t, svc, 1)
	assert.NotEmpty(t, rec.snapshots)
}

func TestServiceSkipsPausedFrames(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(t, domain.RhythmNormal, Deps{Recorder: rec})

	runFor(t, svc, 2)

	assert.Empty(t, rec.snapshots)
}

func TestServiceNotifyCooldown(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestService(t, domain.RhythmNormal, Deps{Notifier: notifier})
	svc.cooldown = time.Minute
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tr := alarm.Transition{Param: domain.ParamSpO2, From: alarm.StatusInactive, To: alarm.StatusActive, Message: "Low SpO2", Value: 90}
	svc.handleTransitions(context.Background(), []alarm.Transition{tr})
	svc.handleTransitions(context.Background(), []alarm.Transition{tr})
	require.Len(t, notifier.notes, 1)
	assert.Equal(t, "%", notifier.notes[0].Unit)

	now = now.Add(2 * time.Minute)
	resumed := tr
	resumed.From = alarm.StatusSilenced
	svc.handleTransitions(context.Background(), []alarm.Transition{resumed})
	require.Len(t, notifier.notes, 2)
	assert.True(t, notifier.notes[1].Resumed)
}

func TestServiceNotifyDisabled(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestService(t, domain.RhythmNormal, Deps{Notifier: notifier})
	svc.alertsOn = false

	tr := alarm.Transition{Param: domain.ParamECG, To: alarm.StatusActive, Message: "Tachycardia Detected"}
	svc.handleTransitions(context.Background(), []alarm.Transition{tr})

	assert.Empty(t, notifier.notes)
}

func TestServiceLogsRecorderErrors(t *testing.T) {
	rec := &fakeRecorder{insertErr: errors.New("disk full")}
	svc := newTestService(t, domain.RhythmNormal, Deps{Recorder: rec})
	require.NoError(t, svc.Start())

	runFor(t, svc, 1)

	assert.Empty(t, rec.snapshots)
}

func TestServiceAcceptsControlCommands(t *testing.T) {
	svc := newTestService(t, domain.RhythmNormal, Deps{})

	_, err := control.Execute(svc, "start")
	require.NoError(t, err)
	_, err = control.Execute(svc, "speed 50")
	require.NoError(t, err)
	_, err = control.Execute(svc, "lead V1")
	require.NoError(t, err)

	runFor(t, svc, 1)
	frame := svc.Monitor().Frame()
	assert.Equal(t, 50.0, frame.Speed)
	assert.Equal(t, domain.LeadV1, frame.Lead)
	assert.InDelta(t, 2.0, frame.Time, 1e-9)

	_, err = control.Execute(svc, "load /does/not/exist.csv")
	assert.Error(t, err)
}

func TestServiceRunRequiresScheduler(t *testing.T) {
	svc := newTestService(t, domain.RhythmNormal, Deps{})
	assert.Error(t, svc.Run(context.Background()))
}

func TestServiceRunStopsWithContext(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(t, domain.RhythmNormal, Deps{Recorder: rec})
	svc.scheduler = scheduler.New(scheduler.Options{Interval: time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, rec.resets)
}
