package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"patient-monitor/internal/alarm"
	"patient-monitor/internal/alerting"
	"patient-monitor/internal/config"
	"patient-monitor/internal/control"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/monitor"
	"patient-monitor/internal/observability"
	"patient-monitor/internal/scheduler"
	"patient-monitor/internal/storage"
)

// FramePublisher receives every frame the display loop produces.
type FramePublisher interface {
	PublishFrame(frame monitor.Frame) error
}

// Deps are the optional side channels of a session. Nil members are skipped.
type Deps struct {
	Recorder  storage.Recorder
	Notifier  alerting.Notifier
	Publisher FramePublisher
	Metrics   *observability.Metrics
	// Observer is called with each frame after the side channels ran.
	Observer func(monitor.Frame)
}

// Service drives a monitor session and fans its output out to storage,
// notification, publishing and metrics.
type Service struct {
	monitor   *monitor.Monitor
	scheduler *scheduler.Scheduler
	deps      Deps
	logger    zerolog.Logger

	bed         string
	channels    []string
	alertsOn    bool
	cooldown    time.Duration
	recordEvery float64

	mu           sync.Mutex
	lastRecorded float64
	lastNotified map[domain.Parameter]time.Time
	now          func() time.Time
}

// New constructs the session service.
func New(cfg *config.Config, mon *monitor.Monitor, sched *scheduler.Scheduler, deps Deps, logger zerolog.Logger) *Service {
	return &Service{
		monitor:      mon,
		scheduler:    sched,
		deps:         deps,
		logger:       logger.With().Str("component", "service").Logger(),
		bed:          cfg.App.Bed,
		channels:     cfg.Alerting.Channels,
		alertsOn:     cfg.Alerting.Enabled,
		cooldown:     cfg.Alerting.Cooldown,
		recordEvery:  cfg.Database.RecordInterval.Seconds(),
		lastRecorded: -1,
		lastNotified: make(map[domain.Parameter]time.Time),
		now:          time.Now,
	}
}

// Monitor exposes the underlying pipeline.
func (s *Service) Monitor() *monitor.Monitor { return s.monitor }

// Run clears the previous session and begins the display loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if err := s.resetSession(ctx); err != nil {
		return err
	}
	return s.scheduler.Run(ctx, s.Tick)
}

// Tick advances the monitor by elapsed wall time and dispatches the frame.
func (s *Service) Tick(ctx context.Context, elapsed time.Duration) error {
	started := s.now()
	frame, err := s.monitor.Tick(elapsed)
	if err != nil {
		return fmt.Errorf("monitor tick: %w", err)
	}
	s.HandleFrame(ctx, frame)
	s.deps.Metrics.Observe(frame, s.now().Sub(started))
	return nil
}

// HandleFrame records, notifies and publishes one frame.
func (s *Service) HandleFrame(ctx context.Context, frame monitor.Frame) {
	s.recordSnapshot(ctx, frame)
	s.handleTransitions(ctx, frame.Transitions)

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishFrame(frame); err != nil {
			s.logger.Error().Err(err).Float64("t", frame.Time).Msg("failed to publish frame")
		}
	}
	if s.deps.Observer != nil {
		s.deps.Observer(frame)
	}
}

func (s *Service) recordSnapshot(ctx context.Context, frame monitor.Frame) {
	if s.deps.Recorder == nil || frame.Time <= 0 {
		return
	}

	s.mu.Lock()
	due := frame.Time > s.lastRecorded && (s.lastRecorded < 0 || frame.Time-s.lastRecorded >= s.recordEvery)
	if due {
		s.lastRecorded = frame.Time
	}
	s.mu.Unlock()
	if !due {
		return
	}

	rec := storage.NewSnapshotRecord(frame.Snapshot, frame.Rhythm.Class, s.now())
	if err := s.deps.Recorder.InsertSnapshot(ctx, rec); err != nil {
		s.logger.Error().Err(err).Float64("t", frame.Time).Msg("failed to record snapshot")
	}
}

func (s *Service) handleTransitions(ctx context.Context, transitions []alarm.Transition) {
	for _, tr := range transitions {
		if s.deps.Recorder != nil {
			if _, err := s.deps.Recorder.InsertAlarmEvent(ctx, storage.NewAlarmEvent(tr, s.now())); err != nil {
				s.logger.Error().Err(err).Str("param", string(tr.Param)).Msg("failed to persist alarm event")
			}
		}
		if tr.Activated() {
			s.notify(ctx, tr)
		}
	}
}

func (s *Service) notify(ctx context.Context, tr alarm.Transition) {
	if !s.alertsOn || s.deps.Notifier == nil {
		return
	}

	now := s.now()
	s.mu.Lock()
	last, seen := s.lastNotified[tr.Param]
	if seen && s.cooldown > 0 && now.Sub(last) < s.cooldown {
		s.mu.Unlock()
		s.logger.Debug().Str("param", string(tr.Param)).Msg("notification suppressed by cooldown")
		return
	}
	s.lastNotified[tr.Param] = now
	s.mu.Unlock()

	note := alerting.Notification{
		Bed:      s.bed,
		Param:    string(tr.Param),
		Message:  tr.Message,
		Value:    decimal.NewFromFloat(tr.Value),
		Unit:     tr.Param.Unit(),
		SimTime:  decimal.NewFromFloat(tr.At),
		Status:   tr.To.String(),
		Channels: s.channels,
		Resumed:  tr.From == alarm.StatusSilenced,
	}
	if tr.Param == domain.ParamECG {
		note.Unit = domain.ParamHeartRate.Unit()
	}
	if err := s.deps.Notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("param", string(tr.Param)).Msg("failed to dispatch alarm")
	}
}

func (s *Service) resetSession(ctx context.Context) error {
	s.mu.Lock()
	s.lastRecorded = -1
	s.lastNotified = make(map[domain.Parameter]time.Time)
	s.mu.Unlock()

	if s.deps.Recorder == nil {
		return nil
	}
	if err := s.deps.Recorder.ResetSession(ctx); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

// Start resumes playback.
func (s *Service) Start() error { return s.monitor.Start() }

// Pause stops playback.
func (s *Service) Pause() { s.monitor.Pause() }

// Reset restarts the monitor and discards the recorded session.
func (s *Service) Reset() error {
	s.monitor.Reset()
	return s.resetSession(context.Background())
}

// Silence mutes every active alarm and returns how many were muted.
func (s *Service) Silence() int {
	trs := s.monitor.Silence()
	s.handleTransitions(context.Background(), trs)
	return len(trs)
}

// SetDisplaySpeed changes the sweep speed.
func (s *Service) SetDisplaySpeed(mmPerSecond float64) error {
	return s.monitor.SetDisplaySpeed(mmPerSecond)
}

// SetLead changes the displayed lead.
func (s *Service) SetLead(lead domain.Lead) error { return s.monitor.SetLead(lead) }

// LoadRecording swaps in a CSV recording; a new recording starts a new session.
func (s *Service) LoadRecording(path string) error {
	if err := s.monitor.LoadRecording(path); err != nil {
		return err
	}
	return s.resetSession(context.Background())
}

// Status summarises the current frame.
func (s *Service) Status() string {
	frame := s.monitor.Frame()
	return fmt.Sprintf("t=%.1fs %s", frame.Time, frame.Status)
}

var _ control.Controller = (*Service)(nil)
