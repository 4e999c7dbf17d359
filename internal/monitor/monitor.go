package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"patient-monitor/internal/alarm"
	"patient-monitor/internal/beats"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/playback"
	"patient-monitor/internal/rhythm"
	"patient-monitor/internal/vitals"
	"patient-monitor/internal/waveform"
)

const (
	defaultVisibleWidth = 100.0
	StatusExhausted     = "source exhausted"
)

// ErrExhausted is returned by Start while a finished recording awaits Reset.
var ErrExhausted = errors.New("monitor: playback finished, reset required")

// Options configure the pipeline stages.
type Options struct {
	Detector beats.Options
	Rhythm   rhythm.Options
	// Window is the trailing analysis window in seconds.
	Window  float64
	Ranges  vitals.Ranges
	Silence float64
	Seed    uint64
	Speed   float64
	Lead    domain.Lead
	// VisibleWidth is the strip width in mm; the visible span is width/speed.
	VisibleWidth float64
	// Scenario overrides the generation condition of unbounded sources.
	Scenario waveform.Scenario
}

// LeadSelector is implemented by sources that render a selectable lead.
type LeadSelector interface {
	SetLead(domain.Lead)
}

// Frame is everything a presentation layer may read after a tick.
type Frame struct {
	Time        float64                              `json:"time"`
	Running     bool                                 `json:"running"`
	Speed       float64                              `json:"speed"`
	Lead        domain.Lead                          `json:"lead"`
	Condition   domain.Rhythm                        `json:"-"`
	Snapshot    vitals.Snapshot                      `json:"snapshot"`
	Rhythm      rhythm.Result                        `json:"rhythm"`
	Windows     map[domain.Channel][]domain.Sample   `json:"windows,omitempty"`
	Alarms      map[domain.Parameter]alarm.Indicator `json:"alarms"`
	States      map[domain.Parameter]alarm.State     `json:"states"`
	Status      string                               `json:"status"`
	Exhausted   bool                                 `json:"exhausted"`
	Transitions []alarm.Transition                   `json:"transitions,omitempty"`
	NewBeats    []domain.Beat                        `json:"new_beats,omitempty"`
	Fresh       domain.Chunk                         `json:"-"`
}

// Monitor runs Source, Detector, Analyzer, Aggregator and Alarm Engine once
// per tick. Ticks and control actions are serialized.
type Monitor struct {
	mu     sync.Mutex
	opts   Options
	logger zerolog.Logger

	clock   *playback.Clock
	source  waveform.Source
	tracker *beats.Tracker
	agg     *vitals.Aggregator
	alarms  *alarm.Engine

	lead      domain.Lead
	condition domain.Rhythm
	result    rhythm.Result
	snapshot  vitals.Snapshot
	buffers   map[domain.Channel][]domain.Sample
	consumed  float64
	exhausted bool
}

// New wires a monitor around src. The clock starts stopped at time zero.
func New(src waveform.Source, opts Options, logger zerolog.Logger) (*Monitor, error) {
	if src == nil {
		return nil, fmt.Errorf("monitor: nil source")
	}
	if opts.Window <= 0 {
		opts.Window = rhythm.DefaultWindow
	}
	if opts.VisibleWidth <= 0 {
		opts.VisibleWidth = defaultVisibleWidth
	}
	if opts.Speed == 0 {
		opts.Speed = playback.DefaultSpeed
	}
	if opts.Lead == "" {
		opts.Lead = domain.LeadII
	}
	if opts.Ranges == nil {
		opts.Ranges = vitals.DefaultRanges()
	}

	m := &Monitor{
		opts:    opts,
		logger:  logger.With().Str("component", "monitor").Logger(),
		clock:   playback.NewClock(),
		source:  src,
		tracker: beats.NewTracker(opts.Detector, 0, 0),
		agg:     vitals.NewAggregator(opts.Ranges, opts.Seed),
		alarms:  alarm.New(opts.Ranges, opts.Silence),
	}
	if err := m.clock.SetSpeed(opts.Speed); err != nil {
		return nil, err
	}
	if err := m.setLeadLocked(opts.Lead); err != nil {
		return nil, err
	}

	m.clock.OnReset(m.resetSource)
	m.clock.OnReset(m.tracker.Reset)
	m.clock.OnReset(m.agg.Reset)
	m.clock.OnReset(m.alarms.Reset)
	m.clock.OnReset(m.clearDerived)
	m.clearDerived()

	return m, nil
}

func (m *Monitor) clearDerived() {
	m.condition = domain.RhythmNormal
	m.result = rhythm.Result{}
	m.snapshot = vitals.Snapshot{}
	m.buffers = make(map[domain.Channel][]domain.Sample)
	m.consumed = -1
	m.exhausted = false
}

// Tick advances the pipeline by realDelta of wall time.
func (m *Monitor) Tick(realDelta time.Duration) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.exhausted {
		return m.frameLocked(nil, nil, nil), nil
	}

	dt := m.clock.Tick(realDelta)
	if dt <= 0 {
		return m.frameLocked(nil, nil, nil), nil
	}
	now := m.clock.Now()

	bounded, isBounded := m.source.(waveform.Bounded)
	if isBounded {
		end := bounded.End()
		if m.consumed >= end {
			m.exhaustLocked(end)
			return m.frameLocked(nil, nil, nil), nil
		}
		if now > end {
			m.clock.Rewind(end)
			dt -= now - end
			now = end
		}
	}

	// Generation reads the previous tick's classification.
	condition := m.condition
	if !isBounded {
		if scripted, ok := m.opts.Scenario.At(now); ok {
			condition = scripted
		}
	}

	chunk, err := m.source.Next(now, condition)
	if errors.Is(err, waveform.ErrSourceExhausted) {
		m.exhaustLocked(now)
		return m.frameLocked(nil, nil, nil), nil
	}
	if err != nil {
		return m.frameLocked(nil, nil, nil), fmt.Errorf("read source: %w", err)
	}
	m.consumed = now
	m.bufferLocked(chunk)

	fresh := m.tracker.Feed(chunk[domain.ChannelECG])
	res := rhythm.Analyze(m.tracker.Beats(), m.opts.Window, m.opts.Rhythm)
	if res.Defined && now-res.WindowEnd > m.opts.Window {
		// No beat for a whole window: the rate is no longer known.
		res = rhythm.Result{}
	}

	snap := m.agg.Aggregate(now, dt, res, condition)
	transitions := m.alarms.Evaluate(snap, res)

	m.result = res
	m.snapshot = snap
	m.condition = res.Class

	for _, tr := range transitions {
		m.logTransition(tr)
	}
	m.logger.Debug().
		Float64("t", now).
		Str("rhythm", res.Class.String()).
		Bool("hr_defined", res.Defined).
		Float64("hr", res.HeartRate).
		Int("new_beats", len(fresh)).
		Msg("tick")

	return m.frameLocked(transitions, fresh, chunk), nil
}

func (m *Monitor) exhaustLocked(end float64) {
	m.clock.Rewind(end)
	m.clock.Pause()
	if !m.exhausted {
		m.logger.Info().Float64("t", end).Msg("recording finished, playback paused")
	}
	m.exhausted = true
}

func (m *Monitor) logTransition(tr alarm.Transition) {
	level := zerolog.InfoLevel
	if tr.Activated() {
		level = zerolog.WarnLevel
	}
	m.logger.WithLevel(level).
		Str("param", string(tr.Param)).
		Str("from", tr.From.String()).
		Str("to", tr.To.String()).
		Float64("t", tr.At).
		Float64("value", tr.Value).
		Msg(tr.Message)
}

func (m *Monitor) maxVisible() float64 {
	slowest := playback.Speeds()[0]
	return m.opts.VisibleWidth / slowest
}

func (m *Monitor) bufferLocked(chunk domain.Chunk) {
	keepFrom := m.consumed - m.maxVisible()
	for ch, samples := range chunk {
		buf := append(m.buffers[ch], samples...)
		drop := 0
		for drop < len(buf) && buf[drop].Time < keepFrom {
			drop++
		}
		if drop > 0 {
			buf = append(buf[:0], buf[drop:]...)
		}
		m.buffers[ch] = buf
	}
}

func (m *Monitor) visibleLocked() map[domain.Channel][]domain.Sample {
	span := m.opts.VisibleWidth / m.clock.Speed()
	from := m.clock.Now() - span
	out := make(map[domain.Channel][]domain.Sample, len(m.buffers)+1)
	for ch, buf := range m.buffers {
		i := len(buf)
		for i > 0 && buf[i-1].Time >= from {
			i--
		}
		win := make([]domain.Sample, len(buf)-i)
		copy(win, buf[i:])
		out[ch] = win
	}
	if _, ok := out[domain.ChannelECGLead]; !ok {
		if ecg, ok := out[domain.ChannelECG]; ok {
			out[domain.ChannelECGLead] = ecg
		}
	}
	return out
}

func (m *Monitor) frameLocked(transitions []alarm.Transition, fresh []domain.Beat, chunk domain.Chunk) Frame {
	return Frame{
		Time:        m.clock.Now(),
		Running:     m.clock.Running(),
		Speed:       m.clock.Speed(),
		Lead:        m.lead,
		Condition:   m.condition,
		Snapshot:    m.snapshot,
		Rhythm:      m.result,
		Windows:     m.visibleLocked(),
		Alarms:      m.alarms.View(),
		States:      m.alarms.States(),
		Status:      m.statusLocked(),
		Exhausted:   m.exhausted,
		Transitions: transitions,
		NewBeats:    fresh,
		Fresh:       chunk,
	}
}

func (m *Monitor) statusLocked() string {
	if m.exhausted {
		return StatusExhausted
	}
	if msgs := m.alarms.Summary(); msgs != "" {
		if !m.alarms.Audible() {
			return "ALARM (silenced): " + msgs
		}
		return "ALARM: " + msgs
	}
	switch {
	case !m.clock.Running() && m.clock.Now() == 0:
		return "ready"
	case !m.clock.Running():
		return "paused"
	}
	return "All parameters normal"
}

// Frame returns the current output without advancing time.
func (m *Monitor) Frame() Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameLocked(nil, nil, nil)
}

// Beats returns the retained detected beats.
func (m *Monitor) Beats() []domain.Beat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Beats()
}

// Start resumes the clock.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exhausted {
		return ErrExhausted
	}
	m.clock.Start()
	m.logger.Info().Float64("t", m.clock.Now()).Msg("monitor started")
	return nil
}

// Pause stops the clock; derived state is kept.
func (m *Monitor) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock.Pause()
	m.logger.Info().Float64("t", m.clock.Now()).Msg("monitor paused")
}

// Reset zeroes simulated time and clears beats, classification, vitals and alarms.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock.Reset()
	m.logger.Info().Msg("monitor reset")
}

// Silence mutes every active alarm.
func (m *Monitor) Silence() []alarm.Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	trs := m.alarms.Silence(m.clock.Now())
	for _, tr := range trs {
		m.logTransition(tr)
	}
	return trs
}

// SetDisplaySpeed selects 12.5, 25 or 50 mm/s.
func (m *Monitor) SetDisplaySpeed(mmPerSecond float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.clock.SetSpeed(mmPerSecond); err != nil {
		return err
	}
	m.logger.Info().Float64("speed", mmPerSecond).Msg("display speed changed")
	return nil
}

// SetLead changes the displayed ECG morphology. Classification always uses lead II.
func (m *Monitor) SetLead(lead domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLeadLocked(lead)
}

func (m *Monitor) setLeadLocked(lead domain.Lead) error {
	lead, err := domain.ParseLead(string(lead))
	if err != nil {
		return err
	}
	if sel, ok := m.source.(LeadSelector); ok {
		sel.SetLead(lead)
	}
	m.lead = lead
	return nil
}

// resetSource rewinds the source and reapplies the displayed lead.
func (m *Monitor) resetSource() {
	m.source.Reset()
	if sel, ok := m.source.(LeadSelector); ok {
		sel.SetLead(m.lead)
	}
}

// UseSource swaps the sample source and resets the pipeline.
func (m *Monitor) UseSource(src waveform.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = src
	m.clock.Reset()
}

// LoadRecording replaces the source with a CSV recording. On failure the
// current source and state are left untouched.
func (m *Monitor) LoadRecording(path string) error {
	rec, err := waveform.LoadCSV(path)
	if err != nil {
		m.logger.Error().Err(err).Str("path", path).Msg("recording rejected")
		return fmt.Errorf("load recording: %w", err)
	}
	m.UseSource(waveform.NewFileSource(rec))
	m.logger.Info().Str("path", path).Int("rows", rec.Len()).Float64("duration", rec.End()).Msg("recording loaded")
	return nil
}
