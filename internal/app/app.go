package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"patient-monitor/internal/alerting"
	"patient-monitor/internal/beats"
	"patient-monitor/internal/config"
	"patient-monitor/internal/control"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/monitor"
	"patient-monitor/internal/observability"
	"patient-monitor/internal/publish"
	"patient-monitor/internal/rhythm"
	"patient-monitor/internal/scheduler"
	"patient-monitor/internal/service"
	"patient-monitor/internal/storage"
	"patient-monitor/internal/waveform"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	if a.Config.Alerting.Enabled {
		return alerting.NewLogNotifier(a.Logger)
	}
	return nil
}

func (a *App) openRecorder(ctx context.Context) (storage.Recorder, func(), error) {
	rec, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, nil
	}
	return rec, rec.Close, nil
}

func (a *App) detectorOptions() beats.Options {
	return beats.Options{
		Refractory:     a.Config.Detector.Refractory.Seconds(),
		HeightFraction: a.Config.Detector.HeightFraction,
	}
}

func (a *App) rhythmOptions() rhythm.Options {
	return rhythm.Options{
		TachycardiaAbove: a.Config.Rhythm.TachycardiaAbove,
		BradycardiaBelow: a.Config.Rhythm.BradycardiaBelow,
		IrregularityCV:   a.Config.Rhythm.IrregularityCV,
	}
}

func (a *App) scenario() waveform.Scenario {
	switch a.Config.Monitor.Scenario {
	case "demo":
		return waveform.DemoScenario(false)
	case "demo_afib":
		return waveform.DemoScenario(true)
	}
	return waveform.Scenario{}
}

func (a *App) newSource() (waveform.Source, error) {
	if a.Config.Source.Kind == "file" {
		rec, err := waveform.LoadCSV(a.Config.Source.Path)
		if err != nil {
			return nil, fmt.Errorf("load recording: %w", err)
		}
		return waveform.NewFileSource(rec), nil
	}
	return waveform.NewSynth(waveform.SynthOptions{
		SampleRate: a.Config.Monitor.SampleRate,
		Noise:      a.Config.Monitor.Noise,
		Seed:       a.Config.Monitor.Seed,
	}), nil
}

// BuildMonitor wires a monitor from configuration.
func (a *App) BuildMonitor() (*monitor.Monitor, error) {
	ranges, err := a.Config.Ranges()
	if err != nil {
		return nil, err
	}
	src, err := a.newSource()
	if err != nil {
		return nil, err
	}
	return monitor.New(src, monitor.Options{
		Detector:     a.detectorOptions(),
		Rhythm:       a.rhythmOptions(),
		Window:       a.Config.Monitor.AnalysisWindow.Seconds(),
		Ranges:       ranges,
		Silence:      a.Config.Alarm.Silence.Seconds(),
		Seed:         a.Config.Monitor.Seed,
		Speed:        a.Config.Monitor.DisplaySpeed,
		Lead:         domain.Lead(a.Config.Monitor.Lead),
		VisibleWidth: a.Config.Monitor.VisibleWidthMM,
		Scenario:     a.scenario(),
	}, a.Logger)
}

// RunOptions configure the run command.
type RunOptions struct {
	// Console reads control commands from stdin.
	Console bool
	// Paused leaves the clock stopped until a start command arrives.
	Paused bool
	// Display prints the numeric panel to stdout once per second.
	Display bool
}

// Run executes the long-running monitor session.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mon, err := a.BuildMonitor()
	if err != nil {
		return err
	}

	recorder, closeRecorder, err := a.openRecorder(ctx)
	if err != nil {
		return err
	}
	if recorder == nil {
		a.Logger.Warn().Msg("database.driver not configured; session recording disabled")
	}
	if closeRecorder != nil {
		defer closeRecorder()
	}

	deps := service.Deps{Recorder: recorder, Notifier: a.newNotifier()}
	if opts.Display {
		deps.Observer = throttledPrinter(os.Stdout, time.Second, time.Now)
	}

	if a.Config.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := observability.NewMetrics(a.Config.Metrics.Namespace, reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		deps.Metrics = metrics
		go func() {
			if err := observability.Serve(ctx, a.Config.Metrics.Addr, reg, a.Logger); err != nil {
				a.Logger.Error().Err(err).Msg("metrics endpoint stopped")
			}
		}()
	}

	sched := scheduler.New(scheduler.Options{Interval: a.Config.Monitor.TickInterval}, a.Logger)

	var nc *nats.Conn
	subject := a.subjectPrefix()
	if a.Config.Publish.Enabled {
		nc, err = publish.Connect(publish.ConnectOptions{
			URL:           a.Config.Publish.URL,
			Name:          a.Config.App.Name,
			Timeout:       a.Config.Publish.Timeout,
			ReconnectWait: a.Config.Publish.ReconnectWait,
			MaxReconnects: a.Config.Publish.MaxReconnects,
		})
		if err != nil {
			return err
		}
		defer nc.Drain()
		deps.Publisher = publish.NewPublisher(nc, subject, a.Config.App.Bed, a.Logger)
		a.Logger.Info().Str("subject", subject).Msg("publishing frames to NATS")
	}

	svc := service.New(a.Config, mon, sched, deps, a.Logger)

	if nc != nil && a.Config.Publish.Control {
		sub, err := publish.SubscribeControl(nc, subject, func(line string) (string, error) {
			return control.Execute(svc, line)
		}, a.Logger)
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()
	}

	if !opts.Paused {
		if err := svc.Start(); err != nil {
			return err
		}
	}
	if opts.Console {
		go a.runConsole(ctx, svc)
	}

	a.Logger.Info().Str("bed", a.Config.App.Bed).Msg("starting monitor session")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("session terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitor session stopped")
	return nil
}

func (a *App) subjectPrefix() string {
	if a.Config.App.Bed == "" {
		return a.Config.Publish.Subject
	}
	return a.Config.Publish.Subject + "." + a.Config.App.Bed
}

// ExportOptions hold parameters for exporting recorded snapshots.
type ExportOptions struct {
	// From and To bound simulated time in seconds; nil means open.
	From      *float64
	To        *float64
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	// Param restricts alarm events to one parameter; empty lists all.
	Param domain.Parameter
	// AlarmsOnly skips the snapshot table.
	AlarmsOnly bool
}

// AnalyzeOptions configure the offline analysis of a recording.
type AnalyzeOptions struct {
	Path string
	// Window is the classification window in seconds; zero uses the configured window.
	Window  float64
	PNGPath string
	// StripSeconds limits the rendered strip; zero renders the whole file.
	StripSeconds float64
	// Method picks the beat detector: MethodPeak (default) or MethodPanTompkins.
	Method string
	// Preprocess filters baseline wander, noise and mains hum before detection.
	Preprocess bool
}
