package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"patient-monitor/internal/alarm"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/monitor"
)

var rhythmClasses = []domain.Rhythm{
	domain.RhythmNormal,
	domain.RhythmBradycardia,
	domain.RhythmTachycardia,
	domain.RhythmAtrialFibrillation,
}

// Metrics exports monitor frames as Prometheus series.
type Metrics struct {
	vitals      *prometheus.GaugeVec
	alarms      *prometheus.GaugeVec
	rhythm      *prometheus.GaugeVec
	simTime     prometheus.Gauge
	ticks       prometheus.Counter
	beats       prometheus.Counter
	activations *prometheus.CounterVec
	tickLatency prometheus.Histogram
}

// NewMetrics registers the monitor collectors on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		vitals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vital_value",
			Help:      "Latest value of each defined vital sign.",
		}, []string{"param"}),
		alarms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_status",
			Help:      "Alarm status per parameter: 0 inactive, 1 active, 2 silenced.",
		}, []string{"param"}),
		rhythm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rhythm_class",
			Help:      "1 for the current rhythm classification, 0 otherwise.",
		}, []string{"class"}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulated_time_seconds",
			Help:      "Simulated seconds since the last reset.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Pipeline ticks executed.",
		}),
		beats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "beats_detected_total",
			Help:      "R-peaks emitted by the beat detector.",
		}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_activations_total",
			Help:      "Transitions into the active alarm status.",
		}, []string{"param"}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent processing one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	for _, c := range []prometheus.Collector{m.vitals, m.alarms, m.rhythm, m.simTime, m.ticks, m.beats, m.activations, m.tickLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one frame and the wall time spent producing it.
func (m *Metrics) Observe(frame monitor.Frame, took time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickLatency.Observe(took.Seconds())
	m.simTime.Set(frame.Time)
	m.beats.Add(float64(len(frame.NewBeats)))

	for _, p := range domain.Vitals {
		reading, ok := frame.Snapshot.Reading(p)
		if !ok || !reading.Defined {
			m.vitals.DeleteLabelValues(string(p))
			continue
		}
		m.vitals.WithLabelValues(string(p)).Set(reading.Value)
	}

	for p, st := range frame.States {
		m.alarms.WithLabelValues(string(p)).Set(float64(st.Status))
	}
	for _, tr := range frame.Transitions {
		if tr.To == alarm.StatusActive {
			m.activations.WithLabelValues(string(tr.Param)).Inc()
		}
	}

	for _, class := range rhythmClasses {
		v := 0.0
		if frame.Rhythm.Defined && frame.Rhythm.Class == class {
			v = 1
		}
		m.rhythm.WithLabelValues(class.String()).Set(v)
	}
}

// Serve exposes gatherer on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
