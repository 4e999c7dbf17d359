package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"patient-monitor/internal/domain"
	"patient-monitor/internal/logging"
	"patient-monitor/internal/vitals"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Logging    logging.Config          `mapstructure:"logging"`
	Monitor    MonitorConfig           `mapstructure:"monitor"`
	Detector   DetectorConfig          `mapstructure:"detector"`
	Rhythm     RhythmConfig            `mapstructure:"rhythm"`
	Alarm      AlarmConfig             `mapstructure:"alarm"`
	Thresholds map[string]vitals.Range `mapstructure:"thresholds"`
	Source     SourceConfig            `mapstructure:"source"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Alerting   AlertingConfig          `mapstructure:"alerting"`
	Publish    PublishConfig           `mapstructure:"publish"`
	Metrics    MetricsConfig           `mapstructure:"metrics"`
	Export     ExportConfig            `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	// Bed labels notifications and published subjects.
	Bed string `mapstructure:"bed"`
}

// MonitorConfig governs the tick pipeline and display.
type MonitorConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval"`
	SampleRate     float64       `mapstructure:"sample_rate"`
	AnalysisWindow time.Duration `mapstructure:"analysis_window"`
	DisplaySpeed   float64       `mapstructure:"display_speed"`
	Lead           string        `mapstructure:"lead"`
	VisibleWidthMM float64       `mapstructure:"visible_width_mm"`
	Scenario       string        `mapstructure:"scenario"`
	Seed           uint64        `mapstructure:"seed"`
	Noise          float64       `mapstructure:"noise"`
}

// DetectorConfig tunes R-peak detection.
type DetectorConfig struct {
	Refractory     time.Duration `mapstructure:"refractory"`
	HeightFraction float64       `mapstructure:"height_fraction"`
}

// RhythmConfig holds the classification cutoffs.
type RhythmConfig struct {
	TachycardiaAbove float64 `mapstructure:"tachycardia_above"`
	BradycardiaBelow float64 `mapstructure:"bradycardia_below"`
	IrregularityCV   float64 `mapstructure:"irregularity_cv"`
}

// AlarmConfig covers silence behaviour.
type AlarmConfig struct {
	Silence time.Duration `mapstructure:"silence"`
}

// SourceConfig selects the sample source.
type SourceConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
}

// DatabaseConfig encapsulates the session recorder connection.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RecordInterval  time.Duration `mapstructure:"record_interval"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot target.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// PublishConfig covers the NATS frame feed.
type PublishConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Subject       string        `mapstructure:"subject"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	Control       bool          `mapstructure:"control"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PATIENTMONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "patient-monitor")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.bed", "bed-1")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("monitor.tick_interval", "100ms")
	v.SetDefault("monitor.sample_rate", 250.0)
	v.SetDefault("monitor.analysis_window", "10s")
	v.SetDefault("monitor.display_speed", 25.0)
	v.SetDefault("monitor.lead", "II")
	v.SetDefault("monitor.visible_width_mm", 100.0)
	v.SetDefault("monitor.scenario", "none")
	v.SetDefault("monitor.seed", uint64(1))
	v.SetDefault("monitor.noise", 0.02)

	v.SetDefault("detector.refractory", "600ms")
	v.SetDefault("detector.height_fraction", 0.6)

	v.SetDefault("rhythm.tachycardia_above", 100.0)
	v.SetDefault("rhythm.bradycardia_below", 60.0)
	v.SetDefault("rhythm.irregularity_cv", 0.15)

	v.SetDefault("alarm.silence", "30s")

	v.SetDefault("source.kind", "synth")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.record_interval", "1s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "0s")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.url", "nats://127.0.0.1:4222")
	v.SetDefault("publish.subject", "monitor")
	v.SetDefault("publish.timeout", "2s")
	v.SetDefault("publish.reconnect_wait", "2s")
	v.SetDefault("publish.max_reconnects", -1)
	v.SetDefault("publish.control", true)

	v.SetDefault("metrics.namespace", "patient_monitor")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Monitor.TickInterval <= 0 {
		return fmt.Errorf("monitor.tick_interval must be greater than zero")
	}
	if c.Monitor.SampleRate <= 0 {
		return fmt.Errorf("monitor.sample_rate must be greater than zero")
	}
	if c.Monitor.AnalysisWindow <= 0 {
		return fmt.Errorf("monitor.analysis_window must be greater than zero")
	}
	switch c.Monitor.DisplaySpeed {
	case 12.5, 25, 50:
	default:
		return fmt.Errorf("monitor.display_speed must be 12.5, 25 or 50, got %g", c.Monitor.DisplaySpeed)
	}
	if _, err := domain.ParseLead(c.Monitor.Lead); err != nil {
		return fmt.Errorf("monitor.lead: %w", err)
	}
	switch c.Monitor.Scenario {
	case "", "none", "demo", "demo_afib":
	default:
		return fmt.Errorf("monitor.scenario must be none, demo or demo_afib, got %q", c.Monitor.Scenario)
	}
	if c.Detector.Refractory <= 0 {
		return fmt.Errorf("detector.refractory must be greater than zero")
	}
	if c.Detector.HeightFraction <= 0 || c.Detector.HeightFraction >= 1 {
		return fmt.Errorf("detector.height_fraction must be between 0 and 1")
	}
	if c.Rhythm.BradycardiaBelow >= c.Rhythm.TachycardiaAbove {
		return fmt.Errorf("rhythm.bradycardia_below must be below rhythm.tachycardia_above")
	}
	if c.Rhythm.IrregularityCV <= 0 {
		return fmt.Errorf("rhythm.irregularity_cv must be greater than zero")
	}
	if c.Alarm.Silence <= 0 {
		return fmt.Errorf("alarm.silence must be greater than zero")
	}
	if _, err := c.Ranges(); err != nil {
		return err
	}
	switch c.Source.Kind {
	case "synth":
	case "file":
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required when source.kind is file")
		}
	default:
		return fmt.Errorf("source.kind must be synth or file, got %q", c.Source.Kind)
	}
	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.Driver != "" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Publish.Enabled && c.Publish.Subject == "" {
		return fmt.Errorf("publish.subject is required when publishing is enabled")
	}
	return nil
}

// Ranges merges the configured thresholds over the default table.
func (c *Config) Ranges() (vitals.Ranges, error) {
	override := make(vitals.Ranges, len(c.Thresholds))
	for name, rg := range c.Thresholds {
		override[domain.Parameter(strings.ToLower(name))] = rg
	}
	if err := override.Validate(); err != nil {
		return nil, fmt.Errorf("thresholds: %w", err)
	}
	return vitals.DefaultRanges().Merge(override), nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
