package config

import (
	"fmt"
	"time"
)

// Config is the full configuration surface. YAML files are coerced to JSON
// and decoded strictly, so unknown keys fail loudly instead of being ignored.
//
// All durations are Go duration strings (e.g. "10s", "2m").
type Config struct {
	Cafe      CafeConfig      `json:"cafe"`
	Speedtest SpeedtestConfig `json:"speedtest"`
	Storage   StorageConfig   `json:"storage"`
	Scoring   ScoringConfig   `json:"scoring"`
	Report    ReportConfig    `json:"report"`
	Notify    *NotifyConfig   `json:"notify,omitempty"`
	Daemon    DaemonConfig    `json:"daemon"`
	Logging   LoggingConfig   `json:"logging"`
}

/// CafeConfig describes the venue: which local hours count as "open" for
// aggregation, and how far the venue clock sits from UTC.
type CafeConfig struct {
	OpenHour       int `json:"open_hour"`
	CloseHour      int `json:"close_hour"`
	UTCOffsetHours int `json:"utc_offset_hours"`
}

type SpeedtestConfig struct {
	Command    string `json:"command"`
	Timeout    string `json:"timeout,omitempty"`
	RetryCount int    `json:"retry_count,omitempty"`
	RetryWait  string `json:"retry_wait,omitempty"`
	// FallbackEmbedded runs the built-in speedtest engine when the CLI binary
	// cannot be located.
	FallbackEmbedded bool `json:"fallback_embedded,omitempty"`
}

type StorageConfig struct {
	Path          string `json:"path"`
	RetentionDays int    `json:"retention_days,omitempty"`
	BusyTimeout   string `json:"busy_timeout,omitempty"`
}

type ScoringConfig struct {
	Weights    WeightsConfig    `json:"weights"`
	Thresholds ThresholdsConfig `json:"thresholds"`
	Labels     []LabelBand      `json:"labels"`
}

// WeightsConfig should sum to 1.0; this is documented, not enforced.
type WeightsConfig struct {
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
	Ping     float64 `json:"ping"`
	Jitter   float64 `json:"jitter"`
}

type ThresholdsConfig struct {
	DownloadMaxMbps float64 `json:"download_max_mbps"`
	UploadMaxMbps   float64 `json:"upload_max_mbps"`
	PingMaxMs       float64 `json:"ping_max_ms"`
	JitterMaxMs     float64 `json:"jitter_max_ms"`
}

type LabelBand struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Label string  `json:"label"`
}

type ReportConfig struct {
	LookbackDays int    `json:"lookback_days,omitempty"`
	AssetsDir    string `json:"assets_dir,omitempty"`
	// FontPath points at a TTF file for report text. When empty or unreadable
	// the renderer falls back to a built-in bitmap font.
	FontPath string `json:"font_path,omitempty"`
	// Granularity picks the default output filename: "daily" (YYYY-MM-DD.png)
	// or "hourly" (YYYY-MM-DD_HH00.png).
	Granularity string `json:"granularity,omitempty"`
}

// NotifyConfig enables pushing the rendered report to a Telegram chat.
// Omitting the section disables notification entirely.
type NotifyConfig struct {
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	RatePerMin int    `json:"rate_per_min,omitempty"`
}

// DaemonConfig holds the in-process schedules used by `netcomfort daemon`.
// Cron specs use the standard five-field syntax in venue-local time.
type DaemonConfig struct {
	MeasureSpec string `json:"measure_spec,omitempty"`
	ReportSpec  string `json:"report_spec,omitempty"`
	PurgeSpec   string `json:"purge_spec,omitempty"`
	// Watchdog enables systemd watchdog pings (WatchdogSec in the unit).
	Watchdog bool `json:"watchdog,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// Default returns the built-in configuration, used when no file exists and as
// the base for partial files.
func Default() *Config {
	return &Config{
		Cafe: CafeConfig{OpenHour: 9, CloseHour: 22, UTCOffsetHours: 9},
		Speedtest: SpeedtestConfig{
			Command:    "speedtest",
			Timeout:    "2m",
			RetryCount: 3,
			RetryWait:  "10s",
		},
		Storage: StorageConfig{
			Path:          "data/netcomfort.db",
			RetentionDays: 90,
			BusyTimeout:   "5s",
		},
		Scoring: ScoringConfig{
			Weights: WeightsConfig{Download: 0.35, Upload: 0.20, Ping: 0.30, Jitter: 0.15},
			Thresholds: ThresholdsConfig{
				DownloadMaxMbps: 100,
				UploadMaxMbps:   50,
				PingMaxMs:       100,
				JitterMaxMs:     50,
			},
			Labels: []LabelBand{
				{Min: 90, Max: 100, Label: "excellent"},
				{Min: 70, Max: 89, Label: "comfortable"},
				{Min: 50, Max: 69, Label: "unstable"},
				{Min: 0, Max: 49, Label: "poor"},
			},
		},
		Report: ReportConfig{
			LookbackDays: 28,
			AssetsDir:    "assets",
			Granularity:  "hourly",
		},
		Daemon: DaemonConfig{
			MeasureSpec: "*/15 9-21 * * *",
			ReportSpec:  "5 * * * *",
			PurgeSpec:   "30 3 * * *",
		},
		Logging: LoggingConfig{Level: "INFO", Console: true},
	}
}

// Validate rejects configurations that would make a run undefined. Weights
// that do not sum to 1.0 and negative metric values are deliberately allowed.
func (c *Config) Validate() error {
	if c.Cafe.OpenHour < 0 || c.Cafe.OpenHour > 23 {
		return fmt.Errorf("cafe.open_hour: must be in [0,23], got %d", c.Cafe.OpenHour)
	}
	if c.Cafe.CloseHour < 1 || c.Cafe.CloseHour > 24 {
		return fmt.Errorf("cafe.close_hour: must be in [1,24], got %d", c.Cafe.CloseHour)
	}
	if c.Cafe.OpenHour >= c.Cafe.CloseHour {
		return fmt.Errorf("cafe: open_hour %d must be before close_hour %d",
			c.Cafe.OpenHour, c.Cafe.CloseHour)
	}

	if c.Speedtest.Command == "" {
		return fmt.Errorf("speedtest.command: required")
	}
	if c.Speedtest.RetryCount < 1 {
		return fmt.Errorf("speedtest.retry_count: must be >= 1, got %d", c.Speedtest.RetryCount)
	}
	if _, err := ParseDurationField("speedtest.timeout", c.Speedtest.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("speedtest.retry_wait", c.Speedtest.RetryWait); err != nil {
		return err
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path: required")
	}
	if c.Storage.RetentionDays < 1 {
		return fmt.Errorf("storage.retention_days: must be >= 1, got %d", c.Storage.RetentionDays)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}

	t := c.Scoring.Thresholds
	if t.DownloadMaxMbps <= 0 || t.UploadMaxMbps <= 0 || t.PingMaxMs <= 0 || t.JitterMaxMs <= 0 {
		return fmt.Errorf("scoring.thresholds: all thresholds must be strictly positive")
	}
	for i, b := range c.Scoring.Labels {
		if b.Label == "" {
			return fmt.Errorf("scoring.labels[%d]: label is empty", i)
		}
		if b.Min > b.Max {
			return fmt.Errorf("scoring.labels[%d]: min %v > max %v", i, b.Min, b.Max)
		}
	}

	if c.Report.LookbackDays < 1 {
		return fmt.Errorf("report.lookback_days: must be >= 1, got %d", c.Report.LookbackDays)
	}
	switch c.Report.Granularity {
	case "", "daily", "hourly":
	default:
		return fmt.Errorf("report.granularity: must be daily or hourly, got %q", c.Report.Granularity)
	}

	if c.Notify != nil {
		if c.Notify.Token == "" {
			return fmt.Errorf("notify.token: required when notify section is present")
		}
		if c.Notify.ChatID == 0 {
			return fmt.Errorf("notify.chat_id: required when notify section is present")
		}
	}
	return nil
}

// SpeedtestTimeout returns the parsed attempt timeout.
// Validate must have accepted the config first.
func (c *Config) SpeedtestTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("speedtest.timeout", c.Speedtest.Timeout, 2*time.Minute)
	return d
}

// SpeedtestRetryWait returns the parsed inter-attempt wait.
func (c *Config) SpeedtestRetryWait() time.Duration {
	d, _ := ParseDurationOrDefault("speedtest.retry_wait", c.Speedtest.RetryWait, 10*time.Second)
	return d
}

// StorageBusyTimeout returns the parsed sqlite busy timeout.
func (c *Config) StorageBusyTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second)
	return d
}
