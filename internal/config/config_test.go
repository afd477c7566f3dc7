package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"netcomfort/pkg/logx"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.yaml"), logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cafe.OpenHour != 9 || cfg.Cafe.CloseHour != 22 {
		t.Fatalf("defaults not applied: %+v", cfg.Cafe)
	}
	if m.Get() != cfg {
		t.Fatalf("Get did not return committed config")
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
cafe:
  open_hour: 8
  close_hour: 20
  utc_offset_hours: 2
speedtest:
  command: /opt/speedtest/speedtest
  timeout: 90s
  retry_count: 5
`)
	m := NewManager(path, logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cafe.OpenHour != 8 || cfg.Cafe.CloseHour != 20 || cfg.Cafe.UTCOffsetHours != 2 {
		t.Fatalf("cafe overrides lost: %+v", cfg.Cafe)
	}
	if cfg.Speedtest.Command != "/opt/speedtest/speedtest" || cfg.Speedtest.RetryCount != 5 {
		t.Fatalf("speedtest overrides lost: %+v", cfg.Speedtest)
	}
	if cfg.SpeedtestTimeout() != 90*time.Second {
		t.Fatalf("timeout = %v, want 90s", cfg.SpeedtestTimeout())
	}
	// Untouched sections keep their defaults.
	if cfg.Storage.RetentionDays != 90 {
		t.Fatalf("storage defaults lost: %+v", cfg.Storage)
	}
	if len(cfg.Scoring.Labels) != 4 {
		t.Fatalf("scoring defaults lost: %+v", cfg.Scoring.Labels)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
cafe:
  open_hour: 9
  close_hour: 22
  opne_hour_typo: 10
`)
	if _, err := NewManager(path, logx.Nop()).Load(); err == nil {
		t.Fatalf("expected unknown-key error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"open after close", func(c *Config) { c.Cafe.OpenHour = 22; c.Cafe.CloseHour = 9 }},
		{"open out of range", func(c *Config) { c.Cafe.OpenHour = -1 }},
		{"empty command", func(c *Config) { c.Speedtest.Command = "" }},
		{"zero retries", func(c *Config) { c.Speedtest.RetryCount = 0 }},
		{"bad timeout", func(c *Config) { c.Speedtest.Timeout = "banana" }},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
		{"zero retention", func(c *Config) { c.Storage.RetentionDays = 0 }},
		{"zero threshold", func(c *Config) { c.Scoring.Thresholds.PingMaxMs = 0 }},
		{"band min over max", func(c *Config) { c.Scoring.Labels[0].Min = 101 }},
		{"unnamed band", func(c *Config) { c.Scoring.Labels[0].Label = "" }},
		{"bad granularity", func(c *Config) { c.Report.Granularity = "weekly" }},
		{"notify without token", func(c *Config) { c.Notify = &NotifyConfig{ChatID: 5} }},
		{"notify without chat", func(c *Config) { c.Notify = &NotifyConfig{Token: "x"} }},
	}
	for _, c := range cases {
		cfg := Default()
		c.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
}

func TestValidateAllowsPermissiveScoring(t *testing.T) {
	cfg := Default()
	// Weights not summing to 1.0 are deliberately tolerated.
	cfg.Scoring.Weights = WeightsConfig{Download: 0.9, Upload: 0.9, Ping: 0.9, Jitter: 0.9}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("weights off 1.0 should validate: %v", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfig(t, "config.json", `{"logging":{"console":true}} {"extra":1}`)
	if _, err := NewManager(path, logx.Nop()).Load(); err == nil {
		t.Fatalf("expected trailing-data error")
	}
}
