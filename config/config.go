// Package config loads the zona9 configuration from YAML and the
// environment. The result is built once at start and read-only after.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/zona9/aggregate"
	"github.com/hazyhaar/zona9/rendermode"
)

// Config holds all zona9 configuration.
type Config struct {
	Addr      string          `yaml:"addr"`
	DBPath    string          `yaml:"db_path"`
	ObsDBPath string          `yaml:"obs_db_path"`
	BaseURL   string          `yaml:"base_url"` // origin the capture browser loads
	LogLevel  string          `yaml:"log_level"`
	Capture   CaptureConfig   `yaml:"capture"`
	Report    ReportConfig    `yaml:"report"`
	Retention RetentionConfig `yaml:"retention"`
}

// CaptureConfig controls the headless capture driver.
type CaptureConfig struct {
	Remote            string        `yaml:"remote"` // ws:// URL of an external Chrome
	Bin               string        `yaml:"bin"`
	AllowedHosts      []string      `yaml:"allowed_hosts"`
	ViewportWidth     int           `yaml:"viewport_width"`
	DeviceScale       float64       `yaml:"device_scale"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ReadyTimeout      time.Duration `yaml:"ready_timeout"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	PollInterval      time.Duration `yaml:"poll_interval"`
}

// ReportConfig controls report rendering.
type ReportConfig struct {
	// LabelThreshold hides share labels below this fraction of the total.
	LabelThreshold float64 `yaml:"label_threshold"`
}

// RetentionConfig is the observability retention, in days.
type RetentionConfig struct {
	HTTPLogsDays  int `yaml:"http_logs_days"`
	EventLogsDays int `yaml:"event_logs_days"`
	MetricsDays   int `yaml:"metrics_days"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "zona9.db"
	}
	if c.ObsDBPath == "" {
		c.ObsDBPath = "zona9_obs.db"
	}
	if c.BaseURL == "" {
		c.BaseURL = baseURLFor(c.Addr)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Capture.ViewportWidth <= 0 {
		c.Capture.ViewportWidth = rendermode.DefaultViewportWidth
	}
	if c.Capture.DeviceScale <= 0 {
		c.Capture.DeviceScale = rendermode.DefaultDeviceScale
	}
	if c.Capture.NavigationTimeout <= 0 {
		c.Capture.NavigationTimeout = 30 * time.Second
	}
	if c.Capture.ReadyTimeout <= 0 {
		c.Capture.ReadyTimeout = 10 * time.Second
	}
	if c.Capture.SettleDelay <= 0 {
		c.Capture.SettleDelay = rendermode.DefaultSettleDelay
	}
	if c.Capture.PollInterval <= 0 {
		c.Capture.PollInterval = rendermode.DefaultPollInterval
	}
	if c.Report.LabelThreshold <= 0 {
		c.Report.LabelThreshold = aggregate.DefaultLabelThreshold
	}
	if c.Retention.HTTPLogsDays <= 0 {
		c.Retention.HTTPLogsDays = 14
	}
	if c.Retention.EventLogsDays <= 0 {
		c.Retention.EventLogsDays = 90
	}
	if c.Retention.MetricsDays <= 0 {
		c.Retention.MetricsDays = 30
	}
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	c := &Config{}
	c.defaults()
	return c
}

// LoadFile reads a YAML configuration file, applies ZONA9_* environment
// overrides and fills defaults. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ZONA9_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("ZONA9_DB"); v != "" {
		c.DBPath = v
	}
	if v := getenv("ZONA9_OBS_DB"); v != "" {
		c.ObsDBPath = v
	}
	if v := getenv("ZONA9_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := getenv("ZONA9_CHROME_URL"); v != "" {
		c.Capture.Remote = v
	}
	if v := getenv("ZONA9_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate rejects values defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Report.LabelThreshold >= 1 {
		return fmt.Errorf("config: label_threshold %v must be below 1", c.Report.LabelThreshold)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("config: base_url %q must be http or https", c.BaseURL)
	}
	return nil
}

// Level returns the slog level of LogLevel.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
}

// baseURLFor derives the loopback origin of a listen address.
func baseURLFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://127.0.0.1:8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
