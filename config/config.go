package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/cloudstats/logging"
)

const (
	// Default listener settings
	defaultListenAddr = ":8080"

	// Default ledger settings
	defaultCapacity   = 100
	defaultLogEntries = logging.DefaultMaxEntries

	// Default sweep settings
	defaultSweepSchedule = "*/10 * * * *"

	// Default monitoring settings
	defaultMetricsPrefix = "cloudstats"
	defaultJobName       = "cloudstats"
	defaultPushInterval  = 30 * time.Second

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "json"
	defaultLogOutput = "stdout"
)

// Config represents the complete application configuration
type Config struct {
	Listener   ListenerConfig   `yaml:"listener"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Clouds     []string         `yaml:"clouds"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ListenerConfig holds HTTP server listener settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
	// TLS is enabled when both files are set. They are re-read when they change.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LedgerConfig sizes the activity ledger.
type LedgerConfig struct {
	// Capacity is the number of activities kept; the oldest is evicted first.
	Capacity int `yaml:"capacity"`
	// LogEntries is the number of log lines kept per activity.
	LogEntries int `yaml:"log_entries"`
}

// SweepConfig controls the completion sweep.
type SweepConfig struct {
	// Schedule is a 5 field cron spec.
	Schedule string `yaml:"schedule"`
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	// PushURL enables pushing metrics to a remote write endpoint.
	PushURL       string        `yaml:"push_url"`
	MetricsPrefix string        `yaml:"metrics_prefix"`
	JobName       string        `yaml:"jobname"`
	PushInterval  time.Duration `yaml:"push_interval"`
}

// LoggingConfig defines logging behavior settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// TLSEnabled reports whether the listener serves HTTPS.
func (l ListenerConfig) TLSEnabled() bool {
	return l.CertFile != "" && l.KeyFile != ""
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Listener.Addr == "" {
		errs = append(errs, errors.New("listener address is required"))
	}
	if (c.Listener.CertFile == "") != (c.Listener.KeyFile == "") {
		errs = append(errs, errors.New("listener cert_file and key_file must be set together"))
	}
	if c.Ledger.Capacity < 1 {
		errs = append(errs, fmt.Errorf("ledger capacity must be positive, got %d", c.Ledger.Capacity))
	}
	if c.Ledger.LogEntries < 1 {
		errs = append(errs, fmt.Errorf("ledger log_entries must be positive, got %d", c.Ledger.LogEntries))
	}
	if c.Sweep.Schedule == "" {
		errs = append(errs, errors.New("sweep schedule is required"))
	}

	seen := make(map[string]bool, len(c.Clouds))
	for _, cloud := range c.Clouds {
		if cloud == "" {
			errs = append(errs, errors.New("cloud names must not be empty"))
			continue
		}
		if seen[cloud] {
			errs = append(errs, fmt.Errorf("duplicate cloud %q", cloud))
		}
		seen[cloud] = true
	}

	if c.Monitoring.PushURL != "" {
		if _, err := url.ParseRequestURI(c.Monitoring.PushURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid monitoring push_url: %w", err))
		}
	}
	if c.Monitoring.PushInterval < 0 {
		errs = append(errs, errors.New("monitoring push_interval must not be negative"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if f := c.Logging.Format; f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("logging: unknown format: %s", f))
	}

	return errors.Join(errs...)
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if c.Listener.Addr == "" {
		c.Listener.Addr = defaultListenAddr
	}
	if c.Ledger.Capacity == 0 {
		c.Ledger.Capacity = defaultCapacity
	}
	if c.Ledger.LogEntries == 0 {
		c.Ledger.LogEntries = defaultLogEntries
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = defaultSweepSchedule
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Monitoring.PushInterval == 0 {
		c.Monitoring.PushInterval = defaultPushInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// Redacted returns a copy of the config that is safe to display. Credentials
// embedded in the push URL are masked.
func (c Config) Redacted() Config {
	r := c
	r.Clouds = append([]string(nil), c.Clouds...)
	if u, err := url.Parse(c.Monitoring.PushURL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		r.Monitoring.PushURL = u.String()
	}
	return r
}

// LoggingOptions converts the logging section to logging.Config.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		Output:    c.Logging.Output,
		AddSource: c.Logging.AddSource,
	}
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}
