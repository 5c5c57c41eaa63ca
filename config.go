package goSession

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/monitor"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables read by [Config.ApplyEnv].
const (
	EnvRefreshThreshold = "GOSESSION_REFRESH_THRESHOLD"
	EnvMonitorInterval  = "GOSESSION_MONITOR_INTERVAL"
	EnvMaxRetryAttempts = "GOSESSION_MAX_RETRY_ATTEMPTS"
	EnvLogLevel         = "GOSESSION_LOG_LEVEL"
)

// Config holds every tunable of a Session.
//
// Config values are copied by the Builder; mutating a Config after Build has
// no effect on the Session.
type Config struct {
	Session SessionConfig `yaml:"session"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`

	// Roles replaces the default role table when non-empty.
	Roles []permission.RoleDef `yaml:"roles,omitempty"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh timing and the retry ceiling.
type SessionConfig struct {
	// RefreshThreshold is how close to expiry a token must be before the
	// monitor refreshes it.
	RefreshThreshold time.Duration `yaml:"refresh_threshold"`
	// MonitorInterval is the period of the background check.
	MonitorInterval time.Duration `yaml:"monitor_interval"`
	// MaxRetryAttempts is the number of consecutive refresh failures that
	// forces a logout.
	MaxRetryAttempts int `yaml:"max_retry_attempts"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous security event delivery.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
LOG CONFIG
====================================
*/

// LogConfig selects the default logger's level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" (default) or "json"
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RefreshThreshold: jwt.DefaultRefreshThreshold,
			MonitorInterval:  monitor.DefaultInterval,
			MaxRetryAttempts: refresh.DefaultMaxAttempts,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.Roles) > 0 {
		out.Roles = make([]permission.RoleDef, len(cfg.Roles))
		for i, def := range cfg.Roles {
			def.Permissions = append([]string(nil), def.Permissions...)
			out.Roles[i] = def
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Session.RefreshThreshold <= 0 {
		return errors.New("Session RefreshThreshold must be > 0")
	}
	if c.Session.MonitorInterval <= 0 {
		return errors.New("Session MonitorInterval must be > 0")
	}
	if c.Session.MaxRetryAttempts <= 0 {
		return errors.New("Session MaxRetryAttempts must be > 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("Log Level: %w", err)
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.New("Log Format must be text or json")
	}
	if len(c.Roles) > 0 {
		if _, err := permission.NewRoleManagerFromDefs(c.Roles); err != nil {
			return fmt.Errorf("Roles: %w", err)
		}
	}
	return nil
}

// LintWarning is an advisory finding about a valid but risky Config.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the list of findings from [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// Lint returns advisory warnings. A Config with warnings still builds.
func (c *Config) Lint() LintResult {
	var out LintResult
	if c.Session.MonitorInterval >= c.Session.RefreshThreshold {
		out = append(out, LintWarning{
			Code:    "monitor_interval_exceeds_threshold",
			Message: "monitor may never observe the near-expiry window; tokens can expire without a proactive refresh",
		})
	}
	if c.Session.MaxRetryAttempts == 1 {
		out = append(out, LintWarning{
			Code:    "single_refresh_attempt",
			Message: "a single transient refresh failure forces logout",
		})
	}
	if !c.Audit.Enabled {
		out = append(out, LintWarning{
			Code:    "audit_disabled",
			Message: "security events are not recorded",
		})
	} else if !c.Audit.DropIfFull {
		out = append(out, LintWarning{
			Code:    "audit_blocking",
			Message: "a slow audit sink can stall login and logout",
		})
	}
	return out
}

/*
====================================
LOADING
====================================
*/

// LoadConfigFile reads a YAML config on top of DefaultConfig. Durations are
// Go duration strings such as "5m" or "90s".
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GOSESSION_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRefreshThreshold); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRefreshThreshold, err)
		}
		c.Session.RefreshThreshold = d
	}
	if v, ok := lookup(EnvMonitorInterval); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMonitorInterval, err)
		}
		c.Session.MonitorInterval = d
	}
	if v, ok := lookup(EnvMaxRetryAttempts); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRetryAttempts, err)
		}
		c.Session.MaxRetryAttempts = n
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

// NewLogger builds a logrus logger from cfg. Unknown levels fall back to info.
func NewLogger(cfg LogConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
