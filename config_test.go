package goSession

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Session.RefreshThreshold != 5*time.Minute {
		t.Fatalf("unexpected threshold %v", cfg.Session.RefreshThreshold)
	}
	if cfg.Session.MonitorInterval != 60*time.Second {
		t.Fatalf("unexpected interval %v", cfg.Session.MonitorInterval)
	}
	if cfg.Session.MaxRetryAttempts != 3 {
		t.Fatalf("unexpected retry ceiling %d", cfg.Session.MaxRetryAttempts)
	}
	if codes := cfg.Lint().Codes(); len(codes) != 0 {
		t.Fatalf("default config should lint clean, got %v", codes)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.Session.RefreshThreshold = 0 }},
		{"zero interval", func(c *Config) { c.Session.MonitorInterval = 0 }},
		{"zero retries", func(c *Config) { c.Session.MaxRetryAttempts = 0 }},
		{"audit without buffer", func(c *Config) { c.Audit.BufferSize = 0 }},
		{"latency without metrics", func(c *Config) { c.Metrics.Enabled = false }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigLint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.MonitorInterval = 10 * time.Minute
	cfg.Session.MaxRetryAttempts = 1
	cfg.Audit.DropIfFull = false

	codes := strings.Join(cfg.Lint().Codes(), ",")
	for _, want := range []string{"monitor_interval_exceeds_threshold", "single_refresh_attempt", "audit_blocking"} {
		if !strings.Contains(codes, want) {
			t.Fatalf("expected lint %s in %s", want, codes)
		}
	}

	cfg.Audit.Enabled = false
	if codes := strings.Join(cfg.Lint().Codes(), ","); !strings.Contains(codes, "audit_disabled") {
		t.Fatalf("expected audit_disabled, got %s", codes)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	data := `
session:
  refresh_threshold: 2m
  monitor_interval: 15s
  max_retry_attempts: 5
log:
  level: debug
  format: json
roles:
  - name: member
    rank: 1
    permissions: [feed.read]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Session.RefreshThreshold != 2*time.Minute || cfg.Session.MonitorInterval != 15*time.Second {
		t.Fatalf("durations not decoded: %+v", cfg.Session)
	}
	if cfg.Session.MaxRetryAttempts != 5 {
		t.Fatalf("unexpected retries %d", cfg.Session.MaxRetryAttempts)
	}
	if !cfg.Audit.Enabled || cfg.Audit.BufferSize != 256 {
		t.Fatal("unspecified sections should keep defaults")
	}
	if len(cfg.Roles) != 1 || cfg.Roles[0].Name != "member" {
		t.Fatalf("roles not decoded: %+v", cfg.Roles)
	}
}

func TestLoadConfigFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("session:\n  max_retry_attempts: 0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfigFile(bad); err == nil {
		t.Fatal("expected validation error")
	}

	garbage := filepath.Join(dir, "garbage.yaml")
	if err := os.WriteFile(garbage, []byte("session: [\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfigFile(garbage); err == nil {
		t.Fatal("expected parse error")
	}

	if _, err := LoadConfigFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvRefreshThreshold, "90s")
	t.Setenv(EnvMonitorInterval, "20s")
	t.Setenv(EnvMaxRetryAttempts, "7")
	t.Setenv(EnvLogLevel, "WARN")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Session.RefreshThreshold != 90*time.Second ||
		cfg.Session.MonitorInterval != 20*time.Second ||
		cfg.Session.MaxRetryAttempts != 7 ||
		cfg.Log.Level != "warn" {
		t.Fatalf("env not applied: %+v %+v", cfg.Session, cfg.Log)
	}
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	env := map[string]string{EnvMaxRetryAttempts: "many"}
	cfg := DefaultConfig()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err == nil || !strings.Contains(err.Error(), EnvMaxRetryAttempts) {
		t.Fatalf("expected error naming %s, got %v", EnvMaxRetryAttempts, err)
	}
}

func TestNewLogger(t *testing.T) {
	l := NewLogger(LogConfig{Level: "debug", Format: "json"})
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("unexpected level %v", l.GetLevel())
	}
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", l.Formatter)
	}

	fallback := NewLogger(LogConfig{Level: "nonsense"})
	if fallback.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %v", fallback.GetLevel())
	}
}

func TestWithConfigIsCopied(t *testing.T) {
	cfg := DefaultConfig()
	b := New().WithConfig(cfg)
	cfg.Session.MaxRetryAttempts = 99
	if b.config.Session.MaxRetryAttempts == 99 {
		t.Fatal("builder must hold its own copy")
	}
}
