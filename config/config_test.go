package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := NewConfig()
	cfg.Targets = []string{"https://example.com"}
	return cfg
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, DefaultConcurrency)
	}
	if cfg.Timeout != DefaultTimeout || cfg.PageTimeout != DefaultPageTimeout {
		t.Errorf("timeouts = %v/%v", cfg.Timeout, cfg.PageTimeout)
	}
	if cfg.MaxPages != 1 {
		t.Errorf("MaxPages = %d, want 1", cfg.MaxPages)
	}
	if len(cfg.Overlays.Triggers) == 0 || len(cfg.Overlays.Close) == 0 {
		t.Error("expected built-in overlay patterns")
	}
	if cfg.LenientDomains != nil {
		t.Error("LenientDomains should be nil so the built-in list applies")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"no target", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative page timeout", func(c *Config) { c.PageTimeout = -time.Second }, ErrInvalidTimeout},
		{"zero max pages", func(c *Config) { c.MaxPages = 0 }, ErrInvalidMaxPages},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }, ErrInvalidRateLimit},
		{"json and csv", func(c *Config) { c.JSONReport, c.CSVReport = true, true }, ErrConflictingFormats},
		{"csv and markdown", func(c *Config) { c.CSVReport, c.MarkdownReport = true, true }, ErrConflictingFormats},
		{"markdown only", func(c *Config) { c.MarkdownReport = true }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

const sampleFile = `
lenient_domains:
  - intra.example
lenient_statuses: [401, 403]
headers:
  X-Audit: "1"
user_agent: AuditBot/1.0
concurrency: 4
rate_limit: 20
overlay:
  triggers:
    - ".open-dialog"
  blocking: []
timeouts:
  probe: 750ms
  page: 30
  modal_open: 1.5
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", sampleFile)

	f, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	if len(f.LenientDomains) != 1 || f.LenientDomains[0] != "intra.example" {
		t.Errorf("LenientDomains = %v", f.LenientDomains)
	}
	if f.Timeouts.Probe.Duration != 750*time.Millisecond {
		t.Errorf("probe timeout = %v, want 750ms", f.Timeouts.Probe.Duration)
	}
	if f.Timeouts.Page.Duration != 30*time.Second {
		t.Errorf("page timeout = %v, want 30s", f.Timeouts.Page.Duration)
	}
	if f.Timeouts.ModalOpen.Duration != 1500*time.Millisecond {
		t.Errorf("modal open timeout = %v, want 1.5s", f.Timeouts.ModalOpen.Duration)
	}
	if f.Overlay.Blocking == nil || len(f.Overlay.Blocking) != 0 {
		t.Errorf("explicit empty blocking list should load as empty, got %#v", f.Overlay.Blocking)
	}
}

func TestLoadConfigFile_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadConfigFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("missing file error = %v, want ErrConfigNotFound", err)
	}

	bad := writeFile(t, dir, "bad.yaml", "timeouts:\n  probe: soon\n")
	if _, err := LoadConfigFile(bad); err == nil {
		t.Error("expected an error for an invalid duration")
	}
}

func TestApply(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", sampleFile)
	f, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}

	cfg := NewConfig()
	defaultClose := cfg.Overlays.Close
	cfg.Apply(f)

	if cfg.Concurrency != 4 || cfg.RateLimit != 20 {
		t.Errorf("Concurrency/RateLimit = %d/%d", cfg.Concurrency, cfg.RateLimit)
	}
	if cfg.UserAgent != "AuditBot/1.0" || cfg.Headers["X-Audit"] != "1" {
		t.Errorf("UserAgent = %q, Headers = %v", cfg.UserAgent, cfg.Headers)
	}
	if len(cfg.LenientStatuses) != 2 {
		t.Errorf("LenientStatuses = %v", cfg.LenientStatuses)
	}
	if len(cfg.Overlays.Triggers) != 1 || cfg.Overlays.Triggers[0] != ".open-dialog" {
		t.Errorf("Triggers = %v", cfg.Overlays.Triggers)
	}
	if len(cfg.Overlays.Close) != len(defaultClose) {
		t.Error("unset overlay lists should keep the built-in patterns")
	}
	if len(cfg.Overlays.Blocking) != 0 {
		t.Errorf("Blocking = %v, want disabled", cfg.Overlays.Blocking)
	}
	if cfg.Timeout != 750*time.Millisecond || cfg.PageTimeout != 30*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.Timeout, cfg.PageTimeout)
	}
	if cfg.ModalCloseTimeout != DefaultModalCloseTimeout {
		t.Errorf("ModalCloseTimeout = %v, want default", cfg.ModalCloseTimeout)
	}

	cfg.Apply(nil)
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	explicit := writeFile(t, dir, "custom.yaml", "concurrency: 2\n")

	if got := FindConfigFile(explicit); got != explicit {
		t.Errorf("FindConfigFile(explicit) = %q", got)
	}
	if got := FindConfigFile(filepath.Join(dir, "nope.yaml")); got != "" {
		t.Errorf("FindConfigFile(missing) = %q, want empty", got)
	}

	t.Chdir(dir)
	writeFile(t, dir, DefaultConfigFile, "concurrency: 3\n")
	if got := FindConfigFile(""); filepath.Base(got) != DefaultConfigFile {
		t.Errorf("FindConfigFile(\"\") = %q, want the local %s", got, DefaultConfigFile)
	}
}
