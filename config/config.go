// Package config holds the linkscout run configuration: built-in defaults,
// an optional YAML file, and validation.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/lukemcguire/linkscout/extract"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "linkscout"

	// DefaultConcurrency is the validation batch size.
	DefaultConcurrency = 10

	// DefaultTimeout bounds each link probe.
	DefaultTimeout = 5 * time.Second

	// DefaultPageTimeout bounds the initial page-settle wait.
	DefaultPageTimeout = 60 * time.Second

	// DefaultMaxPages audits only the given targets.
	DefaultMaxPages = 1

	// DefaultModalOpenTimeout bounds the wait for an overlay to appear.
	DefaultModalOpenTimeout = 2 * time.Second

	// DefaultModalCloseTimeout bounds each close attempt.
	DefaultModalCloseTimeout = time.Second
)

// Config holds all options for one run. It is flat: defaults come from
// NewConfig, the YAML file overrides them through Apply, and CLI flags
// override both.
type Config struct {
	// Targets are the page URLs to audit.
	Targets []string

	// Concurrency is the number of links probed in parallel per batch.
	Concurrency int

	// Timeout bounds each individual link probe.
	Timeout time.Duration

	// PageTimeout bounds the initial wait for a page to settle.
	PageTimeout time.Duration

	// MaxPages is the number of pages audited per run. Above 1, same-host
	// links found on audited pages are followed.
	MaxPages int

	// RateLimit is the initial per-host probe rate in requests per second.
	// Zero is unlimited.
	RateLimit int

	// MemoryLimitMB is a soft heap limit; near it, validation concurrency
	// is halved. Zero disables the watcher.
	MemoryLimitMB int64

	// Static audits pages from their HTML without a browser.
	Static bool

	// ChromePath overrides the Chrome executable.
	ChromePath string

	// Headful shows the browser window.
	Headful bool

	// JSONReport, CSVReport and MarkdownReport pick the report format.
	// At most one may be set.
	JSONReport     bool
	CSVReport      bool
	MarkdownReport bool

	// ReportFile receives the report instead of stdout.
	ReportFile string

	// ScreenshotDir receives a full-page screenshot per audited page.
	ScreenshotDir string

	// DBDir is the directory of the run-history database. Empty disables saving.
	DBDir string

	// IgnoreRobots skips robots.txt checks for audited pages.
	IgnoreRobots bool

	// NoTUI disables the interactive progress view.
	NoTUI bool

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches log output to JSON.
	JSONLogs bool

	// ConfigFilePath is an explicit configuration file.
	ConfigFilePath string

	// UserAgent is sent with every probe and page fetch.
	UserAgent string

	// Headers are extra request headers.
	Headers map[string]string

	// LenientDomains replaces the built-in leniency allowlist when non-nil.
	LenientDomains []string

	// LenientStatuses replaces the statuses excused on lenient domains when non-nil.
	LenientStatuses []int

	// Overlays are the modal trigger, container, close and blocking patterns.
	Overlays extract.OverlayPatterns

	ModalOpenTimeout  time.Duration
	ModalCloseTimeout time.Duration
}

// NewConfig returns a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Concurrency:       DefaultConcurrency,
		Timeout:           DefaultTimeout,
		PageTimeout:       DefaultPageTimeout,
		MaxPages:          DefaultMaxPages,
		Overlays:          extract.DefaultOverlayPatterns(),
		ModalOpenTimeout:  DefaultModalOpenTimeout,
		ModalCloseTimeout: DefaultModalCloseTimeout,
	}
}

// XDGDataDir returns the default run-history directory.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the user configuration directory.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first problem found, as a sentinel error.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 || c.PageTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.MemoryLimitMB < 0 {
		return ErrInvalidMemoryLimit
	}

	formats := 0
	for _, set := range []bool{c.JSONReport, c.CSVReport, c.MarkdownReport} {
		if set {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingFormats
	}
	return nil
}
