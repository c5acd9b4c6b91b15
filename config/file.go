package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lukemcguire/linkscout/extract"
)

// DefaultConfigFile is looked up in the current directory.
const DefaultConfigFile = ".linkscout.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file.
type File struct {
	LenientDomains  []string                `yaml:"lenient_domains,omitempty"`
	LenientStatuses []int                   `yaml:"lenient_statuses,omitempty"`
	Headers         map[string]string       `yaml:"headers,omitempty"`
	UserAgent       string                  `yaml:"user_agent,omitempty"`
	Overlay         extract.OverlayPatterns `yaml:"overlay,omitempty"`
	Timeouts        Timeouts                `yaml:"timeouts,omitempty"`
	Concurrency     int                     `yaml:"concurrency,omitempty"`
	RateLimit       int                     `yaml:"rate_limit,omitempty"`
}

// Timeouts are the file's duration settings.
type Timeouts struct {
	Probe      Duration `yaml:"probe,omitempty"`
	Page       Duration `yaml:"page,omitempty"`
	ModalOpen  Duration `yaml:"modal_open,omitempty"`
	ModalClose Duration `yaml:"modal_close,omitempty"`
}

// Duration accepts Go duration strings ("750ms") or numeric seconds.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
	case int:
		d.Duration = time.Duration(v) * time.Second
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
	default:
		return fmt.Errorf("unsupported duration type %T", raw)
	}
	return nil
}

// MarshalYAML emits the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// IsZero lets omitempty drop unset durations.
func (d Duration) IsZero() bool {
	return d.Duration == 0
}

// LoadConfigFile reads and parses a configuration file.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &f, nil
}

// FindConfigFile returns the configuration file to use, or "" if none exists.
// An explicit path wins; then ./.linkscout.yaml; then the XDG config
// directory's config.yaml.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	candidate := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// Apply overrides c with every value set in f. Overlay lists replace the
// corresponding built-in list; unset lists keep it.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	if f.LenientDomains != nil {
		c.LenientDomains = f.LenientDomains
	}
	if f.LenientStatuses != nil {
		c.LenientStatuses = f.LenientStatuses
	}
	if len(f.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			c.Headers[k] = v
		}
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.Concurrency > 0 {
		c.Concurrency = f.Concurrency
	}
	if f.RateLimit > 0 {
		c.RateLimit = f.RateLimit
	}

	if len(f.Overlay.Triggers) > 0 {
		c.Overlays.Triggers = f.Overlay.Triggers
	}
	if len(f.Overlay.Containers) > 0 {
		c.Overlays.Containers = f.Overlay.Containers
	}
	if len(f.Overlay.Close) > 0 {
		c.Overlays.Close = f.Overlay.Close
	}
	if f.Overlay.Blocking != nil {
		c.Overlays.Blocking = f.Overlay.Blocking
	}
	if len(f.Overlay.Headings) > 0 {
		c.Overlays.Headings = f.Overlay.Headings
	}

	if !f.Timeouts.Probe.IsZero() {
		c.Timeout = f.Timeouts.Probe.Duration
	}
	if !f.Timeouts.Page.IsZero() {
		c.PageTimeout = f.Timeouts.Page.Duration
	}
	if !f.Timeouts.ModalOpen.IsZero() {
		c.ModalOpenTimeout = f.Timeouts.ModalOpen.Duration
	}
	if !f.Timeouts.ModalClose.IsZero() {
		c.ModalCloseTimeout = f.Timeouts.ModalClose.Duration
	}
}
