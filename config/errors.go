package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no page URL was given.
	ErrNoTarget = errors.New("no target specified: provide at least one page URL")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxPages is returned when the page limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMemoryLimit is returned when the memory limit is negative.
	ErrInvalidMemoryLimit = errors.New("invalid memory limit: must be non-negative")

	// ErrConflictingFormats is returned when more than one of --json, --csv
	// and --markdown is set.
	ErrConflictingFormats = errors.New("conflicting report formats: choose one of --json, --csv, --markdown")
)
