// Package audit runs the link engine against one page: navigate, extract
// the user-reachable links, validate them, and assemble the page report.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lukemcguire/linkscout/extract"
	"github.com/lukemcguire/linkscout/page"
	"github.com/lukemcguire/linkscout/result"
)

// Validator checks candidates and returns one outcome per candidate, in order.
type Validator interface {
	Validate(ctx context.Context, candidates []result.LinkCandidate) []result.ValidationOutcome
}

// Options configures an Auditor.
type Options struct {
	Extract extract.Options
	// ScreenshotDir receives a full-page PNG per audited page. Empty disables.
	ScreenshotDir string
	Logger        *slog.Logger
}

// Auditor audits pages one at a time. It is safe for concurrent use only
// with distinct documents.
type Auditor struct {
	extractor     *extract.Extractor
	validator     Validator
	screenshotDir string
	logger        *slog.Logger
}

// New creates an Auditor.
func New(validator Validator, opts Options) *Auditor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Extract.Logger = logger
	return &Auditor{
		extractor:     extract.New(opts.Extract),
		validator:     validator,
		screenshotDir: opts.ScreenshotDir,
		logger:        logger,
	}
}

// Audit audits pageURL in doc. It always returns a report: a page that
// cannot be loaded or never parses has Error set and no links.
func (a *Auditor) Audit(ctx context.Context, doc page.Document, pageURL string) result.PageReport {
	start := time.Now()
	report := result.PageReport{URL: pageURL, ScannedAt: start}
	logger := a.logger.With(slog.String("url", pageURL))

	fail := func(err error) result.PageReport {
		logger.Error("page audit failed", slog.Any("error", err))
		report.Error = err.Error()
		report.Duration = time.Since(start)
		return report
	}

	if err := doc.Navigate(ctx, pageURL); err != nil {
		return fail(fmt.Errorf("navigate: %w", err))
	}

	base := pageURL
	if current, err := doc.URL(ctx); err == nil && current != "" {
		base = current
	}

	extraction, err := a.extractor.Extract(ctx, doc, base)
	if err != nil {
		return fail(err)
	}
	report.Degradations = extraction.Degradations

	if a.screenshotDir != "" {
		path, err := a.screenshot(ctx, doc, pageURL)
		switch {
		case err != nil:
			logger.Warn("screenshot failed, proceeding", slog.Any("error", err))
			report.Degradations = append(report.Degradations, fmt.Sprintf("screenshot: %v", err))
		default:
			report.Screenshot = path
		}
	}

	outcomes := a.validator.Validate(ctx, extraction.Candidates)
	report.Links = make([]result.LinkReport, len(extraction.Candidates))
	for i, c := range extraction.Candidates {
		report.Links[i] = result.LinkReport{Candidate: c, Outcome: outcomes[i]}
	}

	report.Duration = time.Since(start)
	logger.Debug("page audited",
		slog.Int("links", len(report.Links)),
		slog.Int("broken", len(report.Broken())),
		slog.Duration("duration", report.Duration))
	return report
}

func (a *Auditor) screenshot(ctx context.Context, doc page.Document, pageURL string) (string, error) {
	png, err := doc.Screenshot(ctx)
	if err != nil {
		if errors.Is(err, page.ErrUnsupported) {
			return "", fmt.Errorf("not available for this page backend: %w", err)
		}
		return "", err
	}
	if err := os.MkdirAll(a.screenshotDir, 0o750); err != nil {
		return "", fmt.Errorf("create screenshot directory: %w", err)
	}
	path := filepath.Join(a.screenshotDir, ScreenshotName(pageURL))
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9.-]+`)

// ScreenshotName derives a file name from a page URL.
func ScreenshotName(pageURL string) string {
	name := pageURL
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_.")
	if name == "" {
		name = "page"
	}
	if len(name) > 120 {
		name = name[:120]
	}
	return name + ".png"
}
