package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/linkscout/audit"
	"github.com/lukemcguire/linkscout/browser"
	"github.com/lukemcguire/linkscout/config"
	"github.com/lukemcguire/linkscout/crawler"
	"github.com/lukemcguire/linkscout/extract"
	"github.com/lukemcguire/linkscout/htmldoc"
	"github.com/lukemcguire/linkscout/logging"
	"github.com/lukemcguire/linkscout/page"
	"github.com/lukemcguire/linkscout/result"
	"github.com/lukemcguire/linkscout/store"
	"github.com/lukemcguire/linkscout/tui"
	"github.com/lukemcguire/linkscout/validate"
)

// NewAuditCmd creates the audit command.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [url...]",
		Short: "Audit pages for broken links",
		Long: `Audit renders each page, discovers the links a visitor can reach
(including those inside modal dialogs), and checks every one of them.

Examples:
  # Audit one page in headless Chrome
  linkscout audit https://example.com

  # Follow same-site links for up to 50 pages, Markdown report to a file
  linkscout audit --max-pages 50 --markdown -o report.md https://example.com

  # Parse the HTML without a browser, CSV to stdout
  linkscout audit --static --csv https://example.com

Configuration file (.linkscout.yaml) example:
  lenient_domains: [linkedin.com, twitter.com, x.com]
  headers:
    Accept-Language: en
  overlay:
    triggers: ['[data-toggle="modal"]', '.open-dialog']
  timeouts:
    probe: 5s
    page: 60s`,
		Args: cobra.ArbitraryArgs,
		RunE: runAuditCmd,
	}

	f := cmd.Flags()
	f.IntP("concurrency", "c", config.DefaultConcurrency, "Links checked in parallel per batch")
	f.Duration("timeout", config.DefaultTimeout, "Timeout for each link check")
	f.Duration("page-timeout", config.DefaultPageTimeout, "Timeout for a page to settle")
	f.Int("max-pages", config.DefaultMaxPages, "Pages to audit; above 1, same-site links are followed")
	f.Int("rate-limit", 0, "Initial link checks per second per host (0 = unlimited)")
	f.Int64("memory-limit", 0, "Soft heap limit in MB; validation slows down near it (0 = off)")
	f.Bool("static", false, "Parse HTML without a browser (no JavaScript, no real layout)")
	f.String("chrome-path", "", "Chrome executable (default: auto-detect)")
	f.Bool("headful", false, "Show the browser window")
	f.Bool("json", false, "Output a JSON report")
	f.Bool("csv", false, "Output a CSV report")
	f.Bool("markdown", false, "Output a Markdown report")
	f.StringP("output", "o", "", "Write the report to a file (creates directories if needed)")
	f.String("screenshot-dir", "", "Save a full-page screenshot of each audited page")
	f.String("db", "", "Run-history directory (default: XDG data directory)")
	f.Bool("no-save", false, "Do not record the run in the history database")
	f.Bool("ignore-robots", false, "Audit pages even when robots.txt disallows them")
	f.Bool("no-tui", false, "Disable the interactive progress view")
	f.Bool("log-json", false, "Write logs as JSON")
	f.String("config", "", "Configuration file (default: ./.linkscout.yaml or XDG config)")

	return cmd
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := logging.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.JSONLogs)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runAudit(ctx, cfg, cmd.OutOrStdout(), useTUI(cfg, cmd.OutOrStdout()), logger)
	if err != nil && res == nil {
		return err
	}
	if err != nil {
		logger.Warn("run incomplete, reporting partial results", slog.Any("error", err))
	}
	if res.HasBroken() {
		return errBrokenLinks
	}
	return err
}

// buildConfig layers defaults, the configuration file, and the flags the
// user actually set.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	f := cmd.Flags()

	var err error
	if cfg.ConfigFilePath, err = f.GetString("config"); err != nil {
		return nil, err
	}
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, loadErr := config.LoadConfigFile(path)
		if loadErr != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, loadErr)
		}
		cfg.Apply(file)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	ints := map[string]*int{
		"concurrency": &cfg.Concurrency,
		"max-pages":   &cfg.MaxPages,
		"rate-limit":  &cfg.RateLimit,
	}
	for name, dst := range ints {
		if f.Changed(name) {
			if *dst, err = f.GetInt(name); err != nil {
				return nil, err
			}
		}
	}
	if f.Changed("memory-limit") {
		if cfg.MemoryLimitMB, err = f.GetInt64("memory-limit"); err != nil {
			return nil, err
		}
	}
	durations := map[string]*time.Duration{
		"timeout":      &cfg.Timeout,
		"page-timeout": &cfg.PageTimeout,
	}
	for name, dst := range durations {
		if f.Changed(name) {
			if *dst, err = f.GetDuration(name); err != nil {
				return nil, err
			}
		}
	}

	bools := map[string]*bool{
		"static":        &cfg.Static,
		"headful":       &cfg.Headful,
		"json":          &cfg.JSONReport,
		"csv":           &cfg.CSVReport,
		"markdown":      &cfg.MarkdownReport,
		"ignore-robots": &cfg.IgnoreRobots,
		"no-tui":        &cfg.NoTUI,
		"log-json":      &cfg.JSONLogs,
	}
	for name, dst := range bools {
		if *dst, err = f.GetBool(name); err != nil {
			return nil, err
		}
	}
	strs := map[string]*string{
		"chrome-path":    &cfg.ChromePath,
		"output":         &cfg.ReportFile,
		"screenshot-dir": &cfg.ScreenshotDir,
		"db":             &cfg.DBDir,
	}
	for name, dst := range strs {
		if *dst, err = f.GetString(name); err != nil {
			return nil, err
		}
	}

	noSave, err := f.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	switch {
	case noSave:
		cfg.DBDir = ""
	case cfg.DBDir == "":
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args
	return cfg, nil
}

// getVerboseFlag reads --verbose from the command or the root.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// useTUI reports whether the interactive view fits: a terminal on stdout
// and no machine-readable report headed there.
func useTUI(cfg *config.Config, out io.Writer) bool {
	if cfg.NoTUI {
		return false
	}
	if hasFormat(cfg) && cfg.ReportFile == "" {
		return false
	}
	f, ok := out.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func hasFormat(cfg *config.Config) bool {
	return cfg.JSONReport || cfg.CSVReport || cfg.MarkdownReport
}

// runAudit runs the crawler, writes the report, and records the run. A
// partial result is returned alongside a cancellation error.
func runAudit(ctx context.Context, cfg *config.Config, out io.Writer, interactive bool, logger *slog.Logger) (*result.Result, error) {
	open, closeBackend, err := newOpener(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeBackend()

	crawlCfg := crawlerConfig(cfg, logger)

	var (
		res    *result.Result
		runErr error
	)
	if interactive {
		res, runErr = runInteractive(ctx, crawlCfg, open, cfg.MaxPages)
	} else {
		c, newErr := crawler.New(crawlCfg, open, nil)
		if newErr != nil {
			return nil, fmt.Errorf("create crawler: %w", newErr)
		}
		res, runErr = c.Run(ctx)
	}
	if res == nil {
		return nil, runErr
	}

	// The interactive view already printed its summary.
	if !interactive || cfg.ReportFile != "" {
		if err := writeReport(cfg, res, out); err != nil {
			return res, err
		}
	}

	if cfg.DBDir != "" {
		saveRun(ctx, cfg, res, logger)
	}
	return res, runErr
}

func runInteractive(ctx context.Context, crawlCfg crawler.Config, open crawler.Opener, maxPages int) (*result.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan crawler.Event, 100)
	c, err := crawler.New(crawlCfg, open, events)
	if err != nil {
		return nil, fmt.Errorf("create crawler: %w", err)
	}

	// Signals cancel ctx, which ends the run; the view then quits with the
	// partial result.
	program := tea.NewProgram(tui.NewModel(ctx, cancel, c, events, maxPages), tea.WithoutSignalHandler())
	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("run progress view: %w", err)
	}
	model, ok := final.(tui.Model)
	if !ok {
		return nil, errors.New("unexpected progress view model")
	}
	if model.GetResult() == nil {
		// Quit before the run returned; unblock its event sends.
		cancel()
		go func() {
			for range events {
			}
		}()
		if model.Err() != nil {
			return nil, model.Err()
		}
		return nil, context.Canceled
	}
	return model.GetResult(), model.Err()
}

// crawlerConfig maps the flat run configuration onto the crawler's.
func crawlerConfig(cfg *config.Config, logger *slog.Logger) crawler.Config {
	ex := extract.DefaultOptions()
	ex.Stability.Overall = cfg.PageTimeout
	ex.Overlays = cfg.Overlays
	ex.OpenTimeout = cfg.ModalOpenTimeout
	ex.CloseTimeout = cfg.ModalCloseTimeout

	return crawler.Config{
		Targets:       cfg.Targets,
		MaxPages:      cfg.MaxPages,
		IgnoreRobots:  cfg.IgnoreRobots,
		RobotsClient:  &http.Client{Timeout: cfg.Timeout},
		MemoryLimitMB: cfg.MemoryLimitMB,
		Validation: validate.Options{
			Concurrency:     cfg.Concurrency,
			Timeout:         cfg.Timeout,
			Retry:           validate.DefaultRetryPolicy(),
			LenientDomains:  cfg.LenientDomains,
			LenientStatuses: cfg.LenientStatuses,
			UserAgent:       cfg.UserAgent,
			Headers:         cfg.Headers,
			RateLimit:       cfg.RateLimit,
		},
		Audit: audit.Options{
			Extract:       ex,
			ScreenshotDir: cfg.ScreenshotDir,
		},
		Logger: logger,
	}
}

// newOpener picks the page backend: static HTML or one Chrome instance
// with a tab per page.
func newOpener(ctx context.Context, cfg *config.Config, logger *slog.Logger) (crawler.Opener, func(), error) {
	if cfg.Static {
		client := &http.Client{Timeout: cfg.PageTimeout}
		ua := cfg.UserAgent
		if ua == "" {
			ua = validate.DefaultUserAgent
		}
		open := func(context.Context) (page.Document, func(), error) {
			doc := htmldoc.New(
				htmldoc.WithClient(client),
				htmldoc.WithUserAgent(ua),
				htmldoc.WithHeaders(cfg.Headers))
			return doc, func() {}, nil
		}
		return open, func() {}, nil
	}

	b, err := browser.New(ctx, browser.Options{
		ChromePath: cfg.ChromePath,
		Headful:    cfg.Headful,
		UserAgent:  cfg.UserAgent,
		Headers:    cfg.Headers,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start browser (use --static to audit without Chrome): %w", err)
	}
	open := func(context.Context) (page.Document, func(), error) {
		tab, err := b.NewTab()
		if err != nil {
			return nil, nil, err
		}
		return tab, func() {
			if err := tab.Close(); err != nil {
				logger.Warn("close tab", slog.Any("error", err))
			}
		}, nil
	}
	closeBrowser := func() {
		if err := b.Close(); err != nil {
			logger.Warn("close browser", slog.Any("error", err))
		}
	}
	return open, closeBrowser, nil
}

// writeReport writes res in the configured format to the report file or out.
func writeReport(cfg *config.Config, res *result.Result, out io.Writer) error {
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch {
	case cfg.JSONReport:
		return result.WriteJSON(out, res.Pages)
	case cfg.CSVReport:
		return result.WriteCSV(out, res.Pages)
	case cfg.MarkdownReport:
		return result.WriteMarkdown(out, res)
	default:
		result.PrintResults(out, res)
		return nil
	}
}

// saveRun records the run in the history database. Failures are logged;
// the report has already been delivered.
func saveRun(ctx context.Context, cfg *config.Config, res *result.Result, logger *slog.Logger) {
	db, err := store.Open(cfg.DBDir, store.DefaultOptions())
	if err != nil {
		logger.Warn("open history database", slog.Any("error", err))
		return
	}
	defer db.Close()

	// Record even an interrupted run.
	runID, err := db.SaveRun(context.WithoutCancel(ctx), cfg.Targets, res)
	if err != nil {
		logger.Warn("save run", slog.Any("error", err))
		return
	}
	logger.Debug("run saved", slog.String("run_id", runID), slog.String("db", db.Path()))
}
