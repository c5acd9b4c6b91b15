// Package store keeps a history of audit runs in a local SQLite database.
//
// Each run is stored three ways: a summary row for listing, one row per
// audited page and per checked link for querying, and the full result as
// JSON so a past run can be re-rendered by any report writer.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lukemcguire/linkscout/result"
)

// FileName is the database file created inside the store directory.
const FileName = "linkscout.db"

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite-backed run history.
type Store struct {
	db   *sql.DB
	path string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database when missing.
	CreateIfNotExists bool
	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{CreateIfNotExists: true, EnableWAL: true}
}

// Open opens or creates the history database in dir.
func Open(dir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		}
		return nil, fmt.Errorf("check store path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, path: dbPath}
	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL,
	targets TEXT NOT NULL,
	pages INTEGER NOT NULL,
	pages_failed INTEGER NOT NULL,
	links INTEGER NOT NULL,
	broken INTEGER NOT NULL,
	warnings INTEGER NOT NULL,
	report_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	error TEXT,
	duration_ms INTEGER NOT NULL,
	scanned_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);

CREATE TABLE IF NOT EXISTS links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	display_text TEXT,
	selector TEXT,
	location TEXT,
	modal_trigger TEXT,
	status INTEGER,
	is_broken INTEGER NOT NULL,
	error TEXT,
	error_category TEXT,
	retry_note TEXT,
	warning TEXT,
	attempts INTEGER
);

CREATE INDEX IF NOT EXISTS idx_links_page ON links(page_id);
CREATE INDEX IF NOT EXISTS idx_links_url ON links(url);
`

// RunSummary is one row of the run history.
type RunSummary struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Targets     []string
	Pages       int
	PagesFailed int
	Links       int
	Broken      int
	Warnings    int
}

// SaveRun stores res with the given targets and returns the new run ID.
func (s *Store) SaveRun(ctx context.Context, targets []string, res *result.Result) (string, error) {
	if res == nil {
		return "", errors.New("save run: nil result")
	}
	reportJSON, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("serialize result: %w", err)
	}
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return "", fmt.Errorf("serialize targets: %w", err)
	}

	runID := uuid.NewString()
	started := time.Now().UTC().Add(-res.Stats.Duration)
	if len(res.Pages) > 0 && !res.Pages[0].ScannedAt.IsZero() {
		started = res.Pages[0].ScannedAt.UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, targets, pages, pages_failed, links, broken, warnings, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, started, res.Stats.Duration.Milliseconds(), string(targetsJSON),
		res.Stats.PagesAudited, res.Stats.PagesFailed, res.Stats.TotalChecked,
		res.Stats.BrokenCount, res.Stats.WarningCount, string(reportJSON))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	linkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO links (page_id, url, display_text, selector, location, modal_trigger,
			status, is_broken, error, error_category, retry_note, warning, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare link insert: %w", err)
	}
	defer func() { _ = linkStmt.Close() }()

	for _, p := range res.Pages {
		pageRes, err := tx.ExecContext(ctx, `
			INSERT INTO pages (run_id, url, error, duration_ms, scanned_at) VALUES (?, ?, ?, ?, ?)`,
			runID, p.URL, p.Error, p.Duration.Milliseconds(), p.ScannedAt.UTC())
		if err != nil {
			return "", fmt.Errorf("insert page %s: %w", p.URL, err)
		}
		pageID, err := pageRes.LastInsertId()
		if err != nil {
			return "", fmt.Errorf("page id: %w", err)
		}
		for _, l := range p.Links {
			c, o := l.Candidate, l.Outcome
			if _, err := linkStmt.ExecContext(ctx, pageID, c.NormalizedURL, c.DisplayText, c.Selector,
				c.LocationLabel, c.ModalTriggerText, o.Status, o.IsBroken, o.Error,
				string(o.ErrorCategory), o.RetryNote, o.Warning, o.Attempts); err != nil {
				return "", fmt.Errorf("insert link %s: %w", c.NormalizedURL, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// RecentRuns lists up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, targets, pages, pages_failed, links, broken, warnings
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var (
			run         RunSummary
			durationMS  int64
			targetsJSON string
		)
		if err := rows.Scan(&run.ID, &run.StartedAt, &durationMS, &targetsJSON,
			&run.Pages, &run.PagesFailed, &run.Links, &run.Broken, &run.Warnings); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(targetsJSON), &run.Targets); err != nil {
			return nil, fmt.Errorf("decode targets of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LoadRun returns the full result stored for runID.
func (s *Store) LoadRun(ctx context.Context, runID string) (*result.Result, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", runID, err)
	}
	var res result.Result
	if err := json.Unmarshal([]byte(reportJSON), &res); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &res, nil
}

// BrokenSince counts, per broken link URL found on pageURL, the runs
// started at or after since that reported it.
func (s *Store) BrokenSince(ctx context.Context, pageURL string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.url, COUNT(DISTINCT p.run_id)
		FROM links l
		JOIN pages p ON p.id = l.page_id
		JOIN runs r ON r.id = p.run_id
		WHERE p.url = ? AND l.is_broken = 1 AND r.started_at >= ?
		GROUP BY l.url`, pageURL, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query broken links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			u string
			n int
		)
		if err := rows.Scan(&u, &n); err != nil {
			return nil, fmt.Errorf("scan broken link: %w", err)
		}
		counts[u] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate broken links: %w", err)
	}
	return counts, nil
}

// DeleteRun removes a run with its pages and links.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
