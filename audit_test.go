package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lukemcguire/linkscout/config"
	"github.com/lukemcguire/linkscout/result"
)

func parseAuditCmd(t *testing.T, args ...string) *config.Config {
	t.Helper()
	cmd := NewAuditCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v) error = %v", args, err)
	}
	cfg, err := buildConfig(cmd, cmd.Flags().Args())
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}
	return cfg
}

func TestNewAuditCmd(t *testing.T) {
	t.Parallel()

	cmd := NewAuditCmd()
	if cmd.Use != "audit [url...]" {
		t.Errorf("expected use 'audit [url...]', got %q", cmd.Use)
	}

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"concurrency", "c", "10"},
		{"timeout", "", "5s"},
		{"page-timeout", "", "1m0s"},
		{"max-pages", "", "1"},
		{"rate-limit", "", "0"},
		{"memory-limit", "", "0"},
		{"static", "", "false"},
		{"json", "", "false"},
		{"csv", "", "false"},
		{"markdown", "", "false"},
		{"output", "o", ""},
		{"no-save", "", "false"},
		{"ignore-robots", "", "false"},
		{"no-tui", "", "false"},
	}
	for _, tt := range flags {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected --%s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("shorthand = %q, want %q", flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("default = %q, want %q", flag.DefValue, tt.defValue)
			}
		})
	}
}

func TestBuildConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := parseAuditCmd(t, "https://example.com")

	if cfg.Concurrency != config.DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, config.DefaultConcurrency)
	}
	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, config.DefaultTimeout)
	}
	if cfg.DBDir != config.XDGDataDir() {
		t.Errorf("DBDir = %q, want %q", cfg.DBDir, config.XDGDataDir())
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0] != "https://example.com" {
		t.Errorf("Targets = %v", cfg.Targets)
	}
}

func TestBuildConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := `concurrency: 3
lenient_domains: [example.org]
timeouts:
  probe: 9s
  page: 20s
`
	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := parseAuditCmd(t, "-c", "7", "--page-timeout", "3s", "--memory-limit", "512", "https://example.com")

	if cfg.Concurrency != 7 {
		t.Errorf("Concurrency = %d, want flag value 7", cfg.Concurrency)
	}
	if cfg.Timeout != 9*time.Second {
		t.Errorf("Timeout = %v, want file value 9s", cfg.Timeout)
	}
	if cfg.PageTimeout != 3*time.Second {
		t.Errorf("PageTimeout = %v, want flag value 3s", cfg.PageTimeout)
	}
	if cfg.MemoryLimitMB != 512 {
		t.Errorf("MemoryLimitMB = %d, want 512", cfg.MemoryLimitMB)
	}
	if len(cfg.LenientDomains) != 1 || cfg.LenientDomains[0] != "example.org" {
		t.Errorf("LenientDomains = %v, want [example.org]", cfg.LenientDomains)
	}
}

func TestBuildConfig_NoSave(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := parseAuditCmd(t, "--no-save", "--db", "/tmp/ignored", "https://example.com")
	if cfg.DBDir != "" {
		t.Errorf("DBDir = %q, want empty with --no-save", cfg.DBDir)
	}
}

func TestBuildConfig_MissingConfigFile(t *testing.T) {
	t.Parallel()

	cmd := NewAuditCmd()
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
		t.Fatal(err)
	}
	_, err := buildConfig(cmd, []string{"https://example.com"})
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("buildConfig() error = %v, want ErrConfigNotFound", err)
	}
}

func TestUseTUI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"disabled", config.Config{NoTUI: true}},
		{"json to stdout", config.Config{JSONReport: true}},
		{"not a terminal", config.Config{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if useTUI(&tt.cfg, &bytes.Buffer{}) {
				t.Error("useTUI() = true, want false")
			}
		})
	}
}

func reportFixture() *result.Result {
	res := &result.Result{
		Pages: []result.PageReport{{
			URL: "https://example.com/",
			Links: []result.LinkReport{
				{
					Candidate: result.LinkCandidate{NormalizedURL: "https://example.com/gone", LocationLabel: "Main Content"},
					Outcome: result.ValidationOutcome{
						URL: "https://example.com/gone", Status: 404, IsBroken: true,
						ErrorCategory: result.Category4xx, Attempts: 1,
					},
				},
				{
					Candidate: result.LinkCandidate{NormalizedURL: "https://example.com/ok", LocationLabel: "Footer"},
					Outcome:   result.ValidationOutcome{URL: "https://example.com/ok", Status: 200, Attempts: 1},
				},
			},
		}},
	}
	res.Tally()
	return res
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	t.Run("json to file creates directories", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "reports", "nested", "out.json")
		cfg := &config.Config{JSONReport: true, ReportFile: path}

		if err := writeReport(cfg, reportFixture(), &bytes.Buffer{}); err != nil {
			t.Fatalf("writeReport() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var pages []result.PageReport
		if err := json.Unmarshal(data, &pages); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(pages) != 1 || len(pages[0].Links) != 2 {
			t.Errorf("decoded %+v", pages)
		}
	})

	t.Run("csv to stdout", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		if err := writeReport(&config.Config{CSVReport: true}, reportFixture(), &out); err != nil {
			t.Fatalf("writeReport() error = %v", err)
		}
		records, err := csv.NewReader(&out).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("got %d records, want header plus 2 rows", len(records))
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		if err := writeReport(&config.Config{MarkdownReport: true}, reportFixture(), &out); err != nil {
			t.Fatalf("writeReport() error = %v", err)
		}
		if !strings.Contains(out.String(), "# Link Audit Report") {
			t.Errorf("markdown missing title:\n%s", out.String())
		}
	})

	t.Run("plain text", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		if err := writeReport(&config.Config{}, reportFixture(), &out); err != nil {
			t.Fatalf("writeReport() error = %v", err)
		}
		if !strings.Contains(out.String(), "https://example.com/gone") {
			t.Errorf("plain report missing broken link:\n%s", out.String())
		}
	})
}

func TestAuditCmd_Static(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for pages to settle")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><main>
			<a href="/ok">Fine</a>
			<a href="/missing">Gone</a>
		</main></body></html>`)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "linkscout.yaml")
	if err := os.WriteFile(cfgPath, []byte("timeouts:\n  probe: 2s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"audit", "--static", "--no-save", "--no-tui", "--json",
		"--config", cfgPath, srv.URL})

	err := cmd.Execute()
	if !errors.Is(err, errBrokenLinks) {
		t.Fatalf("Execute() error = %v, want errBrokenLinks (stderr: %s)", err, errOut.String())
	}

	var pages []result.PageReport
	if err := json.Unmarshal(out.Bytes(), &pages); err != nil {
		t.Fatalf("invalid JSON report: %v\n%s", err, out.String())
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	broken := pages[0].Broken()
	if len(broken) != 1 || !strings.HasSuffix(broken[0].Candidate.NormalizedURL, "/missing") {
		t.Errorf("broken links = %+v, want only /missing", broken)
	}
}
