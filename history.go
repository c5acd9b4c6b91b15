package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/linkscout/config"
	"github.com/lukemcguire/linkscout/result"
	"github.com/lukemcguire/linkscout/store"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or inspect recorded audit runs",
		Long: `History lists the audit runs recorded in the run-history database,
newest first. Use --show to reprint one run's report, or --delete to
remove it.`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	f := cmd.Flags()
	f.String("db", "", "Run-history directory (default: XDG data directory)")
	f.Int("limit", 20, "Number of runs to list")
	f.String("show", "", "Print the report of the run with this ID")
	f.String("delete", "", "Delete the run with this ID")
	f.Bool("json", false, "Output JSON")
	cmd.MarkFlagsMutuallyExclusive("show", "delete")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	dir, _ := f.GetString("db")
	limit, _ := f.GetInt("limit")
	showID, _ := f.GetString("show")
	deleteID, _ := f.GetString("delete")
	asJSON, _ := f.GetBool("json")

	if dir == "" {
		dir = config.XDGDataDir()
	}
	db, err := store.Open(dir, store.Options{EnableWAL: true})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case deleteID != "":
		if err := db.DeleteRun(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", deleteID)
		return nil
	case showID != "":
		res, err := db.LoadRun(ctx, showID)
		if err != nil {
			return err
		}
		if asJSON {
			return result.WriteJSON(out, res.Pages)
		}
		result.PrintResults(out, res)
		return nil
	}

	runs, err := db.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	printRuns(out, runs)
	return nil
}

// printRuns renders the run list as a table.
func printRuns(w io.Writer, runs []store.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	t := table.New().Headers("ID", "Started", "Duration", "Pages", "Links", "Broken", "Targets")
	for _, run := range runs {
		pages := strconv.Itoa(run.Pages)
		if run.PagesFailed > 0 {
			pages = fmt.Sprintf("%d (%d failed)", run.Pages, run.PagesFailed)
		}
		t.Row(
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Duration.Round(time.Millisecond).String(),
			pages,
			strconv.Itoa(run.Links),
			strconv.Itoa(run.Broken),
			strings.Join(run.Targets, " "),
		)
	}
	fmt.Fprintln(w, t.Render())
}
