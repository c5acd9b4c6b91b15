package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errBrokenLinks makes the process exit non-zero after a run that found
// broken links. The report has already been printed.
var errBrokenLinks = errors.New("broken links found")

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkscout",
		Short: "Find the broken links visitors can actually reach",
		Long: `linkscout audits web pages for broken links as a visitor would meet them.

Pages are rendered in headless Chrome (or parsed statically with --static),
given time to settle and lazy-load, and scrolled. Links hidden from the
user are skipped, links inside modal dialogs are discovered by opening
each dialog, and every reachable link is checked with tiered retries.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewAuditCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits non-zero on failure or when
// broken links were found.
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, errBrokenLinks) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(1)
}
