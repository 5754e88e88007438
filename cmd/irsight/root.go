package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "irsight",
	Short: "Investor-relations website audit engine",
	Long: `irsight audits corporate investor-relations websites against a fixed
criteria catalog.

Each (site, criterion) pair is evaluated exactly once per run: structural and
visual criteria are measured deterministically from the rendered page, while
judgment criteria are delegated to a reasoning service. Criteria that cannot
be measured from page content are recorded as NOT_SUPPORTED rather than
silently failed.

Progress is checkpointed continuously, so an interrupted run resumes where it
left off without redoing finished work.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
