package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/irsight/internal/checkpoint"
	"github.com/ShayCichocki/irsight/internal/config"
	"github.com/ShayCichocki/irsight/pkg/models"
)

var statusOutputDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress",
	Long: `Display the state of the checkpoint database.

Shows:
  - How many (site, criterion) pairs are recorded
  - Per-verdict counts
  - When the checkpoint was last flushed`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusOutputDir, "output", "", "output directory (default from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Dir = statusOutputDir
	}

	path := cfg.CheckpointPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No checkpoint found. Run 'irsight run' to start an audit.")
		return nil
	}

	store, err := checkpoint.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer store.Close()

	counts, err := store.VerdictCounts()
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}

	fmt.Printf("Checkpoint: %s\n", path)
	if runID, _ := store.Meta("run_id"); runID != "" {
		fmt.Printf("Last run:   %s\n", runID)
	}
	if savedAt, err := store.SavedAt(); err == nil && !savedAt.IsZero() {
		fmt.Printf("Saved at:   %s\n", savedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Recorded:   %d pair(s)\n\n", total)

	printVerdictLine("PASS", counts[models.VerdictPass], color.FgGreen)
	printVerdictLine("FAIL", counts[models.VerdictFail], color.FgRed)
	printVerdictLine("ERROR", counts[models.VerdictError], color.FgYellow)
	printVerdictLine("NOT_SUPPORTED", counts[models.VerdictNotSupported], color.FgHiBlack)

	return nil
}

func printVerdictLine(label string, n int, attr color.Attribute) {
	c := color.New(attr)
	fmt.Printf("  %s %d\n", c.Sprintf("%-14s", label), n)
}
