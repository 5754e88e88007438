package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/irsight/internal/catalog"
	"github.com/ShayCichocki/irsight/internal/checkpoint"
	"github.com/ShayCichocki/irsight/internal/config"
	"github.com/ShayCichocki/irsight/internal/evaluator"
	"github.com/ShayCichocki/irsight/internal/llm"
	"github.com/ShayCichocki/irsight/internal/orchestrator"
	"github.com/ShayCichocki/irsight/internal/page"
	"github.com/ShayCichocki/irsight/internal/retry"
	"github.com/ShayCichocki/irsight/pkg/models"
)

var (
	runSitesPath    string
	runCriteriaPath string
	runOutputDir    string
	runParallel     int
	runInterval     int
	runModel        string
	runBedrock      bool
	runHeadful      bool
	runDebug        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit all sites against the criteria catalog",
	Long: `Run the full audit: every criterion evaluated against every site.

Already-completed pairs from a previous interrupted run are skipped, so
re-running the same command resumes rather than restarts.

Create the stop file (output/STOP by default) to halt gracefully between
criteria; press Ctrl-C to cancel. Either way, recorded results survive.

Examples:
  irsight run --sites sites.csv --criteria criteria.yaml
  irsight run --sites sites.csv --criteria criteria.yaml --parallel 4
  irsight run --sites sites.csv --criteria criteria.yaml --bedrock`,
	RunE: runAudit,
}

func init() {
	runCmd.Flags().StringVar(&runSitesPath, "sites", "", "CSV file listing the sites to audit (required)")
	runCmd.Flags().StringVar(&runCriteriaPath, "criteria", "", "YAML criteria catalog (required)")
	runCmd.Flags().StringVar(&runOutputDir, "output", "", "output directory (default from config)")
	runCmd.Flags().IntVar(&runParallel, "parallel", 0, "number of concurrent site workers")
	runCmd.Flags().IntVar(&runInterval, "checkpoint-interval", 0, "sites between checkpoint flushes")
	runCmd.Flags().StringVar(&runModel, "model", "", "reasoning model override")
	runCmd.Flags().BoolVar(&runBedrock, "bedrock", false, "route reasoning calls through AWS Bedrock")
	runCmd.Flags().BoolVar(&runHeadful, "headful", false, "run the browser with a visible window")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "write a debug log under the output directory")
	runCmd.MarkFlagRequired("sites")
	runCmd.MarkFlagRequired("criteria")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sites, err := catalog.LoadSites(runSitesPath)
	if err != nil {
		return err
	}
	criteria, err := catalog.LoadCriteria(runCriteriaPath)
	if err != nil {
		return err
	}

	var apiKey string
	if !cfg.Anthropic.UseBedrock {
		apiKey, err = config.GetAPIKey(cfg)
		if err != nil {
			return err
		}
	}
	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("reasoning client: %w", err)
	}

	browser, err := page.NewChromeBrowser(page.ChromeConfig{
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		DelayAfterLoad:    cfg.Browser.DelayAfterLoad,
		EvidenceDir:       cfg.EvidenceDir(),
	})
	if err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	defer browser.Close(context.Background())

	store, err := checkpoint.Open(cfg.CheckpointPath())
	if err != nil {
		return err
	}
	defer store.Close()

	logger := orchestrator.NopLogger()
	if cfg.Output.DebugLog {
		logger, err = orchestrator.NewDebugLogger(filepath.Join(cfg.Output.Dir, "logs", "audit-debug.log"))
		if err != nil {
			return err
		}
	}
	defer logger.Close()

	stopPath := filepath.Join(cfg.Output.Dir, cfg.Output.StopFile)
	stop := orchestrator.NewStopWatcher(stopPath)
	defer stop.Close()

	policy := retry.Policy{
		MaxAttempts:       cfg.Processing.MaxAttempts,
		TransientAttempts: 2,
		BaseDelay:         cfg.Processing.BaseDelay,
		RateLimitCooldown: cfg.Processing.RateLimitCooldown,
	}
	registry := evaluator.NewRegistry(evaluator.NewSemantic(client, retry.NewGate(policy)))

	o := orchestrator.New(browser, registry, store,
		orchestrator.WithCheckpointInterval(cfg.Processing.CheckpointInterval),
		orchestrator.WithParallel(cfg.Processing.Parallel),
		orchestrator.WithRetryPolicy(policy),
		orchestrator.WithLogger(logger),
		orchestrator.WithStopWatcher(stop),
	)

	fmt.Printf("Auditing %d sites against %d criteria (%d workers)\n",
		len(sites), len(criteria), cfg.Processing.Parallel)
	fmt.Printf("Checkpoint: %s  Stop file: %s\n\n", cfg.CheckpointPath(), stopPath)

	sum, err := o.Run(ctx, sites, criteria)
	if sum != nil {
		printSummary(sum, client)
	}
	if err != nil {
		return fmt.Errorf("audit run: %w", err)
	}
	return nil
}

// applyRunFlags folds explicit command-line flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("output") {
		cfg.Output.Dir = runOutputDir
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Processing.Parallel = runParallel
	}
	if cmd.Flags().Changed("checkpoint-interval") {
		cfg.Processing.CheckpointInterval = runInterval
	}
	if cmd.Flags().Changed("model") {
		cfg.Anthropic.Model = runModel
	}
	if cmd.Flags().Changed("bedrock") {
		cfg.Anthropic.UseBedrock = runBedrock
	}
	if cmd.Flags().Changed("headful") {
		cfg.Browser.Headless = !runHeadful
	}
	if cmd.Flags().Changed("debug") {
		cfg.Output.DebugLog = runDebug
	}
}

var (
	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
	summaryTitleStyle = lipgloss.NewStyle().Bold(true)
	passStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	errStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// printSummary renders the end-of-run report, including reasoning-service
// token usage and estimated cost.
func printSummary(sum *orchestrator.Summary, client *llm.Client) {
	title := "Audit complete"
	if sum.Stopped {
		title = "Audit stopped (resume with the same command)"
	}

	lines := fmt.Sprintf("%s\n\n", summaryTitleStyle.Render(title))
	lines += fmt.Sprintf("Run:        %s\n", sum.RunID)
	lines += fmt.Sprintf("Pairs:      %d total, %d evaluated, %d resumed\n",
		sum.Total, sum.Evaluated, sum.Skipped)
	lines += fmt.Sprintf("Verdicts:   %s  %s  %s  %s\n",
		passStyle.Render(fmt.Sprintf("PASS %d", sum.Counts[models.VerdictPass])),
		failStyle.Render(fmt.Sprintf("FAIL %d", sum.Counts[models.VerdictFail])),
		errStyle.Render(fmt.Sprintf("ERROR %d", sum.Counts[models.VerdictError])),
		dimStyle.Render(fmt.Sprintf("NOT_SUPPORTED %d", sum.Counts[models.VerdictNotSupported])))
	lines += fmt.Sprintf("Duration:   %s\n", sum.Duration.Round(100*time.Millisecond))

	if len(sum.Categories) > 0 {
		names := make([]string, 0, len(sum.Categories))
		for name := range sum.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		lines += "Categories:\n"
		for _, name := range names {
			cs := sum.Categories[name]
			lines += fmt.Sprintf("  %-24s %d/%d pass (%.0f%%)\n",
				name, cs.Pass, cs.Total, cs.PassRate()*100)
		}
	}

	in, out := client.Tracker().Total()
	lines += fmt.Sprintf("Reasoning:  %d calls, %d in / %d out tokens, ~$%.4f",
		client.Tracker().Calls(), in, out, client.Tracker().Cost(client.Model()))

	fmt.Println(summaryBoxStyle.Render(lines))
}
