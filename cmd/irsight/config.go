package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/irsight/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the effective configuration after merging defaults, the user
config, the project config, and environment variables.

Configuration is stored at ~/.config/irsight/config.yaml
Project-specific overrides can be placed in .irsight.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		displayConfig(cfg)
	},
}

// displayConfig prints all configuration values.
func displayConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.model: %s\n", orDefault(cfg.Anthropic.Model, "(sdk default)"))
	fmt.Printf("anthropic.max_tokens: %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("browser.headless: %t\n", cfg.Browser.Headless)
	fmt.Printf("browser.navigation_timeout: %s\n", cfg.Browser.NavigationTimeout)
	fmt.Printf("browser.delay_after_load: %s\n", cfg.Browser.DelayAfterLoad)
	fmt.Printf("processing.checkpoint_interval: %d\n", cfg.Processing.CheckpointInterval)
	fmt.Printf("processing.parallel: %d\n", cfg.Processing.Parallel)
	fmt.Printf("processing.max_attempts: %d\n", cfg.Processing.MaxAttempts)
	fmt.Printf("processing.base_delay: %s\n", cfg.Processing.BaseDelay)
	fmt.Printf("processing.rate_limit_cooldown: %s\n", cfg.Processing.RateLimitCooldown)
	fmt.Printf("output.dir: %s\n", cfg.Output.Dir)
	fmt.Printf("output.checkpoint: %s\n", cfg.CheckpointPath())
	fmt.Printf("output.evidence: %s\n", cfg.EvidenceDir())
	fmt.Printf("output.stop_file: %s\n", cfg.Output.StopFile)
	fmt.Printf("output.debug_log: %t\n", cfg.Output.DebugLog)

	fmt.Printf("\nUser config:    %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("Project config: %s\n", p)
	}
	fmt.Printf("API key source: %s\n", config.GetAPIKeySource(cfg))
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
