// Package config handles configuration loading and management for irsight.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for irsight.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Output     OutputConfig     `mapstructure:"output"`
}

// AnthropicConfig holds reasoning-service settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// MaxTokens bounds each response.
	MaxTokens int `mapstructure:"max_tokens"`
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// BrowserConfig holds page-access settings.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless"`
	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	// DelayAfterLoad is an extra settle wait after navigation completes.
	DelayAfterLoad time.Duration `mapstructure:"delay_after_load"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ProcessingConfig holds run-control settings.
type ProcessingConfig struct {
	// CheckpointInterval is how many sites to process between checkpoint
	// timestamp updates.
	CheckpointInterval int `mapstructure:"checkpoint_interval"`
	// Parallel is the number of concurrent site workers; 1 means sequential.
	Parallel int `mapstructure:"parallel"`
	// MaxAttempts bounds retries for network, timeout, and rate-limit failures.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BaseDelay is the first backoff delay.
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// RateLimitCooldown is the extra wait after an upstream rate-limit signal.
	RateLimitCooldown time.Duration `mapstructure:"rate_limit_cooldown"`
}

// OutputConfig holds artifact locations.
type OutputConfig struct {
	// Dir is the root output directory.
	Dir string `mapstructure:"dir"`
	// CheckpointPath overrides the checkpoint database location.
	CheckpointPath string `mapstructure:"checkpoint_path"`
	// EvidenceDir is where element screenshots are stored.
	EvidenceDir string `mapstructure:"evidence_dir"`
	// StopFile is watched during a run; its appearance requests a graceful stop.
	StopFile string `mapstructure:"stop_file"`
	// DebugLog enables the per-run debug log file.
	DebugLog bool `mapstructure:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (IRSIGHT_*, ANTHROPIC_API_KEY)
// 2. Project config (.irsight.yaml in current directory or parent)
// 3. User config (~/.config/irsight/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix("IRSIGHT")
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Validate checks the loaded configuration for values the run cannot start
// without.
func (c *Config) Validate() error {
	if c.Processing.CheckpointInterval < 1 {
		return fmt.Errorf("processing.checkpoint_interval must be >= 1")
	}
	if c.Processing.Parallel < 1 {
		return fmt.Errorf("processing.parallel must be >= 1")
	}
	if c.Processing.MaxAttempts < 1 {
		return fmt.Errorf("processing.max_attempts must be >= 1")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	return nil
}

// CheckpointPath returns the checkpoint database location, defaulting into
// the output directory.
func (c *Config) CheckpointPath() string {
	if c.Output.CheckpointPath != "" {
		return c.Output.CheckpointPath
	}
	return filepath.Join(c.Output.Dir, "checkpoint.db")
}

// EvidenceDir returns the evidence directory, defaulting into the output
// directory.
func (c *Config) EvidenceDir() string {
	if c.Output.EvidenceDir != "" {
		return c.Output.EvidenceDir
	}
	return filepath.Join(c.Output.Dir, "evidence")
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.delay_after_load", "2s")

	v.SetDefault("processing.checkpoint_interval", 1)
	v.SetDefault("processing.parallel", 1)
	v.SetDefault("processing.max_attempts", 3)
	v.SetDefault("processing.base_delay", "2s")
	v.SetDefault("processing.rate_limit_cooldown", "60s")

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.stop_file", "STOP")
	v.SetDefault("output.debug_log", false)
}

// getUserConfigDir returns the XDG config directory for irsight.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "irsight")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "irsight")
	}
	return filepath.Join(home, ".config", "irsight")
}

// findProjectConfig searches for .irsight.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".irsight.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			MaxTokens: 2048,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			DelayAfterLoad:    2 * time.Second,
		},
		Processing: ProcessingConfig{
			CheckpointInterval: 1,
			Parallel:           1,
			MaxAttempts:        3,
			BaseDelay:          2 * time.Second,
			RateLimitCooldown:  60 * time.Second,
		},
		Output: OutputConfig{
			Dir:      "output",
			StopFile: "STOP",
		},
	}
}
