// Package core contains the business logic of the AI Employee runtime:
// configuration, the task schedule, manual triggers, and the assistant
// subprocess bridge.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the explicit runtime configuration. Every component receives
// the values it needs through its own config struct; nothing reads this
// globally.
type Config struct {
	VaultPath string

	// Watcher cadence and retry policy.
	PollInterval     time.Duration
	ApprovalInterval time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	StaleAfter       time.Duration

	// Execution.
	DryRun       bool
	EmailCLIPath string
	EmailTimeout time.Duration
	MailSpoolDir string

	// Orchestration.
	TickInterval     time.Duration
	AssistantCommand string
	AssistantTimeout time.Duration

	// Notifications.
	SlackWebhookURL string

	LogLevel string
}

// defaultConfig returns the configuration used when no .aieconfig exists.
func defaultConfig() *Config {
	return &Config{
		PollInterval:     60 * time.Second,
		ApprovalInterval: 30 * time.Second,
		MaxRetries:       2,
		RetryDelay:       5 * time.Second,
		StaleAfter:       24 * time.Hour,
		EmailTimeout:     60 * time.Second,
		TickInterval:     60 * time.Second,
		AssistantCommand: "claude",
		AssistantTimeout: 5 * time.Minute,
		LogLevel:         "info",
	}
}

// LoadConfig reads .aieconfig (YAML) from the vault root, falling back to
// the home directory and then to defaults. Environment variables with the
// AIE_ prefix override file values; DRY_RUN=true is honored for
// compatibility with the older tooling.
func LoadConfig(vaultPath string) (*Config, error) {
	cfg := defaultConfig()
	cfg.VaultPath = vaultPath
	cfg.MailSpoolDir = filepath.Join(vaultPath, ".spool", "email")

	v := viper.New()
	v.SetConfigName(".aieconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(vaultPath)
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.SetEnvPrefix("AIE")
	v.AutomaticEnv()

	v.SetDefault("watchers.poll_interval", cfg.PollInterval.String())
	v.SetDefault("watchers.approval_interval", cfg.ApprovalInterval.String())
	v.SetDefault("watchers.max_retries", cfg.MaxRetries)
	v.SetDefault("watchers.retry_delay", cfg.RetryDelay.String())
	v.SetDefault("watchers.stale_after", cfg.StaleAfter.String())
	v.SetDefault("email.cli_path", "")
	v.SetDefault("email.timeout", cfg.EmailTimeout.String())
	v.SetDefault("email.spool_dir", cfg.MailSpoolDir)
	v.SetDefault("orchestrator.tick_interval", cfg.TickInterval.String())
	v.SetDefault("assistant.command", cfg.AssistantCommand)
	v.SetDefault("assistant.timeout", cfg.AssistantTimeout.String())
	v.SetDefault("slack.webhook_url", "")
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("dry_run", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading .aieconfig: %w", err)
		}
	}

	var parseErr error
	dur := func(key string, fallback time.Duration) time.Duration {
		raw := v.GetString(key)
		d, err := time.ParseDuration(raw)
		if err != nil {
			parseErr = fmt.Errorf("invalid duration for %s: %q", key, raw)
			return fallback
		}
		return d
	}

	cfg.PollInterval = dur("watchers.poll_interval", cfg.PollInterval)
	cfg.ApprovalInterval = dur("watchers.approval_interval", cfg.ApprovalInterval)
	cfg.MaxRetries = v.GetInt("watchers.max_retries")
	cfg.RetryDelay = dur("watchers.retry_delay", cfg.RetryDelay)
	cfg.StaleAfter = dur("watchers.stale_after", cfg.StaleAfter)
	cfg.EmailCLIPath = v.GetString("email.cli_path")
	cfg.EmailTimeout = dur("email.timeout", cfg.EmailTimeout)
	cfg.MailSpoolDir = v.GetString("email.spool_dir")
	cfg.TickInterval = dur("orchestrator.tick_interval", cfg.TickInterval)
	cfg.AssistantCommand = v.GetString("assistant.command")
	cfg.AssistantTimeout = dur("assistant.timeout", cfg.AssistantTimeout)
	cfg.SlackWebhookURL = v.GetString("slack.webhook_url")
	cfg.LogLevel = v.GetString("log_level")
	cfg.DryRun = v.GetBool("dry_run")
	if os.Getenv("DRY_RUN") == "true" {
		cfg.DryRun = true
	}
	if parseErr != nil {
		return nil, parseErr
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("watchers.max_retries must be >= 0, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}
