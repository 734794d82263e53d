package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ".aieconfig"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.VaultPath != dir {
		t.Errorf("VaultPath = %q", cfg.VaultPath)
	}
	if cfg.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.StaleAfter != 24*time.Hour {
		t.Errorf("StaleAfter = %v", cfg.StaleAfter)
	}
	if cfg.AssistantCommand != "claude" {
		t.Errorf("AssistantCommand = %q", cfg.AssistantCommand)
	}
	if cfg.MailSpoolDir != filepath.Join(dir, ".spool", "email") {
		t.Errorf("MailSpoolDir = %q", cfg.MailSpoolDir)
	}
	if cfg.DryRun {
		t.Error("DryRun should default to false")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
watchers:
  poll_interval: 2m
  max_retries: 5
  stale_after: 48h
email:
  cli_path: /opt/email-cli/index.ts
assistant:
  command: claude-custom
dry_run: true
log_level: debug
`)
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PollInterval != 2*time.Minute {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.StaleAfter != 48*time.Hour {
		t.Errorf("StaleAfter = %v", cfg.StaleAfter)
	}
	if cfg.EmailCLIPath != "/opt/email-cli/index.ts" {
		t.Errorf("EmailCLIPath = %q", cfg.EmailCLIPath)
	}
	if cfg.AssistantCommand != "claude-custom" {
		t.Errorf("AssistantCommand = %q", cfg.AssistantCommand)
	}
	if !cfg.DryRun {
		t.Error("DryRun should be true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "watchers:\n  poll_interval: sometimes\n")
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestLoadConfigNegativeRetries(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "watchers:\n  max_retries: -1\n")
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected error for negative retries")
	}
}

func TestLoadConfigDryRunEnvCompat(t *testing.T) {
	t.Setenv("DRY_RUN", "true")
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.DryRun {
		t.Error("DRY_RUN=true should force dry run")
	}
}
