// Package internal provides the App struct that wires all components of
// the AI Employee system together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/action"
	"github.com/pveiga-dev/ai-employee/internal/cli"
	"github.com/pveiga-dev/ai-employee/internal/core"
	"github.com/pveiga-dev/ai-employee/internal/dashboard"
	"github.com/pveiga-dev/ai-employee/internal/observability"
	"github.com/pveiga-dev/ai-employee/internal/vault"
)

// App holds all service dependencies for the AI Employee system.
type App struct {
	Config    *core.Config
	Vault     *vault.Vault
	Audit     *vault.AuditLog
	Dashboard *dashboard.Updater
	Notifier  observability.Notifier
	Executor  action.Executor
	Assistant core.Assistant
	Log       zerolog.Logger
}

// NewApp creates and wires all components against a vault root, and
// injects them into the CLI layer.
func NewApp(vaultPath string) (*App, error) {
	cfg, err := core.LoadConfig(vaultPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(vaultPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating vault root: %w", err)
	}
	v, err := vault.Open(vaultPath)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		Vault:     v,
		Audit:     vault.NewAuditLog(v.Dir(vault.FolderLogs)),
		Dashboard: dashboard.NewUpdater(v, log),
		Log:       log,
	}

	if cfg.SlackWebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.SlackWebhookURL)
	} else {
		app.Notifier = observability.NopNotifier{}
	}

	app.Executor = action.NewCLIExecutor(action.CLIConfig{
		Vault:   v,
		Audit:   app.Audit,
		Logger:  log,
		CLIPath: cfg.EmailCLIPath,
		Timeout: cfg.EmailTimeout,
		DryRun:  cfg.DryRun,
	})
	app.Assistant = core.NewAssistant(cfg.AssistantCommand, vaultPath, cfg.AssistantTimeout, log)

	// --- CLI layer injection ---
	cli.Cfg = cfg
	cli.V = v
	cli.Audit = app.Audit
	cli.Dash = app.Dashboard
	cli.Notifier = app.Notifier
	cli.Executor = app.Executor
	cli.Assist = app.Assistant
	cli.Log = log

	return app, nil
}

// newLogger builds the process logger: console output on a TTY-ish
// stderr, structured JSON otherwise.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(lvl).With().Timestamp().Logger()
}

// ResolveVaultPath finds the vault root: VAULT_PATH wins, then the
// nearest ancestor directory containing .aieconfig, then the current
// directory. VAULT_PATH is the same variable the assistant subprocess
// receives, so parent and child agree on the vault.
func ResolveVaultPath() string {
	if path := os.Getenv("VAULT_PATH"); path != "" {
		return path
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".aieconfig")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
