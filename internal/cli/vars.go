package cli

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/action"
	"github.com/pveiga-dev/ai-employee/internal/core"
	"github.com/pveiga-dev/ai-employee/internal/dashboard"
	"github.com/pveiga-dev/ai-employee/internal/observability"
	"github.com/pveiga-dev/ai-employee/internal/vault"
)

// Service instances, set during app initialization in internal/app.go.
var (
	Cfg      *core.Config
	V        *vault.Vault
	Audit    *vault.AuditLog
	Dash     *dashboard.Updater
	Notifier observability.Notifier
	Executor action.Executor
	Assist   core.Assistant
	Log      zerolog.Logger

	// Reinit re-wires the services against a different vault. Set by main;
	// used by commands that take a --vault override.
	Reinit func(vaultPath string) error
)

// reinitIfSet re-runs app wiring when a command's --vault flag was given.
func reinitIfSet(vaultPath string) error {
	if vaultPath == "" || Reinit == nil {
		return nil
	}
	return Reinit(vaultPath)
}

// maintenanceHandlers maps the non-assistant scheduled tasks to their
// implementations.
func maintenanceHandlers() map[string]func(ctx context.Context) error {
	return map[string]func(ctx context.Context) error{
		"dashboard_refresh": func(context.Context) error { return Dash.Refresh() },
		"archive_done": func(context.Context) error {
			_, err := V.ArchiveDone(7)
			return err
		},
	}
}
