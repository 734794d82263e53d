package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pveiga-dev/ai-employee/internal/core"
	"github.com/pveiga-dev/ai-employee/internal/orchestrator"
)

var startVault string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the orchestrator: supervise watchers and fire scheduled tasks",
	Long: `Start the always-on loop. The orchestrator spawns one process per
watcher (email, filesystem, approval), restarts any that die, and runs
the task schedule. A watcher that crash-loops has its auto-restart
paused until a human investigates.

Stops cleanly on SIGINT or SIGTERM, persisting schedule state so the
next start resumes where this one left off.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reinitIfSet(startVault); err != nil {
			return err
		}
		if V == nil {
			return fmt.Errorf("vault not initialized")
		}

		manager, err := orchestrator.NewManager(orchestrator.ManagerConfig{
			Vault:  V,
			Logger: Log,
			Specs: []orchestrator.WatcherSpec{
				{Name: "email"},
				{Name: "filesystem"},
				{Name: "approval"},
			},
			Notifier: Notifier,
			Health:   Dash,
		})
		if err != nil {
			return err
		}

		runner := &core.TaskRunner{
			Assistant:   Assist,
			Audit:       Audit,
			Log:         Log,
			Maintenance: maintenanceHandlers(),
		}

		orch := orchestrator.New(orchestrator.Config{
			Vault:        V,
			Manager:      manager,
			Runner:       runner,
			Tasks:        core.DefaultSchedule(),
			Logger:       Log,
			TickInterval: Cfg.TickInterval,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	startCmd.Flags().StringVar(&startVault, "vault", "", "vault root directory (default: VAULT_PATH or current directory)")
	rootCmd.AddCommand(startCmd)
}
