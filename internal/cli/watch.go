package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pveiga-dev/ai-employee/internal/watcher"
)

var (
	watchVault  string
	watchEvents bool
	watchOnce   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <email|filesystem|approval>",
	Short: "Run a single watcher in the foreground",
	Long: `Run one watcher until interrupted. The orchestrator spawns these as
child processes, but they are equally usable standalone for debugging:

  aie watch email       poll the mail spool into Needs_Action/emails
  aie watch filesystem  poll the Drop folder into Needs_Action/file_drops
  aie watch approval    execute Approved/ files, archive Rejected/ ones

With --events the filesystem watcher reacts to fsnotify events instead
of waiting for its next poll. With --once the watcher runs one cycle
and exits.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"email", "filesystem", "approval"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reinitIfSet(watchVault); err != nil {
			return err
		}
		if V == nil {
			return fmt.Errorf("vault not initialized")
		}
		if err := V.EnsureLayout(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err := runWatcher(ctx, args[0])
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func runWatcher(ctx context.Context, name string) error {
	switch name {
	case "email":
		engine, err := watcher.NewEngine(watcher.EngineConfig{
			Vault:    V,
			Source:   watcher.NewMailboxSource(Cfg.MailSpoolDir),
			Audit:    Audit,
			Logger:   Log,
			Interval: Cfg.PollInterval,
		})
		if err != nil {
			return err
		}
		if watchOnce {
			_, err := engine.RunOnce(ctx)
			return err
		}
		return engine.Run(ctx)
	case "filesystem":
		engine, err := watcher.NewEngine(watcher.EngineConfig{
			Vault:    V,
			Source:   watcher.NewDropSource(V),
			Audit:    Audit,
			Logger:   Log,
			Interval: Cfg.PollInterval,
		})
		if err != nil {
			return err
		}
		if watchOnce {
			_, err := engine.RunOnce(ctx)
			return err
		}
		if watchEvents {
			return watcher.WatchDrop(ctx, V, engine, Log)
		}
		return engine.Run(ctx)
	case "approval":
		w := watcher.NewApprovalWatcher(watcher.ApprovalConfig{
			Vault:      V,
			Executor:   Executor,
			Audit:      Audit,
			Dashboard:  Dash,
			Logger:     Log,
			Interval:   Cfg.ApprovalInterval,
			MaxRetries: Cfg.MaxRetries,
			RetryDelay: Cfg.RetryDelay,
			StaleAfter: Cfg.StaleAfter,
		})
		if watchOnce {
			return w.Scan(ctx)
		}
		return w.Run(ctx)
	default:
		return fmt.Errorf("unknown watcher %q: want email, filesystem, or approval", name)
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchVault, "vault", "", "vault root directory (default: VAULT_PATH or current directory)")
	watchCmd.Flags().BoolVar(&watchEvents, "events", false, "filesystem watcher only: react to fsnotify events")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "run a single cycle and exit")
	rootCmd.AddCommand(watchCmd)
}
