package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pveiga-dev/ai-employee/internal/watcher"
)

var (
	checkStaleVault string
	checkStaleAfter time.Duration
)

var checkStaleCmd = &cobra.Command{
	Use:   "check-stale",
	Short: "Sweep Pending_Approval for requests waiting too long",
	Long: `List approval requests that have waited in Pending_Approval longer
than the threshold, flagging any that were not flagged yet. Flagging
is advisory: the files stay put and remain actionable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reinitIfSet(checkStaleVault); err != nil {
			return err
		}
		if V == nil {
			return fmt.Errorf("vault not initialized")
		}

		staleAfter := Cfg.StaleAfter
		if checkStaleAfter > 0 {
			staleAfter = checkStaleAfter
		}
		w := watcher.NewApprovalWatcher(watcher.ApprovalConfig{
			Vault:      V,
			Executor:   Executor,
			Audit:      Audit,
			Dashboard:  Dash,
			Logger:     Log,
			StaleAfter: staleAfter,
		})

		stale, err := w.SweepStale()
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			fmt.Printf("No approval has waited longer than %s.\n", staleAfter)
			return nil
		}

		fmt.Printf("== STALE APPROVALS (%d) ==\n", len(stale))
		for _, it := range stale {
			fmt.Printf("  %-9s %-50s %s\n", it.Header.Priority, truncate(it.Filename, 50), it.Header.Received)
		}
		return nil
	},
}

func init() {
	checkStaleCmd.Flags().StringVar(&checkStaleVault, "vault", "", "vault root directory (default: VAULT_PATH or current directory)")
	checkStaleCmd.Flags().DurationVar(&checkStaleAfter, "after", 0, "override the staleness threshold (e.g. 12h)")
	rootCmd.AddCommand(checkStaleCmd)
}
