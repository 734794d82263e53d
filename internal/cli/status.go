package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pveiga-dev/ai-employee/internal/vault"
)

var (
	statusVault     string
	statusSubdomain string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the queue: per-folder counts and pending items",
	Long: `Show the pipeline at a glance: how many files sit in each folder,
and the Needs_Action items in priority order.

Filter the pending list to one subdomain with --subdomain (e.g.
--subdomain emails).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reinitIfSet(statusVault); err != nil {
			return err
		}
		if V == nil {
			return fmt.Errorf("vault not initialized")
		}

		c := V.Counts()
		fmt.Println("== QUEUE ==")
		fmt.Printf("  %-18s %d\n", "Needs Action", c.NeedsAction)
		fmt.Printf("  %-18s %d\n", "Plans", c.Plans)
		fmt.Printf("  %-18s %d\n", "Pending Approval", c.PendingApproval)
		fmt.Printf("  %-18s %d\n", "Approved", c.Approved)
		fmt.Printf("  %-18s %d\n", "Rejected", c.Rejected)
		fmt.Printf("  %-18s %d\n", "Done today", c.DoneToday)

		items, err := V.ListPending(statusSubdomain)
		if err != nil {
			return fmt.Errorf("listing pending items: %w", err)
		}
		if len(items) == 0 {
			fmt.Println("\nNothing waiting in Needs_Action.")
			return nil
		}

		fmt.Printf("\n== PENDING (%d) ==\n", len(items))
		fmt.Printf("  %-9s %-12s %-40s %s\n", "PRI", "SUBDOMAIN", "SUBJECT", "SOURCE")
		fmt.Printf("  %-9s %-12s %-40s %s\n", "---", "---------", "-------", "------")
		for _, it := range items {
			fmt.Printf("  %-9s %-12s %-40s %s\n",
				it.Header.Priority, it.Subdomain, truncate(it.Header.Subject, 40), it.Header.Source)
		}

		pending, err := V.ListFolder(vault.FolderPendingApproval)
		if err == nil && len(pending) > 0 {
			stale := 0
			for _, it := range pending {
				if it.Header.Stale {
					stale++
				}
			}
			if stale > 0 {
				fmt.Printf("\n%d approval request(s) flagged stale; run 'aie check-stale' for detail.\n", stale)
			}
		}
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	statusCmd.Flags().StringVar(&statusVault, "vault", "", "vault root directory (default: VAULT_PATH or current directory)")
	statusCmd.Flags().StringVar(&statusSubdomain, "subdomain", "", "filter pending items to one Needs_Action subfolder")
	rootCmd.AddCommand(statusCmd)
}
