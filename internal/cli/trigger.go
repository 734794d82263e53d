package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pveiga-dev/ai-employee/internal/core"
)

var (
	triggerVault string
	triggerNow   bool
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <task>",
	Short: "Run a scheduled task out of schedule",
	Long: `Queue a task for the running orchestrator's next tick, or run it in
this process with --now. The task name must exist in the schedule;
see 'aie schedule list'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reinitIfSet(triggerVault); err != nil {
			return err
		}
		if V == nil {
			return fmt.Errorf("vault not initialized")
		}

		name := args[0]
		task, ok := core.FindTask(core.DefaultSchedule(), name)
		if !ok {
			return fmt.Errorf("unknown task %q: see 'aie schedule list'", name)
		}

		if triggerNow {
			runner := &core.TaskRunner{
				Assistant:   Assist,
				Audit:       Audit,
				Log:         Log,
				Maintenance: maintenanceHandlers(),
			}
			return runner.Run(cmd.Context(), task)
		}

		stateDir, err := V.StateDir()
		if err != nil {
			return err
		}
		if err := core.RequestTrigger(stateDir, name); err != nil {
			return err
		}
		fmt.Printf("trigger queued: %s will run on the orchestrator's next tick\n", name)
		return nil
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerVault, "vault", "", "vault root directory (default: VAULT_PATH or current directory)")
	triggerCmd.Flags().BoolVar(&triggerNow, "now", false, "run the task in this process instead of queuing it")
	rootCmd.AddCommand(triggerCmd)
}
