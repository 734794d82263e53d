package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pveiga-dev/ai-employee/internal/core"
	"github.com/pveiga-dev/ai-employee/internal/vault"
)

var scheduleVault string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect the recurring task schedule",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every scheduled task and when it last ran",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reinitIfSet(scheduleVault); err != nil {
			return err
		}
		if V == nil {
			return fmt.Errorf("vault not initialized")
		}
		state := loadScheduleState()

		fmt.Printf("  %-20s %-16s %-8s %-10s %s\n", "TASK", "FREQUENCY", "AT", "KIND", "LAST RUN")
		fmt.Printf("  %-20s %-16s %-8s %-10s %s\n", "----", "---------", "--", "----", "--------")
		for _, t := range core.DefaultSchedule() {
			kind := "internal"
			if t.Assistant {
				kind = "assistant"
			}
			at := t.At
			if t.Frequency == core.FreqEveryNMinutes {
				at = fmt.Sprintf("%dm", t.EveryN)
			}
			last := "never"
			if lr := state.LastRun(t.Name); !lr.IsZero() {
				last = lr.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("  %-20s %-16s %-8s %-10s %s\n", t.Name, t.Frequency, at, kind, last)
		}
		return nil
	},
}

var scheduleCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Show which tasks are due right now, in execution order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reinitIfSet(scheduleVault); err != nil {
			return err
		}
		if V == nil {
			return fmt.Errorf("vault not initialized")
		}
		state := loadScheduleState()

		due := core.DueTasks(core.DefaultSchedule(), state, time.Now())
		if len(due) == 0 {
			fmt.Println("Nothing due.")
			return nil
		}
		fmt.Printf("== DUE (%d) ==\n", len(due))
		for i, t := range due {
			fmt.Printf("  %d. %s\n", i+1, t.Name)
		}
		return nil
	},
}

// loadScheduleState reads the orchestrator's persisted schedule state.
// Missing state means nothing has run yet.
func loadScheduleState() *core.ScheduleState {
	var persisted struct {
		Schedule core.ScheduleState `json:"schedule"`
	}
	path := filepath.Join(V.Root, vault.FolderState, "orchestrator_state.json")
	if err := vault.LoadJSON(path, &persisted); err != nil {
		return &core.ScheduleState{}
	}
	return &persisted.Schedule
}

func init() {
	scheduleCmd.PersistentFlags().StringVar(&scheduleVault, "vault", "", "vault root directory (default: VAULT_PATH or current directory)")
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleCheckCmd)
	rootCmd.AddCommand(scheduleCmd)
}
