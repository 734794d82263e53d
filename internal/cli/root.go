package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Version returns the current version string.
func Version() string { return appVersion }

var rootCmd = &cobra.Command{
	Use:   "aie",
	Short: "AI Employee - an autonomous work queue over a markdown vault",
	Long: `AI Employee (aie) turns a folder of markdown files into a work queue
with a human approval gate. Watchers perceive emails and dropped files
into Needs_Action, the assistant plans and files approval requests, and
nothing with side effects runs until a human moves the request into
Approved.

Folder membership is the state: every transition is a file move, so the
whole pipeline can be inspected and driven from any file manager.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aie %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
