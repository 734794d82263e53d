package main

import (
	"fmt"
	"os"

	app "github.com/pveiga-dev/ai-employee/internal"
	"github.com/pveiga-dev/ai-employee/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	cli.Reinit = func(vaultPath string) error {
		_, err := app.NewApp(vaultPath)
		return err
	}

	if _, err := app.NewApp(app.ResolveVaultPath()); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing aie: %v\n", err)
		os.Exit(1)
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
