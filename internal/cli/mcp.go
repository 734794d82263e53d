package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	aiemcp "github.com/pveiga-dev/ai-employee/internal/mcp"
)

var mcpVault string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the aie MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aie MCP server on stdio",
	Long: `Start the aie MCP server on stdio transport.

The server exposes the work queue as MCP tools the assistant can call:
list_pending, read_item, create_approval_request, queue_counts. Writes
go through the same approval gate as everything else.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reinitIfSet(mcpVault); err != nil {
			return err
		}
		if V == nil {
			return fmt.Errorf("vault not initialized")
		}

		srv := aiemcp.NewServer(V, Audit, Dash, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpVault, "vault", "", "vault root directory (default: VAULT_PATH or current directory)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
