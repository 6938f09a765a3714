package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	provwatchmcp "github.com/provwatch/provwatch/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  providers_by_risk  — query stored providers by tier/status/score
  provider_get       — fetch one provider document by id
  provider_evidence  — fetch the evidence ledger rows for a provider
  run_stats          — list recent runs with counts
  set_label          — set or clear the analyst label on a provider

If the store is unavailable at startup the server still starts;
individual tool calls will return MCP error responses on failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			st, storeErr := newStore(logger)
			if storeErr != nil {
				// Log to stderr and continue with a nil store.
				// Tool calls will return per-call errors rather than crashing.
				logger.Error("mcp: failed to connect to store; tool calls requiring storage will fail",
					"error", storeErr)
			} else if err := st.EnsureSchema(cmd.Context()); err != nil {
				logger.Error("mcp: failed to ensure store schema", "error", err)
			}

			srv := provwatchmcp.NewServer(st, cfg.MCP.ServerName, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: provwatch MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
