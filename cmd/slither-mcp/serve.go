package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trailofbits/slither-mcp/internal/logging"
	"github.com/trailofbits/slither-mcp/internal/mcp"
	"github.com/trailofbits/slither-mcp/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve fact-graph queries over MCP on stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout. Logs go to
stderr so the JSON-RPC stream stays clean. The first query against a project
triggers analysis; subsequent queries hit the cached fact graph.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, _, err := buildEngine()
		if err != nil {
			return err
		}

		// The server owns stdout; route its logs per config but force
		// stderr output regardless of format.
		logger := logging.NewLogger(logging.Config{
			Format: logging.Format(cfg.Logging.Format),
			Level:  logging.ParseLevel(cfg.Logging.Level),
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server := mcp.NewServer(version.Version, eng, logger)
		return server.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
