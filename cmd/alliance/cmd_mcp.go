package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/alliance/internal/mcp"
	"github.com/nvandessel/alliance/internal/ratelimit"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run as MCP server over stdio",
		Long: `Run alliance as a Model Context Protocol server.

The server speaks JSON-RPC over stdin/stdout and exposes the simulation
operations as alliance_* tools. Tool calls are audited to
~/.alliance/audit.jsonl (message text is never recorded).

Configure in your MCP client:
  {
    "mcpServers": {
      "alliance": {
        "command": "alliance",
        "args": ["mcp-server"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var limits ratelimit.Limits
			if cfg.Server.RateLimit {
				limits = ratelimit.DefaultLimits()
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "alliance",
				Version:  version,
				Service:  a.svc,
				Limits:   limits,
				AuditDir: cfg.Logging.DataDir,
				Logger:   a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			return server.Run(ctx)
		},
	}
}
