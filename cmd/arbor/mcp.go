package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/mcp"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [dir]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Merges the manifests and exposes the tree to AI agents as MCP tools
(get_tree, find_node, list_errors, list_modules, nodes_for_condition).

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		watch, _ := cmd.Flags().GetBool("watch")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		src, err := openSource(cfg)
		if err != nil {
			return err
		}
		t, err := buildTree(ctx, cfg, src, nil, "mcp", domain.LifecycleHooks{})
		if err != nil {
			return err
		}
		live := &liveTree{}
		live.Store(t)

		if watch {
			rebuild := func(ctx context.Context) (*arbor.Tree, error) {
				return buildTree(ctx, cfg, src, nil, "mcp", domain.LifecycleHooks{})
			}
			if err := watchAndRebuild(ctx, src, rebuild, live); err != nil {
				return err
			}
		}

		srv := mcp.NewServer(live, arbor.Version, logger)

		switch transport {
		case "stdio":
			// Logs go to stderr and never corrupt JSON-RPC on stdout.
			logger.Info("Starting arbor MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			err := srv.ServeSSE(ctx, cfg.HTTP.Addr)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Bool("watch", false, "Rebuild the tree when a manifest changes")
}
