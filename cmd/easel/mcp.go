package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/easel/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes editor sessions as MCP tools (trigger, undo, redo, get_state,
get_tree, history, checkpoint, list_sessions), backed by the same session
store as 'easel serve'.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local agents.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		if transport != "stdio" && transport != "sse" {
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}

		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		opts := serveOptions(cmd)
		opts.LogOutput = os.Stderr

		srv, closeStore, err := cli.NewMCPServer(opts)
		if err != nil {
			return err
		}
		defer closeStore()

		if transport == "stdio" {
			return srv.ServeStdio()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "MCP server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().IntP("port", "p", 8080, "Port to listen on (only for SSE)")
	addSessionFlags(mcpCmd)
}
