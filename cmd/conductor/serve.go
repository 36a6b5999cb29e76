package main

import (
	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the Conductor HTTP API. Requests are validated against the embedded
OpenAPI contract, served at /openapi.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		addr, _ := cmd.Flags().GetString("addr")
		return cli.ServeHTTP(cli.ServeOptions{ConfigPath: configPath, Debug: debug, Addr: addr})
	},
}

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes Conductor as an MCP server with run_goal, plan_validate and
list_capabilities tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		addr, _ := cmd.Flags().GetString("addr")
		transport, _ := cmd.Flags().GetString("transport")
		return cli.ServeMCP(cli.ServeOptions{ConfigPath: configPath, Debug: debug, Addr: addr, Transport: transport})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, mcpCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from http.addr)")
	mcpCmd.Flags().StringP("transport", "t", "", "Transport type (stdio, sse)")
	mcpCmd.Flags().String("addr", "", "Listen address for sse (default from mcp.addr)")
}
