package main

import "github.com/spf13/cobra"

// buildServeCmd creates the "serve" command that starts the HTTP/SSE
// surface. This is the primary command for running conductor in
// production.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the conductor HTTP/SSE server",
		Long: `Start the conductor server.

The server will:
1. Load configuration from the specified file (default conductor.yaml)
2. Open the Postgres-backed agent context and event stores
3. Build the configured LLM provider (with failover if configured)
4. Build the sandbox gateway (HTTP or Firecracker driver)
5. Serve the agent API until SIGINT/SIGTERM`,
		Example: `  conductor serve
  conductor serve --config /etc/conductor/production.yaml
  conductor serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conductor.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
