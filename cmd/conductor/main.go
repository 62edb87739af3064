// Package main provides the CLI entry point for the conductor agent
// orchestration service.
//
// conductor runs the HTTP/SSE surface (spec §6) in front of a pool of
// planner/executor agents, each backed by a pluggable LLM provider and a
// sandbox gateway reached over HTTP or a direct Firecracker vsock channel.
//
// # Basic Usage
//
// Start the server:
//
//	conductor serve --config conductor.yaml
//
// Apply database migrations:
//
//	conductor migrate up
//
// Inspect a single agent's derived run stats:
//
//	conductor inspect-agent --config conductor.yaml <agent-id>
//
// # Environment Variables
//
//   - CONDUCTOR_HOST, CONDUCTOR_HTTP_PORT, CONDUCTOR_METRICS_PORT
//   - DATABASE_PASSWORD
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY
//   - SANDBOX_AUTH_TOKEN
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached,
// separated from main() to facilitate testing, same split as the
// teacher's buildRootCmd.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conductor",
		Short: "conductor - multi-agent task orchestration service",
		Long: `conductor runs planner/executor agents against a pluggable LLM
gateway and a sandboxed tool surface, reachable over a JSON/SSE HTTP API.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildInspectAgentCmd(),
	)

	return rootCmd
}
