package main

import "github.com/spf13/cobra"

// buildInspectAgentCmd prints an agent's stored context and derived run
// stats, a read-only debugging aid grounded on the teacher's
// buildSessionsCmd inspection subcommands (cmd/nexus/commands_sessions.go).
func buildInspectAgentCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "inspect-agent <agent-id>",
		Short: "Print an agent's context and derived run stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectAgent(cmd, configPath, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "conductor.yaml", "Path to YAML configuration file")
	return cmd
}
