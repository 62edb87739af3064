package main

import "github.com/spf13/cobra"

// buildMigrateCmd creates the "migrate" command group, grounded on the
// teacher's buildMigrateCmd (cmd/nexus/commands_migrate.go): an "up"
// subcommand applying every pending schema change to both the agent
// context and conversation event stores.
func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.AddCommand(buildMigrateUpCmd())
	return cmd
}

func buildMigrateUpCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to the context and event stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "conductor.yaml", "Path to YAML configuration file")
	return cmd
}
