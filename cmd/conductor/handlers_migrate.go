package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/config"
	"github.com/conductorhq/conductor/internal/convrepo"
	"github.com/conductorhq/conductor/internal/ctxrepo"
)

func openDatabase(db config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		db.Host, db.Port, db.User, db.Password, db.Database, db.SSLMode,
		int(db.ConnectTimeout.Seconds()),
	)
	return sql.Open("postgres", dsn)
}

// runMigrateUp loads config, opens one *sql.DB, and applies both
// repositories' pending migrations through their own Migrator, grounded on
// the teacher's openMigrationDB + runMigrateUp (cmd/nexus/handlers_migrate.go).
func runMigrateUp(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	ctxMigrator, err := ctxrepo.NewMigrator(db)
	if err != nil {
		return fmt.Errorf("build context store migrator: %w", err)
	}
	applied, err := ctxMigrator.Up(ctx, 0)
	if err != nil {
		return fmt.Errorf("migrate context store: %w", err)
	}
	for _, id := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "context store: applied %s\n", id)
	}

	eventsMigrator, err := convrepo.NewMigrator(db)
	if err != nil {
		return fmt.Errorf("build event store migrator: %w", err)
	}
	applied, err = eventsMigrator.Up(ctx, 0)
	if err != nil {
		return fmt.Errorf("migrate event store: %w", err)
	}
	for _, id := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "event store: applied %s\n", id)
	}

	return nil
}
