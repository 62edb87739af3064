package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/config"
	"github.com/conductorhq/conductor/internal/convrepo"
	"github.com/conductorhq/conductor/internal/ctxrepo"
	"github.com/conductorhq/conductor/internal/web"
	"github.com/conductorhq/conductor/pkg/models"
)

func runInspectAgent(cmd *cobra.Command, configPath, agentID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	contextRepo, err := ctxrepo.NewPostgresRepository(cfg.Database.ContextRepoConfig())
	if err != nil {
		return fmt.Errorf("open context repository: %w", err)
	}
	eventsRepo, err := convrepo.NewPostgresRepository(cfg.Database.EventsRepoConfig())
	if err != nil {
		return fmt.Errorf("open events repository: %w", err)
	}

	ctx := cmd.Context()

	ac, err := contextRepo.Get(ctx, agentID)
	if err != nil {
		return fmt.Errorf("load agent context: %w", err)
	}
	events, err := eventsRepo.Replay(ctx, agentID, 0)
	if err != nil {
		return fmt.Errorf("replay events: %w", err)
	}
	stats := web.DeriveRunStats(agentID, events)

	out, err := json.MarshalIndent(struct {
		Context *models.AgentContext `json:"context"`
		Stats   models.RunStats      `json:"stats"`
	}{Context: ac, Stats: stats}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
