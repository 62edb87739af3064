package ctxrepo

import (
	"context"
	"testing"
	"time"

	"github.com/conductorhq/conductor/pkg/models"
)

func TestMemoryRepositoryCreateGetUpdateDelete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	ac := &models.AgentContext{
		AgentID:   "agent-1",
		Agent:     models.Agent{ID: "agent-1", UserID: "user-1"},
		FlowType:  "research",
		Status:    models.AgentStatusCreated,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := repo.Create(ctx, ac); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, ac); err != ErrConflict {
		t.Fatalf("expected ErrConflict on duplicate create, got %v", err)
	}

	got, err := repo.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.AgentStatusCreated {
		t.Fatalf("expected created status, got %s", got.Status)
	}

	got.Status = models.AgentStatusRunning
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	after, err := repo.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if after.Status != models.AgentStatusRunning {
		t.Fatalf("expected running status after update, got %s", after.Status)
	}

	if err := repo.Delete(ctx, "agent-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "agent-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryRepositoryListFiltersByUserAndStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	seed := []*models.AgentContext{
		{AgentID: "a1", Agent: models.Agent{UserID: "u1"}, Status: models.AgentStatusRunning},
		{AgentID: "a2", Agent: models.Agent{UserID: "u1"}, Status: models.AgentStatusCompleted},
		{AgentID: "a3", Agent: models.Agent{UserID: "u2"}, Status: models.AgentStatusRunning},
	}
	for _, ac := range seed {
		if err := repo.Create(ctx, ac); err != nil {
			t.Fatalf("seed create: %v", err)
		}
	}

	out, err := repo.List(ctx, ListOptions{UserID: "u1", Status: models.AgentStatusRunning})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].AgentID != "a1" {
		t.Fatalf("expected exactly a1, got %+v", out)
	}
}
