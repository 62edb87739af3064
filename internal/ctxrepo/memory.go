package ctxrepo

import (
	"context"
	"sync"

	"github.com/conductorhq/conductor/pkg/models"
)

// MemoryRepository is an in-process Repository, grounded on
// internal/sessions/memory.go's defensive-copy-on-read idiom.
type MemoryRepository struct {
	mu    sync.Mutex
	byID  map[string]models.AgentContext
}

// NewMemoryRepository builds an empty in-memory Repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]models.AgentContext)}
}

func (r *MemoryRepository) Create(_ context.Context, ac *models.AgentContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[ac.AgentID]; exists {
		return ErrConflict
	}
	r.byID[ac.AgentID] = *ac
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, agentID string) (*models.AgentContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac, ok := r.byID[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := ac
	return &copied, nil
}

func (r *MemoryRepository) Update(_ context.Context, ac *models.AgentContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ac.AgentID]; !ok {
		return ErrNotFound
	}
	r.byID[ac.AgentID] = *ac
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[agentID]; !ok {
		return ErrNotFound
	}
	delete(r.byID, agentID)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, opts ListOptions) ([]*models.AgentContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.AgentContext
	for _, ac := range r.byID {
		if opts.UserID != "" && ac.Agent.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && ac.Status != opts.Status {
			continue
		}
		copied := ac
		out = append(out, &copied)
	}

	if opts.Offset > 0 && opts.Offset < len(out) {
		out = out[opts.Offset:]
	} else if opts.Offset >= len(out) {
		out = nil
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}
