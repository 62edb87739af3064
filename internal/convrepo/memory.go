package convrepo

import (
	"context"
	"sync"

	"github.com/conductorhq/conductor/pkg/models"
)

// MemoryRepository is an in-process Repository, grounded on
// internal/sessions/memory.go's defensive-copy-on-read in-memory store
// idiom (reused here for the per-agent event slice).
type MemoryRepository struct {
	mu     sync.Mutex
	seqs   map[string]uint64
	events map[string][]models.ConversationEvent
	byID   map[string]models.ConversationEvent
}

// NewMemoryRepository builds an empty in-memory Repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		seqs:   make(map[string]uint64),
		events: make(map[string][]models.ConversationEvent),
		byID:   make(map[string]models.ConversationEvent),
	}
}

func (r *MemoryRepository) NextSequence(_ context.Context, agentID string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs[agentID]++
	return r.seqs[agentID], nil
}

func (r *MemoryRepository) Append(_ context.Context, event models.ConversationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events[event.AgentID] {
		if e.Sequence == event.Sequence {
			return ErrSequenceConflict
		}
	}
	r.events[event.AgentID] = append(r.events[event.AgentID], event)
	r.byID[event.ID] = event
	return nil
}

func (r *MemoryRepository) Replay(_ context.Context, agentID string, fromSequence uint64) ([]models.ConversationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.events[agentID]
	out := make([]models.ConversationEvent, 0, len(all))
	for _, e := range all {
		if e.Sequence >= fromSequence {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (models.ConversationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return models.ConversationEvent{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepository) Latest(_ context.Context, agentID string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seqs[agentID], nil
}
