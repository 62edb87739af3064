// Package ctxrepo is the Agent Context Repository: CRUD storage for
// AgentContext records (the durable row tracking an agent's flow state,
// sandbox binding, and last-seen message), grounded on
// internal/sessions/store.go's Session CRUD + lookup shape.
package ctxrepo

import (
	"context"
	"errors"

	"github.com/conductorhq/conductor/pkg/models"
)

// ErrNotFound is returned when no AgentContext matches the given id.
var ErrNotFound = errors.New("ctxrepo: not found")

// ErrConflict is returned by Create when an AgentContext with the same
// agent id already exists.
var ErrConflict = errors.New("ctxrepo: agent context already exists")

// Repository stores and retrieves AgentContext records.
type Repository interface {
	Create(ctx context.Context, ac *models.AgentContext) error
	Get(ctx context.Context, agentID string) (*models.AgentContext, error)
	Update(ctx context.Context, ac *models.AgentContext) error
	Delete(ctx context.Context, agentID string) error
	List(ctx context.Context, opts ListOptions) ([]*models.AgentContext, error)
}

// ListOptions filters and paginates List.
type ListOptions struct {
	UserID string
	Status models.AgentStatus
	Limit  int
	Offset int
}
