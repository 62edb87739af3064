// Package convrepo is the Conversation Repository: the durable append-only
// log of ConversationEvents for each agent, with a unique constraint on
// (agent_id, sequence) so a sequence collision (two writers racing past the
// broadcaster's lock, or a retried insert) surfaces as an error rather than
// silently overwriting history.
package convrepo

import (
	"context"
	"errors"

	"github.com/conductorhq/conductor/pkg/models"
)

// ErrSequenceConflict is returned when an insert would violate the
// (agent_id, sequence) uniqueness constraint.
var ErrSequenceConflict = errors.New("convrepo: sequence conflict")

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("convrepo: not found")

// Repository is the durable conversation event log. It satisfies
// internal/broadcaster's EventStore interface, so a Repository can be
// handed directly to broadcaster.New.
type Repository interface {
	NextSequence(ctx context.Context, agentID string) (uint64, error)
	Append(ctx context.Context, event models.ConversationEvent) error
	Replay(ctx context.Context, agentID string, fromSequence uint64) ([]models.ConversationEvent, error)

	// Get fetches a single event by id.
	Get(ctx context.Context, id string) (models.ConversationEvent, error)
	// Latest returns the highest sequence number recorded for agentID, or 0
	// if none have been recorded yet.
	Latest(ctx context.Context, agentID string) (uint64, error)
}
