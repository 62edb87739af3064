package broadcaster

import (
	"context"

	"github.com/conductorhq/conductor/pkg/models"
)

// EventStore is the durability boundary the broadcaster writes through
// before fanning events out to live subscribers (spec §4.7 step 2). The
// concrete implementation lives in the conversation repository package;
// this interface keeps the broadcaster free of a direct dependency on it.
type EventStore interface {
	// NextSequence returns the next gap-free sequence number for agentID.
	// Callers must hold the agent's broadcaster lock while calling this and
	// persisting the resulting event.
	NextSequence(ctx context.Context, agentID string) (uint64, error)
	// Append durably persists a sequenced event.
	Append(ctx context.Context, event models.ConversationEvent) error
	// Replay returns persisted events for agentID with Sequence >= fromSequence,
	// ordered oldest first.
	Replay(ctx context.Context, agentID string, fromSequence uint64) ([]models.ConversationEvent, error)
}
