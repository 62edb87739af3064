// Package agentloop implements the Base Agent Loop, Planner Agent, and
// Executor Agent (spec §4.3-§4.5): the ask-LLM -> dispatch-tool ->
// record-result iteration that produces the AgentEvent stream for one run.
package agentloop

import (
	"context"
	"time"

	"github.com/conductorhq/conductor/internal/broadcaster"
	"github.com/conductorhq/conductor/pkg/models"
)

// Emitter is the loop's only way of producing events; it decouples the loop
// from the broadcaster's sequencing/persistence concerns (spec §4.3: "the
// loop is an asynchronous event producer"). Grounded on
// internal/agent/event_emitter.go's EventEmitter/EventSink split, with the
// emitter here wrapping a Broadcaster instead of a plugin/channel sink
// since sequencing has already moved into internal/broadcaster.
type Emitter interface {
	Emit(ctx context.Context, event models.AgentEvent) error
}

// BroadcasterEmitter adapts a broadcaster.Broadcaster into an Emitter bound
// to a single agent id.
type BroadcasterEmitter struct {
	b       *broadcaster.Broadcaster
	agentID string
}

// NewBroadcasterEmitter builds an Emitter that publishes through b for agentID.
func NewBroadcasterEmitter(b *broadcaster.Broadcaster, agentID string) *BroadcasterEmitter {
	return &BroadcasterEmitter{b: b, agentID: agentID}
}

func (e *BroadcasterEmitter) Emit(ctx context.Context, event models.AgentEvent) error {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	_, err := e.b.Publish(ctx, e.agentID, models.ConversationEvent{
		Type:      event.Type,
		Payload:   event,
		CreatedAt: event.Time,
	})
	return err
}
