package broadcaster

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/conductorhq/conductor/internal/convrepo"
	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/pkg/models"
)

func mkEvent(eventType models.AgentEventType) models.ConversationEvent {
	return models.ConversationEvent{
		Type:      eventType,
		Payload:   models.AgentEvent{Type: eventType, Time: time.Now()},
		CreatedAt: time.Now(),
	}
}

func TestPublishAssignsGapFreeSequence(t *testing.T) {
	b := New(convrepo.NewMemoryRepository(), nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		e, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage))
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		if e.Sequence != uint64(i) {
			t.Fatalf("expected sequence %d, got %d", i, e.Sequence)
		}
	}
}

func TestRingEvictsOldestBeyondCapacity(t *testing.T) {
	b := New(convrepo.NewMemoryRepository(), nil)
	ctx := context.Background()

	const k = 5
	st := b.stateFor("agent-1")
	st.mu.Lock()
	st.ring = newRing(k)
	st.mu.Unlock()

	for i := 0; i < k+1; i++ {
		if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	buffered := b.ReplayFrom("agent-1", 0)
	if len(buffered) != k {
		t.Fatalf("expected ring to hold exactly %d events, got %d", k, len(buffered))
	}
	if buffered[0].Sequence != 2 {
		t.Fatalf("expected oldest retained sequence 2 (sequence 1 evicted), got %d", buffered[0].Sequence)
	}
}

func TestSubscriberDeactivatedWhenQueueFull(t *testing.T) {
	b := New(convrepo.NewMemoryRepository(), nil)
	ctx := context.Background()

	sub := b.Subscribe("agent-1")

	for i := 0; i < subscriberQueueCapacity; i++ {
		if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if !sub.Active() {
		t.Fatalf("subscriber should still be active after exactly filling its queue")
	}

	if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage)); err != nil {
		t.Fatalf("publish overflow: %v", err)
	}
	if sub.Active() {
		t.Fatalf("subscriber should be deactivated once its queue overflows")
	}

	drained := 0
	for {
		select {
		case <-sub.queue:
			drained++
		default:
			if drained != subscriberQueueCapacity {
				t.Fatalf("expected exactly %d events delivered before overflow, got %d", subscriberQueueCapacity, drained)
			}
			return
		}
	}
}

func TestWithMetricsTracksSubscribersAndQueueDepth(t *testing.T) {
	metrics := observability.NewMetrics()
	b := New(convrepo.NewMemoryRepository(), nil).WithMetrics(metrics)
	ctx := context.Background()

	sub := b.Subscribe("agent-1")
	if got := testutil.ToFloat64(metrics.BroadcasterActiveStreams); got != 1 {
		t.Fatalf("expected 1 active stream after subscribe, got %v", got)
	}

	if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	b.Unsubscribe("agent-1", sub.ID)
	if got := testutil.ToFloat64(metrics.BroadcasterActiveStreams); got != 0 {
		t.Fatalf("expected 0 active streams after unsubscribe, got %v", got)
	}
}

func TestIndependentAgentsDoNotShareRingOrSubscribers(t *testing.T) {
	b := New(convrepo.NewMemoryRepository(), nil)
	ctx := context.Background()

	if _, err := b.Publish(ctx, "agent-a", mkEvent(models.EventMessage)); err != nil {
		t.Fatalf("publish agent-a: %v", err)
	}
	if events := b.ReplayFrom("agent-b", 0); len(events) != 0 {
		t.Fatalf("agent-b's ring should be empty, got %d events", len(events))
	}
}
