package broadcaster

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/internal/agentlock"
	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/pkg/models"
)

// RingSize is the default number of events buffered per agent in memory.
const RingSize = 1000

type agentState struct {
	mu          sync.Mutex
	ring        *ring
	subscribers map[string]*Subscriber
}

// Broadcaster assigns sequence numbers, persists, and fans out agent events
// to live subscribers. One Broadcaster serves every agent; per-agent state
// never shares a lock with another agent's (spec §4.7, §9).
type Broadcaster struct {
	store   EventStore
	locks   *agentlock.Locker
	metrics *observability.Metrics

	mu     sync.Mutex
	agents map[string]*agentState
}

// New builds a Broadcaster backed by store, using locks to serialize
// sequence assignment per agent.
func New(store EventStore, locks *agentlock.Locker) *Broadcaster {
	if locks == nil {
		locks = agentlock.New(agentlock.DefaultLockTimeout)
	}
	return &Broadcaster{store: store, locks: locks, agents: make(map[string]*agentState)}
}

// WithMetrics attaches a Metrics recorder used to report subscriber counts
// and queue depth, returning the Broadcaster for chaining.
func (b *Broadcaster) WithMetrics(metrics *observability.Metrics) *Broadcaster {
	b.metrics = metrics
	return b
}

func (b *Broadcaster) stateFor(agentID string) *agentState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.agents[agentID]
	if !ok {
		st = &agentState{ring: newRing(RingSize), subscribers: make(map[string]*Subscriber)}
		b.agents[agentID] = st
	}
	return st
}

// Publish assigns the next sequence number to event, persists it, appends it
// to the in-memory ring, and fans it out to active subscribers. It
// implements spec §4.7's four-step broadcast procedure.
func (b *Broadcaster) Publish(ctx context.Context, agentID string, event models.ConversationEvent) (models.ConversationEvent, error) {
	if err := b.locks.LockContext(ctx, agentID); err != nil {
		return models.ConversationEvent{}, fmt.Errorf("broadcaster: acquire lock: %w", err)
	}
	defer b.locks.Unlock(agentID)

	seq, err := b.store.NextSequence(ctx, agentID)
	if err != nil {
		return models.ConversationEvent{}, fmt.Errorf("broadcaster: next sequence: %w", err)
	}
	event.AgentID = agentID
	event.Sequence = seq
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if err := b.store.Append(ctx, event); err != nil {
		return models.ConversationEvent{}, fmt.Errorf("broadcaster: append: %w", err)
	}

	st := b.stateFor(agentID)
	st.mu.Lock()
	st.ring.push(event)
	subs := make([]*Subscriber, 0, len(st.subscribers))
	for _, s := range st.subscribers {
		subs = append(subs, s)
	}
	st.mu.Unlock()

	for _, s := range subs {
		if !s.Active() {
			continue
		}
		if s.enqueue(event) {
			s.touch()
			if b.metrics != nil {
				b.metrics.SetBroadcasterQueueDepth(agentID, len(s.queue))
			}
		} else {
			b.removeSubscriber(agentID, s.ID)
		}
	}

	return event, nil
}

// Subscribe registers a new live subscriber for agentID and returns it. The
// caller must eventually call Unsubscribe to release its queue.
func (b *Broadcaster) Subscribe(agentID string) *Subscriber {
	st := b.stateFor(agentID)
	s := newSubscriber(agentID)
	st.mu.Lock()
	st.subscribers[s.ID] = s
	st.mu.Unlock()
	if b.metrics != nil {
		b.metrics.SubscriberOpened()
	}
	return s
}

// Unsubscribe removes a subscriber from the fan-out set.
func (b *Broadcaster) Unsubscribe(agentID, subscriberID string) {
	b.removeSubscriber(agentID, subscriberID)
}

func (b *Broadcaster) removeSubscriber(agentID, subscriberID string) {
	st := b.stateFor(agentID)
	st.mu.Lock()
	_, existed := st.subscribers[subscriberID]
	delete(st.subscribers, subscriberID)
	st.mu.Unlock()
	if existed && b.metrics != nil {
		b.metrics.SubscriberClosed()
	}
}

// ReplayFrom returns buffered events with Sequence >= fromSequence from the
// in-memory ring only (no store round trip). Used when the caller already
// knows the ring covers the requested range.
func (b *Broadcaster) ReplayFrom(agentID string, fromSequence uint64) []models.ConversationEvent {
	st := b.stateFor(agentID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ring.since(fromSequence)
}
