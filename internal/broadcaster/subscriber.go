// Package broadcaster implements the per-agent Event Broadcaster (spec
// §4.7) and the replay-then-live Event Stream Service (spec §4.8).
package broadcaster

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/pkg/models"
)

// subscriberQueueCapacity is the bounded queue capacity fixed at
// construction time (spec §3, §5: "capacity 100").
const subscriberQueueCapacity = 100

// Subscriber is an ephemeral stream consumer with a bounded queue. Its
// queue is drained only by the Event Stream Service goroutine that created
// it; the broadcaster only ever writes to it (spec §4.7 step 3).
type Subscriber struct {
	ID      string
	AgentID string

	queue chan models.ConversationEvent

	mu           sync.Mutex
	active       bool
	lastActivity time.Time
}

func newSubscriber(agentID string) *Subscriber {
	return &Subscriber{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		queue:        make(chan models.ConversationEvent, subscriberQueueCapacity),
		active:       true,
		lastActivity: time.Now(),
	}
}

// Active reports whether the subscriber is still receiving events.
func (s *Subscriber) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Subscriber) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

func (s *Subscriber) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the last time this subscriber received or ticked.
func (s *Subscriber) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// enqueue performs a non-blocking send; on a full queue it deactivates the
// subscriber instead of blocking the producer (spec §4.7 step 3, §5).
func (s *Subscriber) enqueue(event models.ConversationEvent) bool {
	select {
	case s.queue <- event:
		return true
	default:
		s.deactivate()
		return false
	}
}
