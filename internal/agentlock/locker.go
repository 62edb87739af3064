// Package agentlock provides the per-agent striped lock used to serialize
// sequence assignment in the event broadcaster (spec §4.7, §5, §9: "a small
// striped lock map (agent_id → mutex)... do not share a global lock across
// agents"). Grounded on internal/sessions/write_lock.go's SessionLocker,
// adapted from a per-session write lock to a per-agent sequence lock.
package agentlock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when acquiring a lock times out.
var ErrLockTimeout = errors.New("agentlock: lock acquisition timeout")

// DefaultLockTimeout is used when no timeout is supplied.
const DefaultLockTimeout = 5 * time.Second

const lockPollInterval = 10 * time.Millisecond

type agentMutex struct {
	mu     sync.Mutex
	locked bool
}

// Locker provides per-agent mutual exclusion using a sync.Map so that
// sequence assignment for one agent never contends with another's.
type Locker struct {
	locks   sync.Map // map[string]*agentMutex
	timeout time.Duration
}

// New creates a Locker with the given default timeout.
func New(timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Locker{timeout: timeout}
}

func (l *Locker) getOrCreate(agentID string) *agentMutex {
	if m, ok := l.locks.Load(agentID); ok {
		return m.(*agentMutex)
	}
	actual, _ := l.locks.LoadOrStore(agentID, &agentMutex{})
	return actual.(*agentMutex)
}

// Lock blocks until the agent's lock is acquired or the default timeout
// elapses.
func (l *Locker) Lock(agentID string) error {
	return l.LockContext(context.Background(), agentID)
}

// LockContext acquires the lock, respecting context cancellation and the
// locker's configured timeout, whichever comes first.
func (l *Locker) LockContext(ctx context.Context, agentID string) error {
	m := l.getOrCreate(agentID)
	deadline := time.Now().Add(l.timeout)

	for {
		m.mu.Lock()
		if !m.locked {
			m.locked = true
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Unlock releases the agent's lock. Safe to call even if not held.
func (l *Locker) Unlock(agentID string) {
	if m, ok := l.locks.Load(agentID); ok {
		mu := m.(*agentMutex)
		mu.mu.Lock()
		mu.locked = false
		mu.mu.Unlock()
	}
}
