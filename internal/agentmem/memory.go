// Package agentmem implements the per-agent Memory log and its token-aware
// compression policy (spec §3, §4.1). It is the Go-native reshaping of the
// teacher's internal/sessions compaction subsystem, generalized from a
// message-count/strategy-enum compactor to the spec's single deterministic
// CJK-aware compression procedure.
package agentmem

import (
	"errors"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/pkg/models"
)

// ErrMissingRole is returned by Append when a message has no role set.
var ErrMissingRole = errors.New("agentmem: message is missing a role")

// Memory is an ordered message log for one agent role (planner or
// executor). It is not safe for concurrent use by multiple goroutines; per
// §5 "Memory is mutated only from within that agent's run task."
type Memory struct {
	messages []models.Message
	config   models.CompressionConfig

	agentID string
	metrics *observability.Metrics
}

// New creates an empty Memory with the given compression configuration.
func New(config models.CompressionConfig) *Memory {
	return &Memory{config: config}
}

// WithObservability attaches the agent ID and Metrics recorder used to
// report compression folds, returning the Memory for chaining. Metrics may
// be nil, in which case fold events are still emitted on the diagnostic
// feed but no Prometheus observation is recorded.
func (m *Memory) WithObservability(agentID string, metrics *observability.Metrics) *Memory {
	m.agentID = agentID
	m.metrics = metrics
	return m
}

// Append normalizes and appends a single message. Fails only if
// the message has no role.
func (m *Memory) Append(msg models.Message) error {
	if msg.Role == "" {
		return ErrMissingRole
	}
	msg.Content = models.NormalizeContent(msg.Content)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if len(msg.ToolCalls) == 0 {
		msg.ToolCalls = nil
	}
	m.messages = append(m.messages, msg)

	if m.config.AutoOptimize && EstimateTokens(m.messages) > m.config.MaxTotalTokens {
		m.compress()
	}
	return nil
}

// AppendMany appends every message atomically from the caller's
// perspective: either all messages are appended, or (on the first
// structural error) none are.
func (m *Memory) AppendMany(msgs []models.Message) error {
	for _, msg := range msgs {
		if msg.Role == "" {
			return fmt.Errorf("agentmem: append_many: %w", ErrMissingRole)
		}
	}
	for _, msg := range msgs {
		// Append validated above; error here would be a logic bug.
		_ = m.Append(msg)
	}
	return nil
}

// Messages returns a defensive copy of the full ordered log.
func (m *Memory) Messages() []models.Message {
	out := make([]models.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of messages currently held.
func (m *Memory) Len() int { return len(m.messages) }

// LatestSystem returns the most recent real system message, if any.
// compress's own synthetic "[historical summary: ...]" fold message is also
// tagged RoleSystem but marked IsHistoricalSummary, so it is skipped here —
// otherwise a compressed memory would report its own fold marker as the
// system prompt instead of the instructions that actually produced it.
func (m *Memory) LatestSystem() (models.Message, bool) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == models.RoleSystem && !m.messages[i].IsHistoricalSummary {
			return m.messages[i], true
		}
	}
	return models.Message{}, false
}

// NonSystem returns every message whose role is not system, in order.
func (m *Memory) NonSystem() []models.Message {
	out := make([]models.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if msg.Role != models.RoleSystem {
			out = append(out, msg)
		}
	}
	return out
}

// WithLatestSystem returns the latest system message (if any) followed by
// every non-system message, in order — the shape used to build LLM prompts.
func (m *Memory) WithLatestSystem() []models.Message {
	out := make([]models.Message, 0, len(m.messages))
	if sys, ok := m.LatestSystem(); ok {
		out = append(out, sys)
	}
	return append(out, m.NonSystem()...)
}

// Rollback removes the trailing message if it is a dangling tool message
// (no following assistant turn — true by construction, since it is last)
// or a trailing user turn awaiting a response. At most one message is
// removed; otherwise this is a no-op.
func (m *Memory) Rollback() bool {
	n := len(m.messages)
	if n == 0 {
		return false
	}
	last := m.messages[n-1]
	if last.Role == models.RoleTool || last.Role == models.RoleUser {
		m.messages = m.messages[:n-1]
		return true
	}
	return false
}

// Snapshot returns a value-based, persistence-ready copy of the memory.
func (m *Memory) Snapshot() models.Snapshot {
	return models.Snapshot{Messages: m.Messages(), CreatedAt: time.Now()}
}

// Restore replaces the memory's contents with a snapshot's messages.
func (m *Memory) Restore(s models.Snapshot) {
	m.messages = make([]models.Message, len(s.Messages))
	copy(m.messages, s.Messages)
}

// Clear empties the memory entirely. Used when execution memory is
// summarized and reseeded (spec §4.5: "clears execution memory").
func (m *Memory) Clear() {
	m.messages = nil
}

// Config returns the memory's compression configuration.
func (m *Memory) Config() models.CompressionConfig { return m.config }
