package models

import "time"

// AgentStatus is the lifecycle status of an AgentContext (§3).
type AgentStatus string

const (
	AgentStatusCreated   AgentStatus = "created"
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusPaused    AgentStatus = "paused"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusFailed    AgentStatus = "failed"
	AgentStatusDeleted   AgentStatus = "deleted"
)

// Agent is a configured conversation participant: stable id, owning user,
// two independent memories, and LLM configuration overrides (§3).
type Agent struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Model           string         `json:"model"`
	Provider        string         `json:"provider"`
	Temperature     float64        `json:"temperature"`
	MaxTokens       int            `json:"max_tokens"`
	Environment     map[string]any `json:"environment,omitempty"`
	PlannerMemory   Memory         `json:"planner_memory"`
	ExecutionMemory Memory         `json:"execution_memory"`
	CreatedAt       time.Time      `json:"created_at"`
}

// AgentContext is the snapshot-able identity, status, and sandbox binding
// for one Agent (§3, §4.10).
type AgentContext struct {
	AgentID         string         `json:"agent_id"`
	Agent           Agent          `json:"agent"`
	FlowType        string         `json:"flow_type"`
	SandboxID       string         `json:"sandbox_id,omitempty"`
	Status          AgentStatus    `json:"status"`
	LastMessage     string         `json:"last_message,omitempty"`
	LastMessageAt   time.Time      `json:"last_message_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ConversationHistory is the durable header record for an agent's event log
// (§4.9 save_history / get_history).
type ConversationHistory struct {
	AgentID   string    `json:"agent_id"`
	UserID    string    `json:"user_id"`
	FlowType  string    `json:"flow_type"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistorySummary is the list_histories projection (no events).
type HistorySummary struct {
	AgentID   string    `json:"agent_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	FlowType  string    `json:"flow_type"`
	UpdatedAt time.Time `json:"updated_at"`
}
