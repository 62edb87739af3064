package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single turn in an agent's memory. Content is always a string;
// null or non-string provider content normalizes to "" on append.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on RoleTool messages, back-references a ToolCall.ID
	Name       string     `json:"name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`

	// IsHistoricalSummary marks a system-role message as compress()'s own
	// synthetic "[historical summary: ...]" fold marker rather than a real
	// system prompt, so LatestSystem can tell them apart instead of assuming
	// the most recent Role==RoleSystem message is the real one.
	IsHistoricalSummary bool `json:"is_historical_summary,omitempty"`
}

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// NormalizeContent turns a null or non-string provider content value into
// the empty string, and JSON-marshals anything else that isn't already a string.
func NormalizeContent(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
