// Package llmgw is the LLM Gateway: the abstract "ask" contract (spec §6)
// over pluggable providers, grounded on the teacher's LLMProvider interface
// (internal/agent/provider_types.go) but collapsed from a streaming
// Complete()-returns-a-channel shape to the spec's single non-streaming
// primitive, since the core never imposes its own timeout or token-by-token
// presentation on the transport (spec §5: "LLM calls: governed by the
// underlying transport").
package llmgw

import (
	"context"

	"github.com/conductorhq/conductor/pkg/models"
)

// AskRequest is the input to a single LLM call.
type AskRequest struct {
	Model          string
	System         string
	Messages       []models.Message
	Tools          []ToolSchema
	ResponseFormat string // e.g. "json", "" for free text
	Temperature    float64
	MaxTokens      int
}

// ToolSchema is what the gateway hands a provider for tool-use: enough to
// build a provider-native function-calling declaration.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-schema-shaped
}

// AssistantMessage is a provider's normalized response (spec §6): content
// may be empty, and zero or more tool calls may be present. The base agent
// loop (spec §4.3) is responsible for keeping at most one.
type AssistantMessage struct {
	Content      string
	ToolCalls    []models.ToolCall
	InputTokens  int
	OutputTokens int
}

// Provider is a concrete LLM backend satisfying the ask contract.
type Provider interface {
	Ask(ctx context.Context, req AskRequest) (AssistantMessage, error)
	Name() string
	SupportsTools() bool
}
