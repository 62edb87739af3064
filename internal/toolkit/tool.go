// Package toolkit implements the Tool Registry & Invoker (spec §4.2): a
// name-indexed dispatch table over tools, with retry, result-size limiting,
// and sentinel-function pause handling.
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Sentinel function names that trigger the base agent loop's pause state
// (spec §4.2, §4.3).
const (
	SentinelRequestClarification = "message_request_user_clarification"
	SentinelDone                 = "message_done"
)

// IsSentinel reports whether a function name is one of the pause sentinels.
func IsSentinel(functionName string) bool {
	return functionName == SentinelRequestClarification || functionName == SentinelDone
}

// ToolResult is the uniform result of invoking a tool function.
type ToolResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Function describes one invocable operation a Tool exposes. SchemaJSON is
// the raw JSON-schema document handed to LLM providers as the function's
// parameter descriptor; it is compiled lazily and cached, grounded on
// pkg/pluginsdk/validation.go's compileSchema idiom (plugin manifests store
// raw schema bytes and compile on first validation, not at registration).
type Function struct {
	Name        string
	Description string
	SchemaJSON  json.RawMessage
}

var schemaCache sync.Map

// CompiledSchema compiles (and caches) fn's SchemaJSON for validation.
func (fn Function) CompiledSchema() (*jsonschema.Schema, error) {
	if len(fn.SchemaJSON) == 0 {
		return nil, nil
	}
	key := fn.Name + ":" + string(fn.SchemaJSON)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString(fn.Name+".schema.json", string(fn.SchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("toolkit: compile schema for %s: %w", fn.Name, err)
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// Parameters unmarshals SchemaJSON into a generic map, the shape the LLM
// Gateway's ToolSchema.Parameters expects.
func (fn Function) Parameters() (map[string]any, error) {
	if len(fn.SchemaJSON) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(fn.SchemaJSON, &out); err != nil {
		return nil, fmt.Errorf("toolkit: decode schema for %s: %w", fn.Name, err)
	}
	return out, nil
}

// Tool exposes a stable name, a set of named functions, and an async
// invoke primitive (spec §4.2).
type Tool interface {
	Name() string
	Functions() []Function
	Invoke(ctx context.Context, functionName string, arguments json.RawMessage) (ToolResult, error)
}

// ErrToolNotFound is returned when a function name resolves to no tool.
type ErrToolNotFound struct {
	FunctionName string
}

func (e *ErrToolNotFound) Error() string {
	return "toolkit: tool not found: " + e.FunctionName
}
