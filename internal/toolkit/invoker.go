package toolkit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/internal/retry"
)

// InvokerConfig controls retry and truncation behavior (spec §4.2).
type InvokerConfig struct {
	MaxRetries    int
	RetryInterval time.Duration
	// FieldSizeCap bounds any single string field in a ToolResult.Data
	// payload; overflow is truncated at a boundary and marked.
	FieldSizeCap int
	// TotalByteBudget bounds the aggregate size walked across all of
	// Data's nested strings, lists, and maps.
	TotalByteBudget int
}

// DefaultInvokerConfig mirrors the spec's stated defaults.
func DefaultInvokerConfig() InvokerConfig {
	return InvokerConfig{
		MaxRetries:      3,
		RetryInterval:   500 * time.Millisecond,
		FieldSizeCap:    4000,
		TotalByteBudget: 32000,
	}
}

// Invoker resolves function names to tools and invokes them with retry and
// result-size limiting (spec §4.2).
type Invoker struct {
	registry *Registry
	config   InvokerConfig
	metrics  *observability.Metrics
}

// NewInvoker builds an Invoker over a Registry.
func NewInvoker(registry *Registry, config InvokerConfig) *Invoker {
	return &Invoker{registry: registry, config: config}
}

// WithMetrics attaches a Metrics recorder, returning the Invoker for
// chaining. A nil Invoker metrics field (the zero value) skips recording
// rather than requiring every caller to wire one.
func (inv *Invoker) WithMetrics(metrics *observability.Metrics) *Invoker {
	inv.metrics = metrics
	return inv
}

// Invoke resolves functionName, calls it with linear backoff retries on a
// raised error (never on a successful-but-logically-failed ToolResult, since
// idempotency there is the tool's own responsibility), and post-processes
// the result through the size limiter.
func (inv *Invoker) Invoke(ctx context.Context, functionName string, arguments json.RawMessage) (ToolResult, error) {
	start := time.Now()
	agentID := observability.GetAgentID(ctx)

	tool, ok := inv.registry.Resolve(functionName)
	if !ok {
		inv.recordInvocation(agentID, functionName, "not_found", start)
		return ToolResult{}, &ErrToolNotFound{FunctionName: functionName}
	}

	cfg := retry.Linear(max(inv.config.MaxRetries, 1), inv.config.RetryInterval)
	var result ToolResult
	r := retry.WithAttemptNumber(ctx, cfg, func(attempt int) error {
		res, err := tool.Invoke(ctx, functionName, arguments)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if r.Err != nil {
		inv.recordInvocation(agentID, functionName, "error", start)
		return ToolResult{}, r.Err
	}

	inv.recordInvocation(agentID, functionName, "success", start)
	return inv.limitSize(result), nil
}

// recordInvocation emits a diagnostic event and, if a Metrics recorder is
// attached, a Prometheus observation for a completed Invoke call.
func (inv *Invoker) recordInvocation(agentID, functionName, outcome string, start time.Time) {
	durationMs := time.Since(start).Milliseconds()
	observability.EmitToolInvocation(&observability.ToolInvocationEvent{
		AgentID:      agentID,
		FunctionName: functionName,
		Outcome:      outcome,
		DurationMs:   durationMs,
	})
	if inv.metrics != nil {
		inv.metrics.RecordToolExecution(functionName, outcome, time.Since(start).Seconds())
	}
}

const truncationMarker = " [content truncated]"

// limitSize walks a ToolResult's Data payload with a shared byte budget,
// truncating oversized strings at a word boundary.
func (inv *Invoker) limitSize(result ToolResult) ToolResult {
	if inv.config.FieldSizeCap <= 0 {
		return result
	}
	budget := inv.config.TotalByteBudget
	if budget <= 0 {
		budget = 1 << 30
	}
	result.Message = inv.truncateField(result.Message, &budget)
	if result.Data != nil {
		result.Data = inv.walkValue(result.Data, &budget).(map[string]any)
	}
	return result
}

func (inv *Invoker) walkValue(v any, budget *int) any {
	switch val := v.(type) {
	case string:
		return inv.truncateField(val, budget)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = inv.walkValue(item, budget)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = inv.walkValue(item, budget)
		}
		return out
	default:
		return v
	}
}

func (inv *Invoker) truncateField(s string, budget *int) string {
	if s == "" {
		return s
	}
	cap := inv.config.FieldSizeCap
	if *budget < cap {
		cap = *budget
	}
	if len(s) <= cap {
		*budget -= len(s)
		return s
	}
	cut := cap
	if idx := strings.LastIndexAny(s[:cap], " .\n"); idx > cap/2 {
		cut = idx
	}
	truncated := s[:cut] + truncationMarker
	*budget -= len(truncated)
	return truncated
}
