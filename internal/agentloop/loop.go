package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/conductorhq/conductor/internal/agentmem"
	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/internal/toolkit"
	"github.com/conductorhq/conductor/pkg/models"
)

// Config configures one Loop run (spec §4.3).
type Config struct {
	Model          string
	System         string
	Temperature    float64
	MaxTokens      int
	ResponseFormat string
	// MaxIterations bounds LLM round trips before the loop gives up with
	// ErrIterationLimit. Default 30 per spec §4.3.
	MaxIterations int
}

// DefaultConfig mirrors the spec's stated default iteration bound.
func DefaultConfig() Config {
	return Config{MaxIterations: 30}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	return cfg
}

// Loop is the Base Agent Loop (spec §4.3): it interleaves a single LLM
// call with at most one tool dispatch per iteration, appending every turn
// to memory and emitting events for each transition.
type Loop struct {
	memory   *agentmem.Memory
	provider llmgw.Provider
	registry *toolkit.Registry
	invoker  *toolkit.Invoker
	emitter  Emitter
	config   Config

	tracer  *observability.Tracer
	metrics *observability.Metrics
	logger  *observability.Logger
}

// New builds a Loop over the given memory, provider, tool registry/invoker,
// and emitter.
func New(memory *agentmem.Memory, provider llmgw.Provider, registry *toolkit.Registry, invoker *toolkit.Invoker, emitter Emitter, config Config) *Loop {
	return &Loop{
		memory:   memory,
		provider: provider,
		registry: registry,
		invoker:  invoker,
		emitter:  emitter,
		config:   sanitizeConfig(config),
	}
}

// WithObservability attaches a tracer/metrics/logger trio, returning the
// Loop for chaining. Any of the three may be nil; ask() checks each
// independently before using it.
func (l *Loop) WithObservability(tracer *observability.Tracer, metrics *observability.Metrics, logger *observability.Logger) *Loop {
	l.tracer = tracer
	l.metrics = metrics
	l.logger = logger
	return l
}

func (l *Loop) toolSchemas() ([]llmgw.ToolSchema, error) {
	fns := l.registry.Schemas()
	out := make([]llmgw.ToolSchema, 0, len(fns))
	for _, fn := range fns {
		params, err := fn.Parameters()
		if err != nil {
			return nil, err
		}
		out = append(out, llmgw.ToolSchema{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  params,
		})
	}
	return out, nil
}

// RunWithMessage appends the user's request to memory and drives the loop
// to completion: steps 1-4 of spec §4.3. It returns nil when the loop
// terminates normally (a terminal message was emitted, or a sentinel paused
// it) and ErrIterationLimit if the bound is exhausted first.
func (l *Loop) RunWithMessage(ctx context.Context, request string) error {
	if err := l.memory.Append(models.Message{Role: models.RoleUser, Content: request}); err != nil {
		return fmt.Errorf("agentloop: append user message: %w", err)
	}
	return l.drive(ctx)
}

// Continue drives the loop without adding a new user turn — used by the
// executor to resume after appending a tool message, or by the flow
// controller resuming a paused run on its own terms.
func (l *Loop) Continue(ctx context.Context) error {
	return l.drive(ctx)
}

func (l *Loop) drive(ctx context.Context) error {
	for iter := 0; iter < l.config.MaxIterations; iter++ {
		assistant, err := l.ask(ctx)
		if err != nil {
			return &RunError{Type: ErrorTypeLLM, Message: "llm call failed", Cause: err}
		}

		if len(assistant.ToolCalls) == 0 {
			return l.emitter.Emit(ctx, models.AgentEvent{
				Type:    models.EventMessage,
				Message: &models.MessagePayload{Content: assistant.Content},
			})
		}

		call := assistant.ToolCalls[0]
		paused, err := l.dispatchTool(ctx, call)
		if err != nil {
			return err
		}
		if paused {
			return nil
		}
	}

	if err := l.emitter.Emit(ctx, models.AgentEvent{
		Type:  models.EventError,
		Error: &models.ErrorPayload{Message: "iteration limit", Code: string(ErrorTypeIterationLimit)},
	}); err != nil {
		return err
	}
	return ErrIterationLimit
}

// ask calls the LLM with the current memory and appends the normalized
// assistant message, retaining at most one tool call (spec §4.3 step 1).
func (l *Loop) ask(ctx context.Context) (models.Message, error) {
	schemas, err := l.toolSchemas()
	if err != nil {
		return models.Message{}, err
	}

	resp, err := l.askProvider(ctx, schemas)
	if err != nil {
		return models.Message{}, err
	}

	msg := models.Message{Role: models.RoleAssistant, Content: resp.Content}
	if len(resp.ToolCalls) > 0 {
		msg.ToolCalls = resp.ToolCalls[:1]
	}
	if err := l.memory.Append(msg); err != nil {
		return models.Message{}, fmt.Errorf("agentloop: append assistant message: %w", err)
	}
	return msg, nil
}

// askProvider wraps the provider call with tracing, metrics, and logging
// when a Loop has been built with WithObservability; with none attached it
// degrades to a bare provider.Ask.
func (l *Loop) askProvider(ctx context.Context, schemas []llmgw.ToolSchema) (llmgw.AssistantMessage, error) {
	req := llmgw.AskRequest{
		Model:          l.config.Model,
		System:         l.config.System,
		Messages:       l.memory.Messages(),
		Tools:          schemas,
		ResponseFormat: l.config.ResponseFormat,
		Temperature:    l.config.Temperature,
		MaxTokens:      l.config.MaxTokens,
	}

	if l.tracer == nil && l.metrics == nil && l.logger == nil {
		return l.provider.Ask(ctx, req)
	}

	start := time.Now()
	var span trace.Span
	if l.tracer != nil {
		ctx, span = l.tracer.TraceLLMRequest(ctx, l.provider.Name(), l.config.Model)
		defer span.End()
	}

	resp, err := l.provider.Ask(ctx, req)
	duration := time.Since(start).Seconds()

	if err != nil {
		if l.metrics != nil {
			l.metrics.RecordLLMRequest(l.provider.Name(), l.config.Model, "error", duration, 0, 0)
			l.metrics.RecordError("llm", "ask_failed")
		}
		if l.tracer != nil && span != nil {
			l.tracer.RecordError(span, err)
		}
		if l.logger != nil {
			l.logger.Error(ctx, "llm request failed", "error", err, "provider", l.provider.Name(), "model", l.config.Model)
		}
		return llmgw.AssistantMessage{}, err
	}

	if l.metrics != nil {
		l.metrics.RecordLLMRequest(l.provider.Name(), l.config.Model, "success", duration, resp.InputTokens, resp.OutputTokens)
	}
	if l.logger != nil {
		l.logger.Info(ctx, "llm request completed",
			"provider", l.provider.Name(),
			"model", l.config.Model,
			"duration_ms", duration*1000,
			"output_tokens", resp.OutputTokens,
		)
	}
	return resp, nil
}

// dispatchTool resolves and invokes the single retained tool call, appends
// the tool result to memory, and reports whether the loop should pause
// (spec §4.3 step 3).
func (l *Loop) dispatchTool(ctx context.Context, call models.ToolCall) (paused bool, err error) {
	args := map[string]any{}
	if len(call.Input) > 0 {
		_ = json.Unmarshal(call.Input, &args)
	}

	toolName, functionName := resolveToolName(l.registry, call.Name)
	if err := l.emitter.Emit(ctx, models.AgentEvent{
		Type: models.EventToolCalling,
		Tool: &models.ToolPayload{ToolName: toolName, FunctionName: functionName, Arguments: args},
	}); err != nil {
		return false, err
	}

	result, invokeErr := l.invoker.Invoke(ctx, call.Name, call.Input)

	var toolResult models.ToolResult
	if invokeErr != nil {
		toolResult = models.ToolResult{ToolCallID: call.ID, Content: invokeErr.Error(), IsError: true}
	} else {
		// Content carries the full serialized toolkit.ToolResult, not just its
		// Data payload, so a consuming LLM sees Success/Message/Data together.
		serialized, _ := json.Marshal(result)
		toolResult = models.ToolResult{ToolCallID: call.ID, Content: string(serialized), IsError: !result.Success}
	}

	if err := l.emitter.Emit(ctx, models.AgentEvent{
		Type: models.EventToolCalled,
		Tool: &models.ToolPayload{ToolName: toolName, FunctionName: functionName, Arguments: args, Result: &toolResult},
	}); err != nil {
		return false, err
	}

	if err := l.memory.Append(models.Message{
		Role:       models.RoleTool,
		Content:    toolResult.Content,
		ToolCallID: call.ID,
		Name:       functionName,
	}); err != nil {
		return false, fmt.Errorf("agentloop: append tool message: %w", err)
	}

	if toolkit.IsSentinel(call.Name) {
		if invokeErr == nil && result.Message != "" {
			if err := l.emitter.Emit(ctx, models.AgentEvent{
				Type:    models.EventMessage,
				Message: &models.MessagePayload{Content: result.Message},
			}); err != nil {
				return false, err
			}
		}
		reason := "clarification_requested"
		if call.Name == toolkit.SentinelDone {
			reason = "done"
		}
		if err := l.emitter.Emit(ctx, models.AgentEvent{
			Type:  models.EventPause,
			Pause: &models.PausePayload{Reason: reason},
		}); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// resolveToolName reports the owning tool's name and the function name for
// an event payload; if resolution fails (ToolNotFound is still possible
// after invocation was attempted) the function name alone is reported.
func resolveToolName(registry *toolkit.Registry, functionName string) (toolName, fn string) {
	if tool, ok := registry.Resolve(functionName); ok {
		return tool.Name(), functionName
	}
	return "", functionName
}
