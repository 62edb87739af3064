package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/internal/agentmem"
	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/internal/toolkit"
	"github.com/conductorhq/conductor/pkg/models"
)

// ExecutorSystemPromptHeader is prefixed to the tool catalogue description
// handed to the executor; the full prompt is materialized at construction
// time from the registry's functions plus the current timestamp (spec
// §4.5: "a system prompt materialized from the tool catalogue and a
// current timestamp").
const ExecutorSystemPromptHeader = "You are the execution agent for an autonomous task runner. You carry out one plan step at a time using the tools below. Call exactly one tool per turn, or reply with plain text once the step is complete.\n\nCurrent time: %s\n\nAvailable tools:\n%s"

// Executor is the Executor Agent (spec §4.5): a Base Agent Loop specialized
// with a tool set, a catalogue-derived system prompt, and step-scoped
// execution/summarization/reporting operations.
type Executor struct {
	memory   *agentmem.Memory
	provider llmgw.Provider
	registry *toolkit.Registry
	invoker  *toolkit.Invoker
	emitter  Emitter
	model    string
	system   string

	tracer  *observability.Tracer
	metrics *observability.Metrics
	logger  *observability.Logger
}

// WithObservability attaches a tracer/metrics/logger trio used by every
// loop the Executor drives, returning the Executor for chaining.
func (e *Executor) WithObservability(tracer *observability.Tracer, metrics *observability.Metrics, logger *observability.Logger) *Executor {
	e.tracer = tracer
	e.metrics = metrics
	e.logger = logger
	return e
}

// NewExecutor builds an Executor over memory/provider/registry/invoker,
// materializing its system prompt from the registry's current function set
// and the construction-time timestamp.
func NewExecutor(memory *agentmem.Memory, provider llmgw.Provider, registry *toolkit.Registry, invoker *toolkit.Invoker, emitter Emitter, model string) *Executor {
	return &Executor{
		memory:   memory,
		provider: provider,
		registry: registry,
		invoker:  invoker,
		emitter:  emitter,
		model:    model,
		system:   buildExecutorSystemPrompt(registry),
	}
}

func buildExecutorSystemPrompt(registry *toolkit.Registry) string {
	var catalogue string
	for _, fn := range registry.Schemas() {
		catalogue += fmt.Sprintf("- %s: %s\n", fn.Name, fn.Description)
	}
	if catalogue == "" {
		catalogue = "(none configured)\n"
	}
	return fmt.Sprintf(ExecutorSystemPromptHeader, time.Now().UTC().Format(time.RFC3339), catalogue)
}

// stepOutcomeEmitter translates the base loop's terminal events (message,
// error, pause) into the step-scoped events the executor promises (spec
// §4.5), while tool_calling/tool_called pass straight through so callers
// still see every tool interaction within the step. The loop runs to
// completion synchronously before Outcome is read, so a single captured
// field (not a channel) is all that's needed.
type stepOutcomeEmitter struct {
	inner   Emitter
	outcome *models.AgentEvent
}

func (s *stepOutcomeEmitter) Emit(ctx context.Context, event models.AgentEvent) error {
	switch event.Type {
	case models.EventMessage, models.EventError, models.EventPause:
		s.outcome = &event
		return nil
	default:
		return s.inner.Emit(ctx, event)
	}
}

// ExecuteStep runs one plan step to completion (spec §4.5): marks it
// running, emits step_started, drives the base loop with a step-scoped
// prompt, then translates the loop's terminal event into step_completed,
// step_failed, or a re-emitted pause.
func (e *Executor) ExecuteStep(ctx context.Context, plan *models.Plan, step *models.Step, message string) error {
	step.Status = models.StatusRunning
	if err := e.emitter.Emit(ctx, models.AgentEvent{
		Type: models.EventStepStarted,
		Step: &models.StepPayload{PlanID: plan.ID, Step: *step},
	}); err != nil {
		return err
	}

	loopEmitter := &stepOutcomeEmitter{inner: e.emitter}
	loop := New(e.memory, e.provider, e.registry, e.invoker, loopEmitter, Config{
		Model:  e.model,
		System: e.system,
	}).WithObservability(e.tracer, e.metrics, e.logger)

	prompt := fmt.Sprintf("you are executing step %s of goal %s; message %s", step.ID, plan.Goal, message)
	runErr := loop.RunWithMessage(ctx, prompt)

	if loopEmitter.outcome == nil {
		// The loop returned without reaching message/error/pause: this only
		// happens when RunWithMessage itself failed before emitting anything.
		if runErr != nil {
			step.Status = models.StatusFailed
			step.Error = runErr.Error()
			return e.emitter.Emit(ctx, models.AgentEvent{
				Type: models.EventStepFailed,
				Step: &models.StepPayload{PlanID: plan.ID, Step: *step},
			})
		}
		return nil
	}
	return e.resolveStepOutcome(ctx, plan, step, *loopEmitter.outcome)
}

func (e *Executor) resolveStepOutcome(ctx context.Context, plan *models.Plan, step *models.Step, event models.AgentEvent) error {
	switch event.Type {
	case models.EventMessage:
		step.Result = event.Message.Content
		step.Status = models.StatusCompleted
		return e.emitter.Emit(ctx, models.AgentEvent{
			Type: models.EventStepCompleted,
			Step: &models.StepPayload{PlanID: plan.ID, Step: *step},
		})
	case models.EventError:
		step.Status = models.StatusFailed
		if event.Error != nil {
			step.Error = event.Error.Message
		}
		return e.emitter.Emit(ctx, models.AgentEvent{
			Type: models.EventStepFailed,
			Step: &models.StepPayload{PlanID: plan.ID, Step: *step},
		})
	case models.EventPause:
		step.Status = models.StatusPaused
		return e.emitter.Emit(ctx, event)
	}
	return nil
}

// SummarizeSteps asks the LLM (no tools) for a textual summary of the
// execution memory so far, then clears it and reseeds it with the system
// prompt plus a synthetic "previous steps" message (spec §4.5): this
// bounds execution memory across many steps regardless of how long the
// plan runs.
func (e *Executor) SummarizeSteps(ctx context.Context) (string, error) {
	emptyRegistry := toolkit.NewRegistry()
	invoker := toolkit.NewInvoker(emptyRegistry, toolkit.DefaultInvokerConfig())
	var summary string
	captured := &captureMessageEmitter{}
	loop := New(e.memory, e.provider, emptyRegistry, invoker, captured, Config{
		Model:  e.model,
		System: "Summarize the work done so far in a few sentences, for your own future reference. Do not call any tools.",
	}).WithObservability(e.tracer, e.metrics, e.logger)
	if err := loop.RunWithMessage(ctx, "Summarize the steps executed so far."); err != nil {
		return "", err
	}
	if captured.content != nil {
		summary = *captured.content
	}

	e.memory.Clear()
	if err := e.memory.Append(models.Message{Role: models.RoleSystem, Content: e.system}); err != nil {
		return "", err
	}
	if err := e.memory.Append(models.Message{
		Role:    models.RoleSystem,
		Content: "previous steps: " + summary,
	}); err != nil {
		return "", err
	}
	return summary, nil
}

// captureMessageEmitter records the first message event's content and
// discards everything else; used by SummarizeSteps, which runs a
// tool-free loop purely to obtain a text summary.
type captureMessageEmitter struct {
	content *string
}

func (c *captureMessageEmitter) Emit(ctx context.Context, event models.AgentEvent) error {
	if event.Type == models.EventMessage && c.content == nil {
		content := event.Message.Content
		c.content = &content
	}
	return nil
}

// ReportResult emits the executor's final report event (spec §4.5).
func (e *Executor) ReportResult(ctx context.Context, content string) error {
	return e.emitter.Emit(ctx, models.AgentEvent{
		Type:   models.EventReport,
		Report: &models.ReportPayload{Content: content},
	})
}
