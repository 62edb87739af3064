package agentloop

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/conductorhq/conductor/internal/agentmem"
	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/internal/toolkit"
	"github.com/conductorhq/conductor/pkg/models"
)

// PlannerSystemPrompt is the planner's fixed system message (spec §4.4).
const PlannerSystemPrompt = `You are the planning agent for an autonomous task runner. Given the user's
request and the current plan (if any), respond with a single JSON object and
nothing else:

{"message": "<short note to the user>", "goal": "<goal statement>", "title": "<short plan title>",
 "steps": [{"id": "<step id>", "description": "<what this step does>", "sub_flow_step": <int, optional>, "sub_flow_type": "<string, optional>"}]}

Return only the JSON object, no prose before or after it, no markdown code
fences.`

// plannerMaxIterations bounds the planner's base loop well below the
// executor's default (spec §4.4: "a small iteration bound (<= 3)").
const plannerMaxIterations = 3

// plannerResponseSchema is what the planner's post-processor expects to
// parse out of the assistant's (possibly fence-wrapped, possibly noisy)
// text.
type plannerResponseSchema struct {
	Message string              `json:"message"`
	Goal    string              `json:"goal"`
	Title   string              `json:"title"`
	Steps   []plannerStepSchema `json:"steps"`
}

type plannerStepSchema struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	SubFlowStep int    `json:"sub_flow_step,omitempty"`
	SubFlowType string `json:"sub_flow_type,omitempty"`
}

// Planner is the Planner Agent (spec §4.4): a Base Agent Loop specialized
// with no tools, a fixed system prompt, a 3-iteration bound, and a tolerant
// JSON-repair post-processor that turns the assistant's text into plan
// updates.
type Planner struct {
	loop    *Loop
	emitter Emitter
}

// NewPlanner builds a Planner over memory/provider/emitter. The tool
// registry is always empty — the planner never calls tools (spec §4.4:
// "no tools").
func NewPlanner(memory *agentmem.Memory, provider llmgw.Provider, emitter Emitter, model string) *Planner {
	registry := toolkit.NewRegistry()
	invoker := toolkit.NewInvoker(registry, toolkit.DefaultInvokerConfig())
	capturing := &capturingEmitter{inner: emitter}
	loop := New(memory, provider, registry, invoker, capturing, Config{
		Model:          model,
		System:         PlannerSystemPrompt,
		ResponseFormat: "json",
		MaxIterations:  plannerMaxIterations,
	})
	return &Planner{loop: loop, emitter: emitter}
}

// WithObservability attaches a tracer/metrics/logger trio used by the
// planner's underlying loop, returning the Planner for chaining.
func (p *Planner) WithObservability(tracer *observability.Tracer, metrics *observability.Metrics, logger *observability.Logger) *Planner {
	p.loop.WithObservability(tracer, metrics, logger)
	return p
}

// capturingEmitter lets the Planner intercept the base loop's terminal
// message event and run its own post-processing before deciding what (if
// anything) to forward to the real emitter.
type capturingEmitter struct {
	inner   Emitter
	pending *models.AgentEvent
}

func (c *capturingEmitter) Emit(ctx context.Context, event models.AgentEvent) error {
	if event.Type == models.EventMessage {
		c.pending = &event
		return nil
	}
	return c.inner.Emit(ctx, event)
}

// Plan asks the planner to produce or revise current (which may be nil for
// a first plan) from the user's request, returning the resulting plan.
// Re-invokes the base loop (bounded by plannerMaxIterations) when the
// assistant's text does not parse as the expected schema, per spec §4.4.
func (p *Planner) Plan(ctx context.Context, current *models.Plan, request string) (*models.Plan, error) {
	capturing := p.loop.emitter.(*capturingEmitter)
	capturing.pending = nil

	input := request
	for attempt := 0; attempt < plannerMaxIterations; attempt++ {
		if err := p.loop.RunWithMessage(ctx, input); err != nil {
			return nil, err
		}

		if capturing.pending == nil {
			// Sentinel pause or error already forwarded to the real emitter.
			return current, nil
		}

		text := capturing.pending.Message.Content
		capturing.pending = nil
		parsed, ok := parsePlannerResponse(text)
		if !ok {
			// Not the expected schema: feed the raw text back in as the next
			// turn's input, same run, bounded by the outer attempt loop.
			input = text
			continue
		}

		plan, eventType := applyPlannerResponse(current, parsed)
		if err := p.emitter.Emit(ctx, models.AgentEvent{Type: eventType, Plan: &models.PlanPayload{Plan: *plan}}); err != nil {
			return nil, err
		}
		if len(parsed.Steps) == 0 {
			if err := p.emitter.Emit(ctx, models.AgentEvent{Type: models.EventPause, Pause: &models.PausePayload{Reason: "plan_exhausted"}}); err != nil {
				return nil, err
			}
		}
		return plan, nil
	}

	return current, nil
}

// applyPlannerResponse builds the resulting Plan and reports whether this is
// a fresh plan_created or an incremental plan_updated.
func applyPlannerResponse(current *models.Plan, parsed plannerResponseSchema) (*models.Plan, models.AgentEventType) {
	steps := make([]models.Step, 0, len(parsed.Steps))
	for _, s := range parsed.Steps {
		steps = append(steps, models.Step{
			ID:          s.ID,
			Description: s.Description,
			Status:      models.StatusPending,
			SubFlowStep: s.SubFlowStep,
			SubFlowType: s.SubFlowType,
		})
	}

	if current == nil {
		return &models.Plan{
			Title:  parsed.Title,
			Goal:   parsed.Goal,
			Steps:  steps,
			Status: models.StatusRunning,
		}, models.EventPlanCreated
	}

	updated := *current
	updated.ApplyUpdate(steps)
	return &updated, models.EventPlanUpdated
}

// parsePlannerResponse applies the tolerant JSON-repair pass and unmarshals
// the result, reporting false when the text never yields the expected
// {message, goal, title, steps: [...]} shape.
func parsePlannerResponse(text string) (plannerResponseSchema, bool) {
	repaired := extractJSON(text)
	var parsed plannerResponseSchema
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return plannerResponseSchema{}, false
	}
	if parsed.Steps == nil {
		return plannerResponseSchema{}, false
	}
	return parsed, true
}

// extractJSON finds the first JSON object in a string, stripping markdown
// code fences first.
func extractJSON(input string) string {
	trimmed := strings.TrimSpace(input)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
