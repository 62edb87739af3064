package flow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/conductorhq/conductor/internal/agentloop"
	"github.com/conductorhq/conductor/internal/agentmem"
	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/internal/toolkit"
	"github.com/conductorhq/conductor/pkg/models"
)

// queuedResponse is either a canned assistant message or a forced error,
// so tests can script a provider failure at an exact point in the flow.
type queuedResponse struct {
	msg llmgw.AssistantMessage
	err error
}

type queuedProvider struct {
	responses []queuedResponse
	call      int
}

func (p *queuedProvider) Name() string        { return "queued" }
func (p *queuedProvider) SupportsTools() bool { return true }
func (p *queuedProvider) Ask(ctx context.Context, req llmgw.AskRequest) (llmgw.AssistantMessage, error) {
	if p.call >= len(p.responses) {
		return llmgw.AssistantMessage{}, errors.New("queuedProvider: exhausted")
	}
	r := p.responses[p.call]
	p.call++
	if r.err != nil {
		return llmgw.AssistantMessage{}, r.err
	}
	return r.msg, nil
}

type recordingEmitter struct {
	events []models.AgentEvent
}

func (e *recordingEmitter) Emit(ctx context.Context, event models.AgentEvent) error {
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) types() []models.AgentEventType {
	out := make([]models.AgentEventType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

func msgResponse(content string) queuedResponse {
	return queuedResponse{msg: llmgw.AssistantMessage{Content: content}}
}

// A single-step plan that completes cleanly reaches REPORTING then
// COMPLETED/IDLE, always ending on a `done` event.
func TestHandleMessageSingleStepHappyPath(t *testing.T) {
	provider := &queuedProvider{responses: []queuedResponse{
		msgResponse(`{"message":"ok","goal":"ship it","title":"Ship","steps":[{"id":"s1","description":"write code"}]}`),
		msgResponse("wrote the code"),
		msgResponse(`{"message":"nothing left","goal":"ship it","title":"Ship","steps":[]}`),
		msgResponse("wrote the code and it works"),
	}}
	emitter := &recordingEmitter{}
	plannerMem := agentmem.New(models.CompressionConfig{})
	executorMem := agentmem.New(models.CompressionConfig{})
	planner := agentloop.NewPlanner(plannerMem, provider, emitter, "test-model")
	registry := toolkit.NewRegistry()
	invoker := toolkit.NewInvoker(registry, toolkit.DefaultInvokerConfig())
	executor := agentloop.NewExecutor(executorMem, provider, registry, invoker, emitter, "test-model")

	controller := New(planner, executor, plannerMem, executorMem, emitter)

	if err := controller.HandleMessage(context.Background(), "ship the feature"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if controller.State() != StateIdle {
		t.Fatalf("expected controller to return to idle, got %s", controller.State())
	}

	types := emitter.types()
	if len(types) == 0 || types[len(types)-1] != models.EventDone {
		t.Fatalf("expected done as the last event, got %v", types)
	}

	var sawStepCompleted, sawReport, sawPlanCompleted bool
	for _, ty := range types {
		switch ty {
		case models.EventStepCompleted:
			sawStepCompleted = true
		case models.EventReport:
			sawReport = true
		case models.EventPlanCompleted:
			sawPlanCompleted = true
		}
	}
	if !sawStepCompleted || !sawReport || !sawPlanCompleted {
		t.Fatalf("expected step_completed, report, and plan_completed among events, got %v", types)
	}
}

// A step whose execution hits a hard LLM failure still drives the flow
// through UPDATING/REPORTING to completion instead of getting stuck.
func TestHandleMessageStepFailureStillCompletes(t *testing.T) {
	registry := toolkit.NewRegistry()
	registry.Register(echoTool{})
	invoker := toolkit.NewInvoker(registry, toolkit.DefaultInvokerConfig())

	provider := &queuedProvider{responses: []queuedResponse{
		msgResponse(`{"message":"ok","goal":"ship it","title":"Ship","steps":[{"id":"s1","description":"run it"}]}`),
		{msg: llmgw.AssistantMessage{ToolCalls: []models.ToolCall{{ID: "c1", Name: "echo_say", Input: json.RawMessage(`{}`)}}}},
		{err: errors.New("provider unavailable")},
		msgResponse(`{"message":"done","goal":"ship it","title":"Ship","steps":[]}`),
		msgResponse("step 1 failed partway through"),
	}}
	emitter := &recordingEmitter{}
	plannerMem := agentmem.New(models.CompressionConfig{})
	executorMem := agentmem.New(models.CompressionConfig{})
	planner := agentloop.NewPlanner(plannerMem, provider, emitter, "test-model")
	executor := agentloop.NewExecutor(executorMem, provider, registry, invoker, emitter, "test-model")
	controller := New(planner, executor, plannerMem, executorMem, emitter)

	if err := controller.HandleMessage(context.Background(), "run the risky thing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawStepFailed bool
	for _, ty := range emitter.types() {
		if ty == models.EventStepFailed {
			sawStepFailed = true
		}
	}
	if !sawStepFailed {
		t.Fatalf("expected step_failed among events, got %v", emitter.types())
	}
	if controller.State() != StateIdle {
		t.Fatalf("expected controller to return to idle, got %s", controller.State())
	}
}

type echoTool struct{}

func (echoTool) Name() string { return "echo" }
func (echoTool) Functions() []toolkit.Function {
	return []toolkit.Function{{Name: "echo_say", Description: "echoes input"}}
}
func (echoTool) Invoke(ctx context.Context, functionName string, arguments json.RawMessage) (toolkit.ToolResult, error) {
	return toolkit.ToolResult{Success: true, Message: "echoed"}, nil
}

// An interrupt delivered before HandleMessage is called still takes effect
// at the first state boundary, rolling memory back and replanning with the
// interrupting message instead of the original one.
func TestHandleMessageHonorsPendingInterrupt(t *testing.T) {
	provider := &queuedProvider{responses: []queuedResponse{
		msgResponse(`{"message":"ok","goal":"new goal","title":"New","steps":[]}`),
	}}
	emitter := &recordingEmitter{}
	plannerMem := agentmem.New(models.CompressionConfig{})
	executorMem := agentmem.New(models.CompressionConfig{})
	_ = plannerMem.Append(models.Message{Role: models.RoleUser, Content: "stale turn"})
	planner := agentloop.NewPlanner(plannerMem, provider, emitter, "test-model")
	registry := toolkit.NewRegistry()
	invoker := toolkit.NewInvoker(registry, toolkit.DefaultInvokerConfig())
	executor := agentloop.NewExecutor(executorMem, provider, registry, invoker, emitter, "test-model")
	controller := New(planner, executor, plannerMem, executorMem, emitter)

	controller.Interrupt("actually do something else")
	if err := controller.HandleMessage(context.Background(), "original request"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if controller.State() != StateIdle {
		t.Fatalf("expected controller to return to idle, got %s", controller.State())
	}
	types := emitter.types()
	if len(types) == 0 || types[len(types)-1] != models.EventDone {
		t.Fatalf("expected done as the last event, got %v", types)
	}
}
