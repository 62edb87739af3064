package agentloop

import (
	"context"
	"testing"

	"github.com/conductorhq/conductor/internal/agentmem"
	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/pkg/models"
)

func newPlanner(t *testing.T, provider llmgw.Provider) (*Planner, *recordingEmitter) {
	t.Helper()
	emitter := &recordingEmitter{}
	mem := agentmem.New(models.CompressionConfig{})
	return NewPlanner(mem, provider, emitter, "test-model"), emitter
}

func TestPlannerEmitsPlanCreatedOnFreshPlan(t *testing.T) {
	provider := &scriptedProvider{responses: []llmgw.AssistantMessage{
		{Content: `{"message":"ok","goal":"ship it","title":"Ship","steps":[{"id":"s1","description":"write code"}]}`},
	}}
	planner, emitter := newPlanner(t, provider)

	plan, err := planner.Plan(context.Background(), nil, "ship the feature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan == nil || plan.Goal != "ship it" || len(plan.Steps) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if len(emitter.events) != 1 || emitter.events[0].Type != models.EventPlanCreated {
		t.Fatalf("expected a single plan_created event, got %+v", emitter.events)
	}
}

func TestPlannerToleratesFencedJSON(t *testing.T) {
	provider := &scriptedProvider{responses: []llmgw.AssistantMessage{
		{Content: "```json\n{\"message\":\"ok\",\"goal\":\"g\",\"title\":\"t\",\"steps\":[{\"id\":\"s1\",\"description\":\"d\"}]}\n```"},
	}}
	planner, emitter := newPlanner(t, provider)

	plan, err := planner.Plan(context.Background(), nil, "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan == nil || len(plan.Steps) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if emitter.events[0].Type != models.EventPlanCreated {
		t.Fatalf("expected plan_created, got %+v", emitter.events)
	}
}

func TestPlannerUpdateKeepsTerminalStepsAndReplacesRest(t *testing.T) {
	provider := &scriptedProvider{responses: []llmgw.AssistantMessage{
		{Content: `{"message":"ok","goal":"g","title":"t","steps":[{"id":"s2b","description":"redo"}]}`},
	}}
	planner, emitter := newPlanner(t, provider)

	current := &models.Plan{
		Goal: "g",
		Steps: []models.Step{
			{ID: "s1", Description: "done already", Status: models.StatusCompleted},
			{ID: "s2", Description: "was running", Status: models.StatusRunning},
		},
		Status: models.StatusRunning,
	}

	plan, err := planner.Plan(context.Background(), current, "replan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps (1 kept + 1 new), got %d: %+v", len(plan.Steps), plan.Steps)
	}
	if plan.Steps[0].ID != "s1" || plan.Steps[0].Status != models.StatusCompleted {
		t.Fatalf("expected first completed step preserved, got %+v", plan.Steps[0])
	}
	if plan.Steps[1].ID != "s2b" {
		t.Fatalf("expected replacement step s2b, got %+v", plan.Steps[1])
	}
	if emitter.events[0].Type != models.EventPlanUpdated {
		t.Fatalf("expected plan_updated, got %s", emitter.events[0].Type)
	}
}

func TestPlannerEmptyStepsPausesAsPlanExhausted(t *testing.T) {
	provider := &scriptedProvider{responses: []llmgw.AssistantMessage{
		{Content: `{"message":"all done","goal":"g","title":"t","steps":[]}`},
	}}
	planner, emitter := newPlanner(t, provider)

	current := &models.Plan{Goal: "g", Steps: []models.Step{{ID: "s1", Status: models.StatusCompleted}}}
	_, err := planner.Plan(context.Background(), current, "anything left?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(emitter.events) != 2 {
		t.Fatalf("expected plan_updated then pause, got %+v", emitter.events)
	}
	if emitter.events[1].Type != models.EventPause {
		t.Fatalf("expected pause as second event, got %s", emitter.events[1].Type)
	}
}

func TestPlannerRetriesOnUnparsableResponseThenSucceeds(t *testing.T) {
	provider := &scriptedProvider{responses: []llmgw.AssistantMessage{
		{Content: "sure, let me think about that..."},
		{Content: `{"message":"ok","goal":"g","title":"t","steps":[{"id":"s1","description":"d"}]}`},
	}}
	planner, emitter := newPlanner(t, provider)

	plan, err := planner.Plan(context.Background(), nil, "start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan == nil || len(plan.Steps) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if provider.call != 2 {
		t.Fatalf("expected the planner to retry once, got %d calls", provider.call)
	}
	if len(emitter.events) != 1 || emitter.events[0].Type != models.EventPlanCreated {
		t.Fatalf("expected only the final plan_created forwarded, got %+v", emitter.events)
	}
}
