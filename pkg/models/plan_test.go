package models

import "testing"

func TestPlanApplyUpdatePreservesTerminalPrefix(t *testing.T) {
	p := &Plan{
		Steps: []Step{
			{ID: "1", Status: StatusCompleted, Result: "done"},
			{ID: "2", Status: StatusFailed, Error: "boom"},
			{ID: "3", Status: StatusRunning},
		},
	}
	p.ApplyUpdate([]Step{{ID: "4", Status: StatusPending}})

	if len(p.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(p.Steps))
	}
	if p.Steps[0].ID != "1" || p.Steps[0].Result != "done" {
		t.Fatalf("step 1 must be preserved verbatim, got %+v", p.Steps[0])
	}
	if p.Steps[1].ID != "2" || p.Steps[1].Error != "boom" {
		t.Fatalf("step 2 must be preserved verbatim, got %+v", p.Steps[1])
	}
	if p.Steps[2].ID != "4" {
		t.Fatalf("non-terminal step 3 must be replaced, got %+v", p.Steps[2])
	}
}

func TestPlanApplyUpdateEmptyNewSteps(t *testing.T) {
	p := &Plan{Steps: []Step{{ID: "1", Status: StatusCompleted}}}
	p.ApplyUpdate(nil)
	if len(p.Steps) != 1 {
		t.Fatalf("expected terminal step preserved, got %d steps", len(p.Steps))
	}
}

func TestPlanNextStep(t *testing.T) {
	p := &Plan{Steps: []Step{
		{ID: "1", Status: StatusCompleted},
		{ID: "2", Status: StatusPending},
	}}
	next, idx := p.NextStep()
	if next == nil || idx != 1 || next.ID != "2" {
		t.Fatalf("expected step 2 at index 1, got %+v idx=%d", next, idx)
	}
}

func TestPlanNextStepAllTerminal(t *testing.T) {
	p := &Plan{Steps: []Step{{ID: "1", Status: StatusCompleted}, {ID: "2", Status: StatusFailed}}}
	next, idx := p.NextStep()
	if next != nil || idx != -1 {
		t.Fatalf("expected no next step, got %+v idx=%d", next, idx)
	}
}

func TestNormalizeContent(t *testing.T) {
	if got := NormalizeContent(nil); got != "" {
		t.Fatalf("nil content must normalize to empty string, got %q", got)
	}
	if got := NormalizeContent("hi"); got != "hi" {
		t.Fatalf("string content must pass through, got %q", got)
	}
	if got := NormalizeContent(map[string]any{"a": 1}); got == "" {
		t.Fatalf("non-string content must stringify, got empty")
	}
}
