package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/conductorhq/conductor/internal/agentlock"
	"github.com/conductorhq/conductor/internal/agentloop"
	"github.com/conductorhq/conductor/internal/agentmem"
	"github.com/conductorhq/conductor/internal/broadcaster"
	"github.com/conductorhq/conductor/internal/convrepo"
	"github.com/conductorhq/conductor/internal/ctxrepo"
	"github.com/conductorhq/conductor/internal/flow"
	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/internal/sandboxgw"
	"github.com/conductorhq/conductor/internal/toolkit"
	"github.com/conductorhq/conductor/pkg/models"
)

// noopPlanProvider always answers the planner with an empty step list, so a
// Controller built over it drives straight from PLANNING to COMPLETED
// without ever reaching the executor -- enough to exercise the full
// HandleMessage path without a real LLM backend.
type noopPlanProvider struct{}

func (noopPlanProvider) Ask(_ context.Context, _ llmgw.AskRequest) (llmgw.AssistantMessage, error) {
	return llmgw.AssistantMessage{Content: `{"message":"done","goal":"g","title":"t","steps":[]}`}, nil
}
func (noopPlanProvider) Name() string        { return "noop" }
func (noopPlanProvider) SupportsTools() bool { return false }

type fakeWebGateway struct {
	sandboxgw.Gateway
}

func (f *fakeWebGateway) ExecCommand(_ context.Context, session, cwd, cmd string) (toolkit.ToolResult, error) {
	return toolkit.ToolResult{Success: true, Message: "ran " + cmd}, nil
}

func (f *fakeWebGateway) FileRead(_ context.Context, path string) (toolkit.ToolResult, error) {
	return toolkit.ToolResult{Success: true, Message: "contents of " + path}, nil
}

func (f *fakeWebGateway) FileDownload(_ context.Context, path string) ([]byte, error) {
	return []byte("payload:" + path), nil
}

type testHandlerDeps struct {
	ctxRepo     *ctxrepo.MemoryRepository
	eventsRepo  *convrepo.MemoryRepository
	broadcaster *broadcaster.Broadcaster
	runner      *AgentRunner
}

func newTestHandler(t *testing.T) (*Handler, testHandlerDeps) {
	t.Helper()
	ctxRepo := ctxrepo.NewMemoryRepository()
	eventsRepo := convrepo.NewMemoryRepository()
	bc := broadcaster.New(eventsRepo, agentlock.New(agentlock.DefaultLockTimeout))

	factory := func(_ context.Context, agentID string) (*flow.Controller, error) {
		emitter := agentloop.NewBroadcasterEmitter(bc, agentID)
		plannerMem := agentmem.New(models.DefaultCompressionConfig())
		executorMem := agentmem.New(models.DefaultCompressionConfig())
		planner := agentloop.NewPlanner(plannerMem, noopPlanProvider{}, emitter, "test-model")
		registry := toolkit.NewRegistry()
		invoker := toolkit.NewInvoker(registry, toolkit.DefaultInvokerConfig())
		executor := agentloop.NewExecutor(executorMem, noopPlanProvider{}, registry, invoker, emitter, "test-model")
		return flow.New(planner, executor, plannerMem, executorMem, emitter), nil
	}
	runner := NewAgentRunner(factory, nil)

	h, err := NewHandler(&Config{
		ContextRepo: ctxRepo,
		Events:      eventsRepo,
		Broadcaster: bc,
		Gateway:     &fakeWebGateway{},
		Runner:      runner,
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h, testHandlerDeps{ctxRepo: ctxRepo, eventsRepo: eventsRepo, broadcaster: bc, runner: runner}
}

func TestCreateAgentDefaultsAndPersists(t *testing.T) {
	h, deps := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/agents", strings.NewReader(`{"user_id":"u1"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp createAgentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AgentID == "" || resp.Status != models.AgentStatusCreated {
		t.Fatalf("unexpected response: %+v", resp)
	}

	stored, err := deps.ctxRepo.Get(context.Background(), resp.AgentID)
	if err != nil {
		t.Fatalf("expected stored agent context: %v", err)
	}
	if stored.Agent.UserID != "u1" {
		t.Fatalf("unexpected stored user id: %s", stored.Agent.UserID)
	}
}

func TestListFlows(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/agents/flows", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var flows []FlowType
	if err := json.Unmarshal(w.Body.Bytes(), &flows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(flows) != 1 || flows[0].Name != "standard" {
		t.Fatalf("unexpected flows: %+v", flows)
	}
}

func TestSendMessageUnknownAgentFails(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/agents/nope/send-message", strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown agent, got %d", w.Code)
	}
}

func TestSendMessageRunsToCompletion(t *testing.T) {
	h, deps := newTestHandler(t)

	createReq := httptest.NewRequest(http.MethodPost, "/agents", strings.NewReader(`{}`))
	createW := httptest.NewRecorder()
	h.ServeHTTP(createW, createReq)
	var created createAgentResponse
	if err := json.Unmarshal(createW.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	sendReq := httptest.NewRequest(http.MethodPost, "/agents/"+created.AgentID+"/send-message", strings.NewReader(`{"message":"hello"}`))
	sendW := httptest.NewRecorder()
	h.ServeHTTP(sendW, sendReq)
	if sendW.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", sendW.Code, sendW.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := deps.eventsRepo.Replay(context.Background(), created.AgentID, 0)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		for _, e := range events {
			if e.Type == models.EventDone {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for done event")
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("unexpected status: %s", resp.Status)
	}
}
