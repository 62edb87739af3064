package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/conductorhq/conductor/internal/flow"
	"github.com/conductorhq/conductor/internal/observability"
)

// ControllerFactory builds a fresh flow.Controller for agentID, wiring a
// planner/executor pair and the per-agent memories behind it. cmd/conductor
// owns model/provider selection and passes a closure over its shared
// registry/invoker/provider; AgentRunner only drives the resulting state
// machine, the same separation the teacher keeps between web.Config's
// already-built collaborators and the subsystems that construct them.
type ControllerFactory func(ctx context.Context, agentID string) (*flow.Controller, error)

type runningAgent struct {
	controller *flow.Controller
	running    bool
}

// AgentRunner holds one flow.Controller per active agent and turns
// Controller.HandleMessage's blocking run into the fire-and-forget
// semantics POST /agents/{id}/send-message requires (spec §6: "enqueues
// and returns immediately"). The first message for an agent starts a
// goroutine driving the controller to completion; any message that
// arrives while that goroutine is still running is delivered through
// Controller.Interrupt instead of starting a second, overlapping run.
type AgentRunner struct {
	factory ControllerFactory
	logger  *slog.Logger

	mu    sync.Mutex
	procs map[string]*runningAgent
}

// NewAgentRunner builds an AgentRunner that constructs controllers via
// factory on first use.
func NewAgentRunner(factory ControllerFactory, logger *slog.Logger) *AgentRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentRunner{factory: factory, logger: logger, procs: make(map[string]*runningAgent)}
}

// Send delivers message to agentID, starting a new run if none is in
// flight or interrupting the current one otherwise. It returns once the
// message has been accepted, not once the run completes.
func (r *AgentRunner) Send(ctx context.Context, agentID, message string) error {
	r.mu.Lock()
	ra, ok := r.procs[agentID]
	if !ok {
		controller, err := r.factory(ctx, agentID)
		if err != nil {
			r.mu.Unlock()
			return fmt.Errorf("web: build controller for agent %s: %w", agentID, err)
		}
		ra = &runningAgent{controller: controller}
		r.procs[agentID] = ra
	}

	if ra.running {
		ra.controller.Interrupt(message)
		r.mu.Unlock()
		return nil
	}
	ra.running = true
	r.mu.Unlock()

	go func() {
		// A run can span many plan steps and tool calls; it must outlive
		// the request that started it, so it gets its own background
		// context rather than the request's (which is cancelled on
		// response write).
		runCtx := observability.AddAgentID(context.Background(), agentID)
		if err := ra.controller.HandleMessage(runCtx, message); err != nil {
			r.logger.Error("agent run failed", "agent_id", agentID, "error", err)
		}
		r.mu.Lock()
		ra.running = false
		r.mu.Unlock()
	}()
	return nil
}

// State reports the agent's current flow state, or false if no controller
// has been built for it yet.
func (r *AgentRunner) State(agentID string) (flow.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ra, ok := r.procs[agentID]
	if !ok {
		return "", false
	}
	return ra.controller.State(), true
}
