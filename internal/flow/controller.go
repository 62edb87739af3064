// Package flow implements the Flow Controller (spec §4.6): the
// IDLE/PLANNING/EXECUTING/UPDATING/REPORTING/COMPLETED state machine that
// drives one agent's planner and executor through a full run, including
// mid-run interrupts.
package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/conductorhq/conductor/internal/agentloop"
	"github.com/conductorhq/conductor/pkg/models"
)

// State is one of the flow's six phases (spec §4.6).
type State string

const (
	StateIdle      State = "idle"
	StatePlanning  State = "planning"
	StateExecuting State = "executing"
	StateUpdating  State = "updating"
	StateReporting State = "reporting"
	StateCompleted State = "completed"
)

// Emitter is the controller's event sink, shared with the planner and
// executor it drives.
type Emitter = agentloop.Emitter

// rollbackable is the narrow seam the controller needs from
// agentmem.Memory for interrupt handling, so this package depends on
// behavior rather than the concrete type.
type rollbackable interface {
	Rollback() bool
}

// Controller drives one agent's planner and executor through the states
// named in spec §4.6, reacting to new and mid-run user messages.
// Transitions are deterministic and this type is not safe for concurrent
// HandleMessage calls — only Interrupt may be called from another
// goroutine while a run is in flight.
type Controller struct {
	mu    sync.Mutex
	state State

	plan     *models.Plan
	planner  *agentloop.Planner
	executor *agentloop.Executor
	emitter  Emitter

	plannerMemory  rollbackable
	executorMemory rollbackable

	pendingInterrupt *string
}

// New builds a Controller over an already-constructed planner/executor
// pair, the per-role memories they were built with (for interrupt
// rollback), and the emitter both share.
func New(planner *agentloop.Planner, executor *agentloop.Executor, plannerMemory, executorMemory rollbackable, emitter Emitter) *Controller {
	return &Controller{
		state:          StateIdle,
		planner:        planner,
		executor:       executor,
		emitter:        emitter,
		plannerMemory:  plannerMemory,
		executorMemory: executorMemory,
	}
}

// State reports the controller's current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Interrupt records a new user message that arrived while HandleMessage is
// already driving a run for this agent. The run's next state-boundary
// check rolls back one message from each agent's memory (spec §4.1) and
// restarts planning with the interrupting message (spec §4.6: "a new user
// message arrives mid-run").
func (c *Controller) Interrupt(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingInterrupt = &message
}

func (c *Controller) takeInterrupt() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingInterrupt == nil {
		return "", false
	}
	msg := *c.pendingInterrupt
	c.pendingInterrupt = nil
	return msg, true
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// HandleMessage drives the full IDLE -> ... -> COMPLETED -> IDLE cycle for
// one user message. It checks for a mid-run interrupt at every state
// boundary; a `done` event is always the last event emitted (spec §4.6).
func (c *Controller) HandleMessage(ctx context.Context, message string) error {
	c.setState(StatePlanning)

	for {
		if msg, ok := c.takeInterrupt(); ok {
			c.plannerMemory.Rollback()
			c.executorMemory.Rollback()
			message = msg
			c.setState(StatePlanning)
		}

		switch c.State() {
		case StatePlanning:
			if err := c.runPlanning(ctx, message); err != nil {
				return err
			}
		case StateExecuting:
			if err := c.runExecuting(ctx, message); err != nil {
				return err
			}
		case StateUpdating:
			if err := c.runUpdating(ctx); err != nil {
				return err
			}
		case StateReporting:
			if err := c.runReporting(ctx); err != nil {
				return err
			}
		case StateCompleted:
			return c.complete(ctx)
		}
	}
}

// runPlanning drives the Planner Agent for the current (or first) plan.
// PLANNING -> EXECUTING on plan_created/plan_updated with steps; PLANNING
// -> COMPLETED if the planner paused with nothing to do.
func (c *Controller) runPlanning(ctx context.Context, message string) error {
	plan, err := c.planner.Plan(ctx, c.plan, message)
	if err != nil {
		return fmt.Errorf("flow: planning failed: %w", err)
	}
	c.plan = plan
	if plan == nil || len(plan.Steps) == 0 {
		c.setState(StateCompleted)
		return nil
	}
	c.setState(StateExecuting)
	return nil
}

// runExecuting runs exactly one plan step. EXECUTING -> UPDATING on
// step_completed/step_failed; EXECUTING -> REPORTING when no step
// remains; EXECUTING -> COMPLETED if the executor itself paused.
func (c *Controller) runExecuting(ctx context.Context, message string) error {
	next, idx := c.plan.NextStep()
	if next == nil {
		c.setState(StateReporting)
		return nil
	}

	if err := c.executor.ExecuteStep(ctx, c.plan, next, message); err != nil {
		return fmt.Errorf("flow: step execution failed: %w", err)
	}
	c.plan.Steps[idx] = *next

	switch next.Status {
	case models.StatusCompleted, models.StatusFailed:
		c.setState(StateUpdating)
	case models.StatusPaused:
		c.setState(StateCompleted)
	}
	return nil
}

// runUpdating re-invokes the planner after a step completes or fails,
// feeding it the step's own outcome as the next planning input.
// UPDATING -> EXECUTING when plan_updated names further steps; otherwise
// UPDATING -> REPORTING, the same "no next step" destination EXECUTING
// itself would reach — a plan the planner declares exhausted still gets
// a final report before COMPLETED (spec §4.6's REPORTING -> COMPLETED is
// the only path that trigger ever describes).
func (c *Controller) runUpdating(ctx context.Context) error {
	var input string
	if next, _ := c.plan.NextStep(); next == nil {
		input = "every step has a terminal status; is there anything left to do?"
	} else {
		input = fmt.Sprintf("continuing from step %s", next.ID)
	}

	plan, err := c.planner.Plan(ctx, c.plan, input)
	if err != nil {
		return fmt.Errorf("flow: plan update failed: %w", err)
	}
	c.plan = plan

	if next, _ := plan.NextStep(); next != nil {
		c.setState(StateExecuting)
	} else {
		c.setState(StateReporting)
	}
	return nil
}

// runReporting asks the executor to summarize and report once no step
// remains. REPORTING -> COMPLETED on the executor's report event
// (spec §4.6).
func (c *Controller) runReporting(ctx context.Context) error {
	summary, err := c.executor.SummarizeSteps(ctx)
	if err != nil {
		return fmt.Errorf("flow: summarize steps failed: %w", err)
	}
	if err := c.executor.ReportResult(ctx, summary); err != nil {
		return err
	}
	c.setState(StateCompleted)
	return nil
}

// complete emits plan_completed and done, then returns the controller to
// IDLE (spec §4.6: "COMPLETED -> IDLE, always, after emitting
// plan_completed and done").
func (c *Controller) complete(ctx context.Context) error {
	if c.plan != nil {
		c.plan.Status = models.StatusCompleted
		if err := c.emitter.Emit(ctx, models.AgentEvent{
			Type: models.EventPlanCompleted,
			Plan: &models.PlanPayload{Plan: *c.plan},
		}); err != nil {
			return err
		}
	}
	if err := c.emitter.Emit(ctx, models.AgentEvent{Type: models.EventDone}); err != nil {
		return err
	}
	c.setState(StateIdle)
	return nil
}
