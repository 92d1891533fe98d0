// Package orchestrator wires the task registry, scheduler, approval gate and
// role agents into one dispatch loop. It owns the task lifecycle: create,
// schedule, gate, execute, record, retry.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"conductor/internal/agent/ports"
	"conductor/internal/approval"
	"conductor/internal/events"
	"conductor/internal/scheduler"
	"conductor/internal/task"
)

const queuePollInterval = 50 * time.Millisecond

// Config carries the orchestrator's collaborators. Registry, Scheduler and
// Gate are required; the rest default to inert implementations.
type Config struct {
	Registry  *task.Registry
	Scheduler *scheduler.Scheduler
	Gate      *approval.Gate
	Bus       *events.Bus
	Metrics   *Metrics
	Handlers  EventHandlers
	Logger    ports.Logger
	Clock     ports.Clock
}

// Orchestrator coordinates task execution across role agents.
type Orchestrator struct {
	registry *task.Registry
	sched    *scheduler.Scheduler
	gate     *approval.Gate
	bus      *events.Bus
	metrics  *Metrics
	handlers EventHandlers
	agents   *agentSet
	logger   ports.Logger
	clock    ports.Clock

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds an orchestrator. It does not start any goroutines; call
// RunQueue or RunTask to execute work.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("approval gate is required")
	}

	o := &Orchestrator{
		registry: cfg.Registry,
		sched:    cfg.Scheduler,
		gate:     cfg.Gate,
		bus:      cfg.Bus,
		metrics:  cfg.Metrics,
		handlers: cfg.Handlers,
		agents:   newAgentSet(),
		logger:   ports.OrNop(cfg.Logger),
		clock:    ports.OrSystem(cfg.Clock),
		stopCh:   make(chan struct{}),
	}
	o.handlers.subscribeApprovals(cfg.Bus)
	return o, nil
}

// Bind registers the agent that executes tasks of the given role.
func (o *Orchestrator) Bind(role task.Role, agent RoleAgent) error {
	return o.agents.bind(role, agent)
}

// BoundRoles returns the roles with an agent bound, sorted.
func (o *Orchestrator) BoundRoles() []task.Role {
	return o.agents.roles()
}

// AgentListener returns the listener that forwards loop events to the
// configured handlers. Pass it to agents at construction time.
func (o *Orchestrator) AgentListener() ports.EventListener {
	return ports.EventListenerFunc(o.handlers.agentEvent)
}

// CreateTask registers a task and enqueues it for scheduling.
func (o *Orchestrator) CreateTask(input task.CreateInput) (*task.Task, error) {
	t, err := o.registry.Create(input)
	if err != nil {
		return nil, err
	}
	o.sched.Schedule(t)
	o.logger.Info("task enqueued: id=%s role=%s priority=%s", t.ID, t.Role, t.Priority)
	return t, nil
}

// RunTask executes one task immediately, bypassing queue order but not the
// approval gate. The error return covers lookup failures only; execution
// failures are reported in the result.
func (o *Orchestrator) RunTask(ctx context.Context, taskID string) (*ports.AgentResult, error) {
	t, err := o.registry.Get(taskID)
	if err != nil {
		return nil, err
	}
	o.sched.MarkRunning(taskID)
	return o.runScheduled(ctx, t.ID, t.Role), nil
}

// RunQueue drains the scheduler, executing tasks under the configured
// concurrency limit until the queue is empty and nothing is running, the
// context is cancelled, or Stop is called. Failed tasks with retry budget
// are requeued and picked up within the same drain.
func (o *Orchestrator) RunQueue(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.sched.Options().MaxConcurrent)

	o.logger.Info("queue run started: queued=%d pending=%d", o.sched.QueuedCount(), o.registry.PendingCount())

loop:
	for {
		select {
		case <-groupCtx.Done():
			break loop
		case <-o.stopCh:
			break loop
		default:
		}

		next := o.sched.Next()
		if next == nil {
			if o.sched.QueuedCount() == 0 && o.sched.RunningCount() == 0 {
				break
			}
			// Queue non-empty but nothing eligible: concurrency limit or
			// role cooldown. Poll until something frees up.
			select {
			case <-groupCtx.Done():
				break loop
			case <-o.stopCh:
				break loop
			case <-time.After(queuePollInterval):
			}
			continue
		}

		taskID, role := next.Task.ID, next.Task.Role
		o.sched.MarkRunning(taskID)
		group.Go(func() error {
			o.runScheduled(groupCtx, taskID, role)
			return nil
		})
	}

	err := group.Wait()
	o.logger.Info("queue run finished: queued=%d pending=%d", o.sched.QueuedCount(), o.registry.PendingCount())
	return err
}

// Stop makes any in-flight RunQueue return after current tasks finish.
// Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopCh) })
}

// runScheduled owns scheduler bookkeeping around one execution. The task
// must already be marked running in the scheduler.
func (o *Orchestrator) runScheduled(ctx context.Context, taskID string, role task.Role) *ports.AgentResult {
	defer o.sched.MarkComplete(taskID, role)
	return o.execute(ctx, taskID)
}

// execute drives one task through its full lifecycle. It never panics and
// never returns nil: every failure mode becomes a structured result and a
// terminal (or retry-pending) task status.
func (o *Orchestrator) execute(ctx context.Context, taskID string) (result *ports.AgentResult) {
	start := o.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("task %s panicked: %v", taskID, r)
			result = o.failTask(taskID, fmt.Sprintf("internal error: %v", r), start)
		}
	}()

	t, err := o.registry.Get(taskID)
	if err != nil {
		return &ports.AgentResult{TaskID: taskID, Success: false, Error: err.Error(), StopReason: "error"}
	}

	var span trace.Span
	ctx, span = startTaskSpan(ctx, t.ID, string(t.Role))
	defer func() { endTaskSpan(span, result) }()

	agent, ok := o.agents.get(t.Role)
	if !ok {
		return o.failTask(taskID, fmt.Sprintf("no agent bound for role %s", t.Role), start)
	}

	plan, err := agent.PlanExecution(ctx, t)
	if err != nil {
		return o.failTask(taskID, fmt.Sprintf("planning failed: %v", err), start)
	}

	if o.gate.RequiresApproval(t, plan) {
		if held, proceed := o.requestApproval(ctx, t, plan, start); !proceed {
			return held
		}
	} else {
		if err := o.registry.UpdateStatus(t.ID, task.StatusRunning); err != nil {
			return o.failTask(taskID, fmt.Sprintf("cannot start: %v", err), start)
		}
	}

	o.metrics.taskStarted()
	o.handlers.taskStarted(t.ID, t.Role)
	o.logger.Info("task running: id=%s role=%s attempt=%d", t.ID, t.Role, t.RetryCount+1)

	execResult, err := agent.Execute(ctx, t, plan)
	o.metrics.taskFinished()
	if err != nil {
		return o.failTask(taskID, fmt.Sprintf("execution error: %v", err), start)
	}
	if execResult == nil {
		return o.failTask(taskID, "agent returned no result", start)
	}

	if execResult.Success {
		if err := agent.ValidateResult(execResult); err != nil {
			execResult.Success = false
			execResult.Error = fmt.Sprintf("validation failed: %v", err)
			execResult.StopReason = "validation_failed"
		}
	}

	if execResult.Success {
		return o.completeTask(t, execResult, start)
	}
	return o.failExecuted(t, execResult, start)
}

// requestApproval holds the task at the gate. Returns (result, false) when
// the task must not run: rejection cancels it, a gate error fails closed.
func (o *Orchestrator) requestApproval(ctx context.Context, t *task.Task, plan *ports.ExecutionPlan, start time.Time) (*ports.AgentResult, bool) {
	if err := o.registry.UpdateStatus(t.ID, task.StatusAwaitingApproval); err != nil {
		return o.failTask(t.ID, fmt.Sprintf("cannot hold for approval: %v", err), start), false
	}

	decision, err := o.gate.RequestApproval(ctx, t, plan)
	if err != nil {
		// Fail closed: an unreachable gate never lets work through.
		o.metrics.incApproval("error")
		return o.cancelTask(t, fmt.Sprintf("approval failed: %v", err), start), false
	}

	if !decision.Approved {
		o.metrics.incApproval("rejected")
		reason := decision.Reason
		if reason == "" {
			reason = "plan rejected"
		}
		return o.cancelTask(t, reason, start), false
	}

	o.metrics.incApproval("approved")
	if decision.ModifiedPlan != nil {
		*plan = *decision.ModifiedPlan
	}

	if err := o.registry.UpdateStatus(t.ID, task.StatusRunning); err != nil {
		return o.failTask(t.ID, fmt.Sprintf("cannot start after approval: %v", err), start), false
	}
	return nil, true
}

// completeTask records a successful execution.
func (o *Orchestrator) completeTask(t *task.Task, result *ports.AgentResult, start time.Time) *ports.AgentResult {
	duration := o.clock.Now().Sub(start)
	if err := o.registry.UpdateStatus(t.ID, task.StatusCompleted); err != nil {
		o.logger.Error("cannot mark task %s completed: %v", t.ID, err)
	}
	o.recordResult(t.ID, result, duration)
	o.metrics.observeTask(string(t.Role), string(task.StatusCompleted), duration.Seconds())
	o.handlers.taskCompleted(t.ID, result)
	o.logger.Info("task completed: id=%s iterations=%d tool_calls=%d duration=%s",
		t.ID, result.Iterations, len(result.ToolRecords), duration)
	return result
}

// failExecuted records a failed execution and requeues it when retry budget
// remains. Cancelled runs are never retried.
func (o *Orchestrator) failExecuted(t *task.Task, result *ports.AgentResult, start time.Time) *ports.AgentResult {
	duration := o.clock.Now().Sub(start)
	o.metrics.incFailure(string(t.Role))
	o.metrics.observeTask(string(t.Role), string(task.StatusFailed), duration.Seconds())

	if err := o.registry.UpdateStatus(t.ID, task.StatusFailed); err != nil {
		o.logger.Error("cannot mark task %s failed: %v", t.ID, err)
	}
	o.recordResult(t.ID, result, duration)
	o.handlers.taskFailed(t.ID, result.Error)
	o.logger.Warn("task failed: id=%s reason=%s", t.ID, result.Error)

	if result.StopReason != "cancelled" && o.registry.CanRetry(t.ID) {
		o.retry(t.ID)
	}
	return result
}

// failTask fails a task for an orchestration-level reason, producing a
// result with no tool activity.
func (o *Orchestrator) failTask(taskID, reason string, start time.Time) *ports.AgentResult {
	result := &ports.AgentResult{
		TaskID:     taskID,
		Success:    false,
		Error:      reason,
		StopReason: "error",
		Duration:   o.clock.Now().Sub(start),
	}
	t, err := o.registry.Get(taskID)
	if err != nil {
		return result
	}
	return o.failExecuted(t, result, start)
}

// cancelTask terminates a task that will not run, recording a result with
// zero tool activity. Cancelled tasks are never retried.
func (o *Orchestrator) cancelTask(t *task.Task, reason string, start time.Time) *ports.AgentResult {
	duration := o.clock.Now().Sub(start)
	result := &ports.AgentResult{
		TaskID:     t.ID,
		Success:    false,
		Error:      reason,
		StopReason: "rejected",
		Duration:   duration,
	}
	if err := o.registry.UpdateStatus(t.ID, task.StatusCancelled); err != nil {
		o.logger.Error("cannot mark task %s cancelled: %v", t.ID, err)
	}
	o.sched.Remove(t.ID)
	o.recordResult(t.ID, result, duration)
	o.metrics.observeTask(string(t.Role), string(task.StatusCancelled), duration.Seconds())
	o.handlers.taskFailed(t.ID, reason)
	o.logger.Info("task cancelled: id=%s reason=%s", t.ID, reason)
	return result
}

// retry consumes one retry and requeues the task through the scheduler.
func (o *Orchestrator) retry(taskID string) {
	if err := o.registry.IncrementRetry(taskID); err != nil {
		o.logger.Warn("cannot retry task %s: %v", taskID, err)
		return
	}
	if err := o.registry.UpdateStatus(taskID, task.StatusPending); err != nil {
		o.logger.Error("cannot requeue task %s: %v", taskID, err)
		return
	}
	t, err := o.registry.Get(taskID)
	if err != nil {
		o.logger.Error("cannot requeue task %s: %v", taskID, err)
		return
	}
	o.sched.Schedule(t)
	o.metrics.incRetry(string(t.Role))
	o.logger.Info("task requeued: id=%s attempt=%d/%d", taskID, t.RetryCount, t.MaxRetries)
}

func (o *Orchestrator) recordResult(taskID string, result *ports.AgentResult, duration time.Duration) {
	err := o.registry.SetResult(taskID, task.Result{
		Success:       result.Success,
		Summary:       result.Summary,
		Error:         result.Error,
		Iterations:    result.Iterations,
		ToolCalls:     len(result.ToolRecords),
		FilesModified: len(result.FileChanges),
		Duration:      duration,
	})
	if err != nil {
		o.logger.Error("cannot record result for task %s: %v", taskID, err)
	}
}
