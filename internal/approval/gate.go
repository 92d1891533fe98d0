// Package approval gates risky execution plans behind human or policy
// sign-off. The gate is fail-closed: a plan that needs approval with no
// handler configured is rejected, never silently run.
package approval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"conductor/internal/agent/ports"
	"conductor/internal/events"
	"conductor/internal/task"
	id "conductor/internal/utils/id"
)

const defaultMaxAutoApprovals = 100

// Gate decides whether a plan needs explicit sign-off and brokers that
// decision through a pluggable handler. Multiple requests may be pending
// simultaneously, one per in-flight task, each resolved independently.
type Gate struct {
	mu               sync.Mutex
	handler          ports.ApprovalHandler
	pending          map[string]*ports.ApprovalRequest
	autoApprovals    int
	maxAutoApprovals int
	bus              events.Publisher
	clock            ports.Clock
	logger           ports.Logger
}

// Config captures the dependencies of a Gate.
type Config struct {
	// Handler decides requests that require sign-off. Nil means fail-closed:
	// any required approval is auto-rejected.
	Handler ports.ApprovalHandler

	// MaxAutoApprovals bounds the auto-approval counter. Exceeding it does
	// not block approval; it is exposed for policy callers to act on.
	MaxAutoApprovals int

	Bus    events.Publisher
	Clock  ports.Clock
	Logger ports.Logger
}

// NewGate builds an approval gate.
func NewGate(cfg Config) *Gate {
	maxAuto := cfg.MaxAutoApprovals
	if maxAuto <= 0 {
		maxAuto = defaultMaxAutoApprovals
	}
	bus := cfg.Bus
	if bus == nil {
		bus = events.Discard()
	}
	return &Gate{
		handler:          cfg.Handler,
		pending:          make(map[string]*ports.ApprovalRequest),
		maxAutoApprovals: maxAuto,
		bus:              bus,
		clock:            ports.OrSystem(cfg.Clock),
		logger:           ports.OrNop(cfg.Logger),
	}
}

// RequiresApproval reports whether the plan needs sign-off: true when the
// plan forces it or the task's autonomy level is supervised or manual.
func (g *Gate) RequiresApproval(t *task.Task, plan *ports.ExecutionPlan) bool {
	if plan != nil && plan.RequiresApproval {
		return true
	}
	return t.AutonomyLevel != task.AutonomyFull
}

// RequestApproval resolves the approval question for one task/plan pair.
// Plans that need no approval are auto-approved (counted). Required approval
// with no handler is rejected. Otherwise the request is registered as
// pending, handed to the handler, and removed once resolved; the handler's
// decision is returned verbatim.
func (g *Gate) RequestApproval(ctx context.Context, t *task.Task, plan *ports.ExecutionPlan) (*ports.ApprovalDecision, error) {
	now := g.clock.Now()

	if !g.RequiresApproval(t, plan) {
		g.mu.Lock()
		g.autoApprovals++
		count := g.autoApprovals
		g.mu.Unlock()
		if count > g.maxAutoApprovals {
			g.logger.Warn("auto-approval budget exceeded: %d/%d", count, g.maxAutoApprovals)
		}
		return &ports.ApprovalDecision{
			Approved:  true,
			Reason:    "auto-approved",
			DecidedAt: now,
		}, nil
	}

	if g.handler == nil {
		g.logger.Warn("approval required for task %s but no handler configured, rejecting", t.ID)
		return &ports.ApprovalDecision{
			Approved:  false,
			Reason:    "no approval handler configured",
			DecidedAt: now,
		}, nil
	}

	request := &ports.ApprovalRequest{
		ID:          id.NewApprovalID(),
		TaskID:      t.ID,
		TaskTitle:   t.Title,
		Role:        string(t.Role),
		Plan:        plan,
		Summary:     RenderSummary(t, plan),
		Risks:       riskList(plan),
		RequestedAt: now,
	}

	g.mu.Lock()
	g.pending[request.ID] = request
	g.mu.Unlock()

	g.bus.Publish(events.NewApprovalRequestedEvent(request.ID, t.ID, request.Summary, now))

	decision, err := g.handler.Decide(ctx, request)

	g.mu.Lock()
	delete(g.pending, request.ID)
	g.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("approval handler: %w", err)
	}
	if decision.RequestID == "" {
		decision.RequestID = request.ID
	}
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = g.clock.Now()
	}

	g.bus.Publish(events.NewApprovalResolvedEvent(request.ID, t.ID, decision.Approved, decision.Reason, decision.DecidedAt))
	g.logger.Info("approval for task %s: approved=%t reason=%q", t.ID, decision.Approved, decision.Reason)
	return decision, nil
}

// Pending returns copies of the requests currently awaiting a decision,
// sorted by request time.
func (g *Gate) Pending() []*ports.ApprovalRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*ports.ApprovalRequest, 0, len(g.pending))
	for _, req := range g.pending {
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

// AutoApprovals returns how many plans were approved without a handler call.
func (g *Gate) AutoApprovals() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autoApprovals
}

// AutoApprovalsExceeded reports whether the auto-approval budget is spent.
func (g *Gate) AutoApprovalsExceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autoApprovals > g.maxAutoApprovals
}

// RenderSummary produces the deterministic text shown to approvers: title,
// role, description, numbered steps, estimated tool calls, and risks.
func RenderSummary(t *task.Task, plan *ports.ExecutionPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	fmt.Fprintf(&b, "Role: %s\n", t.Role)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	if plan != nil {
		b.WriteString("Steps:\n")
		for i, step := range plan.Steps {
			suffix := ""
			if step.Tool != "" {
				suffix = fmt.Sprintf(" [%s]", step.Tool)
			}
			if step.Optional {
				suffix += " (optional)"
			}
			fmt.Fprintf(&b, "  %d. %s%s\n", i+1, step.Description, suffix)
		}
		fmt.Fprintf(&b, "Estimated tool calls: %d\n", plan.EstimatedToolCalls)
		if len(plan.Risks) > 0 {
			b.WriteString("Risks:\n")
			for _, risk := range plan.Risks {
				fmt.Fprintf(&b, "  - %s\n", risk)
			}
		}
	}
	return b.String()
}

func riskList(plan *ports.ExecutionPlan) []string {
	if plan == nil {
		return nil
	}
	return append([]string(nil), plan.Risks...)
}
