package approval

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/agent/ports"
	"conductor/internal/events"
	"conductor/internal/task"
)

func fullTask() *task.Task {
	return &task.Task{ID: "task-1", Title: "write docs", Role: task.RoleDocs, AutonomyLevel: task.AutonomyFull}
}

func supervisedTask() *task.Task {
	return &task.Task{ID: "task-2", Title: "refactor parser", Role: task.RoleRefactor, AutonomyLevel: task.AutonomySupervised}
}

func simplePlan() *ports.ExecutionPlan {
	return &ports.ExecutionPlan{
		ID:     "plan-1",
		TaskID: "task-2",
		Steps: []ports.PlanStep{
			{ID: "inspect", Description: "Inspect the parser"},
			{ID: "change", Description: "Extract the tokenizer", Tool: "file_write"},
		},
		EstimatedToolCalls: 5,
		Risks:              []string{"behavior change in edge cases"},
	}
}

func TestRequiresApproval(t *testing.T) {
	g := NewGate(Config{})

	assert.False(t, g.RequiresApproval(fullTask(), &ports.ExecutionPlan{}))
	assert.True(t, g.RequiresApproval(supervisedTask(), &ports.ExecutionPlan{}))
	assert.True(t, g.RequiresApproval(fullTask(), &ports.ExecutionPlan{RequiresApproval: true}),
		"plan can force approval even under full autonomy")

	manual := fullTask()
	manual.AutonomyLevel = task.AutonomyManual
	assert.True(t, g.RequiresApproval(manual, &ports.ExecutionPlan{}))
}

func TestAutoApproveFullAutonomy(t *testing.T) {
	g := NewGate(Config{Handler: AutoReject("handler must not be called")})

	decision, err := g.RequestApproval(context.Background(), fullTask(), &ports.ExecutionPlan{})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, "auto-approved", decision.Reason)
	assert.Equal(t, 1, g.AutoApprovals())
	assert.False(t, g.AutoApprovalsExceeded())
}

func TestAutoApprovalBudget(t *testing.T) {
	g := NewGate(Config{MaxAutoApprovals: 2})

	for i := 0; i < 3; i++ {
		decision, err := g.RequestApproval(context.Background(), fullTask(), &ports.ExecutionPlan{})
		require.NoError(t, err)
		assert.True(t, decision.Approved, "budget overrun still approves, only the counter trips")
	}
	assert.Equal(t, 3, g.AutoApprovals())
	assert.True(t, g.AutoApprovalsExceeded())
}

func TestNilHandlerFailsClosed(t *testing.T) {
	g := NewGate(Config{})

	decision, err := g.RequestApproval(context.Background(), supervisedTask(), simplePlan())
	require.NoError(t, err)
	assert.False(t, decision.Approved)
	assert.Equal(t, "no approval handler configured", decision.Reason)
}

func TestHandlerDecisionReturned(t *testing.T) {
	handler := ports.ApprovalHandlerFunc(func(ctx context.Context, req *ports.ApprovalRequest) (*ports.ApprovalDecision, error) {
		assert.Equal(t, "task-2", req.TaskID)
		assert.Equal(t, "refactor parser", req.TaskTitle)
		assert.NotEmpty(t, req.ID)
		assert.NotEmpty(t, req.Summary)
		assert.Equal(t, []string{"behavior change in edge cases"}, req.Risks)
		return &ports.ApprovalDecision{Approved: true, Reason: "looks safe"}, nil
	})
	g := NewGate(Config{Handler: handler})

	decision, err := g.RequestApproval(context.Background(), supervisedTask(), simplePlan())
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, "looks safe", decision.Reason)
	assert.NotEmpty(t, decision.RequestID)
	assert.False(t, decision.DecidedAt.IsZero())
	assert.Equal(t, 0, g.AutoApprovals(), "handler decisions are not auto-approvals")
}

func TestHandlerErrorPropagates(t *testing.T) {
	handler := ports.ApprovalHandlerFunc(func(ctx context.Context, req *ports.ApprovalRequest) (*ports.ApprovalDecision, error) {
		return nil, fmt.Errorf("terminal went away")
	})
	g := NewGate(Config{Handler: handler})

	_, err := g.RequestApproval(context.Background(), supervisedTask(), simplePlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal went away")
	assert.Empty(t, g.Pending(), "failed requests are not left pending")
}

func TestPendingLifecycle(t *testing.T) {
	sawPending := false
	var g *Gate
	handler := ports.ApprovalHandlerFunc(func(ctx context.Context, req *ports.ApprovalRequest) (*ports.ApprovalDecision, error) {
		pending := g.Pending()
		sawPending = len(pending) == 1 && pending[0].ID == req.ID
		return &ports.ApprovalDecision{Approved: false, Reason: "no"}, nil
	})
	g = NewGate(Config{Handler: handler})

	_, err := g.RequestApproval(context.Background(), supervisedTask(), simplePlan())
	require.NoError(t, err)
	assert.True(t, sawPending, "request is visible as pending while the handler decides")
	assert.Empty(t, g.Pending())
}

func TestApprovalEventsPublished(t *testing.T) {
	bus := events.NewBus()
	var requested []*events.ApprovalRequestedEvent
	var resolved []*events.ApprovalResolvedEvent
	bus.Subscribe(events.TypeApprovalRequested, func(e events.Event) {
		requested = append(requested, e.(*events.ApprovalRequestedEvent))
	})
	bus.Subscribe(events.TypeApprovalResolved, func(e events.Event) {
		resolved = append(resolved, e.(*events.ApprovalResolvedEvent))
	})

	g := NewGate(Config{Handler: AutoReject("not today"), Bus: bus})

	_, err := g.RequestApproval(context.Background(), supervisedTask(), simplePlan())
	require.NoError(t, err)

	require.Len(t, requested, 1)
	require.Len(t, resolved, 1)
	assert.Equal(t, "task-2", requested[0].TaskID)
	assert.Equal(t, requested[0].RequestID, resolved[0].RequestID)
	assert.False(t, resolved[0].Approved)
	assert.Equal(t, "not today", resolved[0].Reason)
}

func TestRenderSummaryDeterministic(t *testing.T) {
	taskUnderReview := supervisedTask()
	taskUnderReview.Description = "split lexing from parsing"
	plan := simplePlan()
	plan.Steps = append(plan.Steps, ports.PlanStep{ID: "test", Description: "Run the parser tests", Optional: true})

	want := "Task: refactor parser\n" +
		"Role: refactor\n" +
		"Description: split lexing from parsing\n" +
		"Steps:\n" +
		"  1. Inspect the parser\n" +
		"  2. Extract the tokenizer [file_write]\n" +
		"  3. Run the parser tests (optional)\n" +
		"Estimated tool calls: 5\n" +
		"Risks:\n" +
		"  - behavior change in edge cases\n"

	first := RenderSummary(taskUnderReview, plan)
	assert.Equal(t, want, first)
	assert.Equal(t, first, RenderSummary(taskUnderReview, plan), "same inputs render identically")
}

func TestRenderSummaryNoPlan(t *testing.T) {
	got := RenderSummary(fullTask(), nil)
	assert.Equal(t, "Task: write docs\nRole: docs\n", got)
}

func TestDecisionTimestampPreserved(t *testing.T) {
	decided := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	handler := ports.ApprovalHandlerFunc(func(ctx context.Context, req *ports.ApprovalRequest) (*ports.ApprovalDecision, error) {
		return &ports.ApprovalDecision{Approved: true, DecidedAt: decided}, nil
	})
	g := NewGate(Config{Handler: handler})

	decision, err := g.RequestApproval(context.Background(), supervisedTask(), simplePlan())
	require.NoError(t, err)
	assert.Equal(t, decided, decision.DecidedAt)
}
