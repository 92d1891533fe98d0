package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/agent/domain"
	"conductor/internal/agent/ports"
	"conductor/internal/task"
	"conductor/internal/toolregistry"
)

type endTurnLLM struct{}

func (endTurnLLM) Model() string { return "stub" }

func (endTurnLLM) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	return &ports.CompletionResponse{
		Content:    "Done. Nothing needed changing.",
		StopReason: ports.StopReasonEndTurn,
	}, nil
}

func newAgent(t *testing.T, role task.Role) *LoopAgent {
	t.Helper()
	a, err := NewLoopAgent(LoopAgentConfig{
		Role:   role,
		Engine: domain.NewEngine(domain.Config{MaxIterations: 3}),
		LLM:    endTurnLLM{},
		Tools:  toolregistry.New(),
	})
	require.NoError(t, err)
	return a
}

func TestNewLoopAgentRejectsBadConfig(t *testing.T) {
	_, err := NewLoopAgent(LoopAgentConfig{Role: "designer"})
	assert.ErrorContains(t, err, "unknown role")

	_, err = NewLoopAgent(LoopAgentConfig{Role: task.RoleDocs})
	assert.ErrorContains(t, err, "engine is required")
}

func TestPlanExecutionPerRole(t *testing.T) {
	base := &task.Task{ID: "task-1", Title: "improve the parser", Target: task.Target{Files: []string{"parser.go"}}}

	tests := []struct {
		role      task.Role
		stepIDs   []string
		withRisks bool
	}{
		{task.RoleDocs, []string{"inspect", "write", "summarize"}, false},
		{task.RoleTest, []string{"inspect", "write", "verify", "summarize"}, false},
		{task.RoleRefactor, []string{"inspect", "change", "verify", "summarize"}, true},
		{task.RoleQA, []string{"inspect", "review", "summarize"}, false},
		{task.RoleFeature, []string{"inspect", "implement", "test", "summarize"}, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			a := newAgent(t, tt.role)
			plan, err := a.PlanExecution(context.Background(), base)
			require.NoError(t, err)

			assert.NotEmpty(t, plan.ID)
			assert.Equal(t, "task-1", plan.TaskID)
			ids := make([]string, len(plan.Steps))
			for i, step := range plan.Steps {
				ids[i] = step.ID
			}
			assert.Equal(t, tt.stepIDs, ids)
			assert.Greater(t, plan.EstimatedToolCalls, 0)
			assert.Equal(t, tt.withRisks, len(plan.Risks) > 0)
			assert.Equal(t, tt.withRisks, plan.RequiresApproval)
		})
	}
}

func TestPlanExecutionFlagsUnscopedTask(t *testing.T) {
	a := newAgent(t, task.RoleDocs)
	plan, err := a.PlanExecution(context.Background(), &task.Task{ID: "task-1", Title: "tidy up"})
	require.NoError(t, err)

	require.Len(t, plan.Risks, 1)
	assert.Contains(t, plan.Risks[0], "no target scope")
	assert.True(t, plan.RequiresApproval)
}

func TestExecuteRunsLoop(t *testing.T) {
	a := newAgent(t, task.RoleQA)
	result, err := a.Execute(context.Background(), &task.Task{ID: "task-1", Title: "review"}, nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, "task-1", result.TaskID)
	assert.Equal(t, "Done. Nothing needed changing.", result.Summary)
}

func TestValidateResult(t *testing.T) {
	a := newAgent(t, task.RoleQA)

	assert.ErrorContains(t, a.ValidateResult(nil), "no result")
	assert.ErrorContains(t, a.ValidateResult(&ports.AgentResult{Success: false, Error: "boom"}), "boom")
	assert.ErrorContains(t, a.ValidateResult(&ports.AgentResult{Success: true, Summary: "  "}), "no summary")
	assert.NoError(t, a.ValidateResult(&ports.AgentResult{Success: true, Summary: "reviewed, two findings"}))
}

func TestPromptsCarryTaskContext(t *testing.T) {
	tsk := &task.Task{
		ID:          "task-1",
		Title:       "add retries",
		Description: "wrap the HTTP client with retry logic",
		Target:      task.Target{Files: []string{"client.go"}, Pattern: "*.go"},
		WorkingDir:  "/srv/repo",
	}
	system := systemPrompt(task.RoleFeature, tsk)
	assert.Contains(t, system, "feature agent")
	assert.Contains(t, system, "/srv/repo")

	plan := &ports.ExecutionPlan{Steps: []ports.PlanStep{{Description: "Implement the retry wrapper"}}}
	prompt := taskPrompt(tsk, plan)
	assert.Contains(t, prompt, "Task: add retries")
	assert.Contains(t, prompt, "retry logic")
	assert.Contains(t, prompt, "client.go")
	assert.Contains(t, prompt, "*.go")
	assert.Contains(t, prompt, "1. Implement the retry wrapper")
}
