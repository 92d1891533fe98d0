// Package agent provides the loop-backed role agent: it plans, executes and
// validates a task by driving the execution loop with role-specific prompts.
package agent

import (
	"context"
	"fmt"
	"strings"

	"conductor/internal/agent/domain"
	"conductor/internal/agent/ports"
	"conductor/internal/task"
	id "conductor/internal/utils/id"
)

// LoopAgent executes tasks of one role through the bounded execution loop.
type LoopAgent struct {
	role     task.Role
	engine   *domain.Engine
	llm      ports.LLMClient
	tools    ports.ToolRegistry
	listener ports.EventListener
	logger   ports.Logger
	clock    ports.Clock
}

// LoopAgentConfig wires the collaborators for one role agent.
type LoopAgentConfig struct {
	Role     task.Role
	Engine   *domain.Engine
	LLM      ports.LLMClient
	Tools    ports.ToolRegistry
	Listener ports.EventListener
	Logger   ports.Logger
	Clock    ports.Clock
}

// NewLoopAgent builds a role agent. Role must be one of the known roles.
func NewLoopAgent(cfg LoopAgentConfig) (*LoopAgent, error) {
	if !cfg.Role.Known() {
		return nil, fmt.Errorf("unknown role: %s", cfg.Role)
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	return &LoopAgent{
		role:     cfg.Role,
		engine:   cfg.Engine,
		llm:      cfg.LLM,
		tools:    cfg.Tools,
		listener: cfg.Listener,
		logger:   ports.OrNop(cfg.Logger),
		clock:    ports.OrSystem(cfg.Clock),
	}, nil
}

// Role reports which role this agent serves.
func (a *LoopAgent) Role() task.Role { return a.role }

// PlanExecution derives an execution plan from the task description. The
// plan is presented to the approval gate before any tool runs.
func (a *LoopAgent) PlanExecution(ctx context.Context, t *task.Task) (*ports.ExecutionPlan, error) {
	if t == nil {
		return nil, fmt.Errorf("task is required")
	}

	plan := &ports.ExecutionPlan{
		ID:     id.NewPlanID(),
		TaskID: t.ID,
	}

	steps := planSteps(a.role, t)
	plan.Steps = steps
	plan.EstimatedToolCalls = estimateToolCalls(a.role, t)
	plan.Risks = planRisks(a.role, t)
	plan.RequiresApproval = len(plan.Risks) > 0

	a.logger.Debug("planned %d step(s) for task %s (role=%s, est_tool_calls=%d)",
		len(plan.Steps), t.ID, a.role, plan.EstimatedToolCalls)
	return plan, nil
}

// Execute runs the task through the execution loop and returns a structured
// result. Errors during the loop surface in the result, not as a Go error;
// the error return covers misuse only.
func (a *LoopAgent) Execute(ctx context.Context, t *task.Task, plan *ports.ExecutionPlan) (*ports.AgentResult, error) {
	if t == nil {
		return nil, fmt.Errorf("task is required")
	}

	result := a.engine.Run(ctx, domain.RunSpec{
		TaskID:        t.ID,
		Role:          string(a.role),
		SystemPrompt:  systemPrompt(a.role, t),
		Prompt:        taskPrompt(t, plan),
		WorkingDir:    t.WorkingDir,
		MaxIterations: t.MaxIterations,
		LLM:           a.llm,
		Tools:         a.tools,
		Listener:      a.listener,
	})
	return result, nil
}

// ValidateResult applies role-specific acceptance checks to a loop result.
func (a *LoopAgent) ValidateResult(result *ports.AgentResult) error {
	if result == nil {
		return fmt.Errorf("no result produced")
	}
	if !result.Success {
		return fmt.Errorf("execution failed: %s", result.Error)
	}
	if strings.TrimSpace(result.Summary) == "" {
		return fmt.Errorf("execution produced no summary")
	}
	switch a.role {
	case task.RoleDocs, task.RoleRefactor, task.RoleFeature:
		// Roles whose purpose is changing files should have changed some.
		if len(result.FileChanges) == 0 && len(result.ToolRecords) > 0 {
			a.logger.Warn("task %s (%s) ran %d tool call(s) but modified no files",
				result.TaskID, a.role, len(result.ToolRecords))
		}
	}
	return nil
}

func planSteps(role task.Role, t *task.Task) []ports.PlanStep {
	steps := []ports.PlanStep{
		{
			ID:          "inspect",
			Description: fmt.Sprintf("Inspect the working tree relevant to: %s", t.Title),
		},
	}
	switch role {
	case task.RoleDocs:
		steps = append(steps, ports.PlanStep{
			ID: "write", Description: "Write or update the documentation", DependsOn: []string{"inspect"},
		})
	case task.RoleTest:
		steps = append(steps,
			ports.PlanStep{ID: "write", Description: "Write the missing test cases", DependsOn: []string{"inspect"}},
			ports.PlanStep{ID: "verify", Description: "Re-read the tests for correctness", DependsOn: []string{"write"}},
		)
	case task.RoleRefactor:
		steps = append(steps,
			ports.PlanStep{ID: "change", Description: "Apply the refactoring without behavior changes", DependsOn: []string{"inspect"}},
			ports.PlanStep{ID: "verify", Description: "Check call sites still compile against the new shape", DependsOn: []string{"change"}},
		)
	case task.RoleQA:
		steps = append(steps, ports.PlanStep{
			ID: "review", Description: "Review the code and report findings", DependsOn: []string{"inspect"},
		})
	case task.RoleFeature:
		steps = append(steps,
			ports.PlanStep{ID: "implement", Description: "Implement the requested behavior", DependsOn: []string{"inspect"}},
			ports.PlanStep{ID: "test", Description: "Add tests for the new behavior", DependsOn: []string{"implement"}, Optional: true},
		)
	}
	steps = append(steps, ports.PlanStep{
		ID: "summarize", Description: "Summarize what was done", DependsOn: []string{steps[len(steps)-1].ID},
	})
	return steps
}

func estimateToolCalls(role task.Role, t *task.Task) int {
	base := 4
	switch role {
	case task.RoleQA:
		base = 6
	case task.RoleFeature:
		base = 8
	}
	base += len(t.Target.Files)
	return base
}

func planRisks(role task.Role, t *task.Task) []string {
	var risks []string
	switch role {
	case task.RoleRefactor:
		risks = append(risks, "refactoring may change behavior in untested code paths")
	case task.RoleFeature:
		risks = append(risks, "new code paths may lack test coverage")
	}
	if len(t.Target.Files) == 0 && len(t.Target.Directories) == 0 && t.Target.Pattern == "" {
		risks = append(risks, "no target scope given, changes may touch unrelated files")
	}
	return risks
}

func systemPrompt(role task.Role, t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an autonomous %s agent working on a codebase.\n", role)
	switch role {
	case task.RoleDocs:
		b.WriteString("Write clear, accurate documentation. Do not change code behavior.\n")
	case task.RoleTest:
		b.WriteString("Write focused tests that exercise real behavior. Do not change production code.\n")
	case task.RoleRefactor:
		b.WriteString("Improve code structure without changing observable behavior.\n")
	case task.RoleQA:
		b.WriteString("Review code critically. Report concrete findings with file references.\n")
	case task.RoleFeature:
		b.WriteString("Implement the requested behavior with tests where practical.\n")
	}
	if t.WorkingDir != "" {
		fmt.Fprintf(&b, "Working directory: %s\n", t.WorkingDir)
	}
	b.WriteString("Use the available tools to inspect and change files. " +
		"When you are done, reply with a plain-text summary and no tool calls.")
	return b.String()
}

func taskPrompt(t *task.Task, plan *ports.ExecutionPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", t.Description)
	}
	if len(t.Target.Files) > 0 {
		fmt.Fprintf(&b, "\nTarget files: %s\n", strings.Join(t.Target.Files, ", "))
	}
	if len(t.Target.Directories) > 0 {
		fmt.Fprintf(&b, "Target directories: %s\n", strings.Join(t.Target.Directories, ", "))
	}
	if t.Target.Pattern != "" {
		fmt.Fprintf(&b, "Target pattern: %s\n", t.Target.Pattern)
	}
	if plan != nil && len(plan.Steps) > 0 {
		b.WriteString("\nApproved plan:\n")
		for i, step := range plan.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step.Description)
		}
	}
	return b.String()
}
