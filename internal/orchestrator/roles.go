package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"conductor/internal/agent/ports"
	"conductor/internal/task"
)

// RoleAgent is the contract every role implementation satisfies. The
// orchestrator dispatches tasks to the agent bound for their role; roles
// differ only in prompts, planning and validation, never in dispatch.
type RoleAgent interface {
	// PlanExecution builds the plan presented to the approval gate.
	PlanExecution(ctx context.Context, t *task.Task) (*ports.ExecutionPlan, error)
	// Execute runs the task. Loop-level failures surface in the result.
	Execute(ctx context.Context, t *task.Task, plan *ports.ExecutionPlan) (*ports.AgentResult, error)
	// ValidateResult applies role-specific acceptance checks.
	ValidateResult(result *ports.AgentResult) error
}

// agentSet is the mutex-guarded role -> agent binding table.
type agentSet struct {
	mu     sync.RWMutex
	agents map[task.Role]RoleAgent
}

func newAgentSet() *agentSet {
	return &agentSet{agents: make(map[task.Role]RoleAgent)}
}

func (s *agentSet) bind(role task.Role, agent RoleAgent) error {
	if !role.Known() {
		return fmt.Errorf("unknown role: %s", role)
	}
	if agent == nil {
		return fmt.Errorf("nil agent for role %s", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[role] = agent
	return nil
}

func (s *agentSet) get(role task.Role) (RoleAgent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[role]
	return agent, ok
}

func (s *agentSet) roles() []task.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]task.Role, 0, len(s.agents))
	for role := range s.agents {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
