package ports

// PlanStep is one intended action inside an execution plan.
type PlanStep struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Tool        string   `json:"tool,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Optional    bool     `json:"optional,omitempty"`
}

// ExecutionPlan is the ordered set of steps an agent proposes before running.
// It is a value object: generated once, consumed once, never mutated. An
// approver substitutes a replacement plan rather than editing in place.
type ExecutionPlan struct {
	ID                 string     `json:"id"`
	TaskID             string     `json:"task_id"`
	Steps              []PlanStep `json:"steps"`
	EstimatedToolCalls int        `json:"estimated_tool_calls"`
	RequiresApproval   bool       `json:"requires_approval"`
	Risks              []string   `json:"risks,omitempty"`
}

// Clone returns a deep copy so approvers can derive a modified plan
// without touching the original.
func (p *ExecutionPlan) Clone() *ExecutionPlan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Steps = make([]PlanStep, len(p.Steps))
	for i, step := range p.Steps {
		s := step
		s.DependsOn = append([]string(nil), step.DependsOn...)
		cp.Steps[i] = s
	}
	cp.Risks = append([]string(nil), p.Risks...)
	return &cp
}
