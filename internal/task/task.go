// Package task owns the canonical task records of the orchestration core:
// the task model, its status state machine, and the in-memory registry.
package task

import "time"

// Role is the category of agent bound to a task. The set is closed so role
// dispatch stays exhaustively checkable.
type Role string

const (
	RoleDocs     Role = "docs"
	RoleTest     Role = "test"
	RoleRefactor Role = "refactor"
	RoleQA       Role = "qa"
	RoleFeature  Role = "feature"
)

// Roles lists every known role in a stable order.
func Roles() []Role {
	return []Role{RoleDocs, RoleTest, RoleRefactor, RoleQA, RoleFeature}
}

// Known reports whether the role belongs to the closed set.
func (r Role) Known() bool {
	switch r {
	case RoleDocs, RoleTest, RoleRefactor, RoleQA, RoleFeature:
		return true
	}
	return false
}

// Priority orders tasks for scheduling.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Rank returns the sort rank of a priority: critical < high < normal < low.
// Unknown priorities rank after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// AutonomyLevel controls whether a task's plan requires approval. It is
// derived from role-level policy at creation time and immutable thereafter.
type AutonomyLevel string

const (
	AutonomyFull       AutonomyLevel = "full"
	AutonomySupervised AutonomyLevel = "supervised"
	AutonomyManual     AutonomyLevel = "manual"
)

// Status is the task state machine.
type Status string

const (
	StatusPending          Status = "pending"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusRunning          Status = "running"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusCancelled        Status = "cancelled"
)

// Terminal reports whether the status ends the task lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// validTransitions encodes the status state machine. failed -> pending is the
// retry edge; every other departure from a terminal status is rejected.
var validTransitions = map[Status][]Status{
	StatusPending:          {StatusAwaitingApproval, StatusRunning, StatusCancelled, StatusFailed},
	StatusAwaitingApproval: {StatusRunning, StatusCancelled},
	StatusRunning:          {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:           {StatusPending},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Target describes what a task operates on. The core treats it as opaque.
type Target struct {
	Files       []string `json:"files,omitempty" yaml:"files,omitempty"`
	Directories []string `json:"directories,omitempty" yaml:"directories,omitempty"`
	Pattern     string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Result summarizes a finished task.
type Result struct {
	Success       bool          `json:"success"`
	Summary       string        `json:"summary,omitempty"`
	Error         string        `json:"error,omitempty"`
	Iterations    int           `json:"iterations"`
	ToolCalls     int           `json:"tool_calls"`
	FilesModified int           `json:"files_modified"`
	Duration      time.Duration `json:"duration"`
}

// Task is one schedulable unit of agent work.
type Task struct {
	ID            string         `json:"id"`
	Role          Role           `json:"role"`
	Status        Status         `json:"status"`
	Priority      Priority       `json:"priority"`
	AutonomyLevel AutonomyLevel  `json:"autonomy_level"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Target        Target         `json:"target,omitempty"`
	WorkingDir    string         `json:"working_dir,omitempty"`
	MaxIterations int            `json:"max_iterations,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	RetryCount    int            `json:"retry_count"`
	MaxRetries    int            `json:"max_retries"`
	ParentTaskID  string         `json:"parent_task_id,omitempty"`
	ChildTaskIDs  []string       `json:"child_task_ids,omitempty"`
	Result        *Result        `json:"result,omitempty"`
}

// Clone returns a deep copy so registry reads never leak internal pointers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.StartedAt != nil {
		started := *t.StartedAt
		cp.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		cp.CompletedAt = &completed
	}
	if t.Options != nil {
		cp.Options = make(map[string]any, len(t.Options))
		for k, v := range t.Options {
			cp.Options[k] = v
		}
	}
	cp.Target.Files = append([]string(nil), t.Target.Files...)
	cp.Target.Directories = append([]string(nil), t.Target.Directories...)
	cp.ChildTaskIDs = append([]string(nil), t.ChildTaskIDs...)
	if t.Result != nil {
		result := *t.Result
		cp.Result = &result
	}
	return &cp
}

// CreateInput carries the caller-supplied fields for a new task.
type CreateInput struct {
	Role          Role           `json:"role" yaml:"role"`
	Title         string         `json:"title" yaml:"title"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Priority      Priority       `json:"priority,omitempty" yaml:"priority,omitempty"`
	Target        Target         `json:"target,omitempty" yaml:"target,omitempty"`
	WorkingDir    string         `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	MaxIterations int            `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Options       map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	MaxRetries    int            `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	ParentTaskID  string         `json:"parent_task_id,omitempty" yaml:"parent_task_id,omitempty"`
}
