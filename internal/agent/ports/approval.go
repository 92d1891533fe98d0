package ports

import (
	"context"
	"time"
)

// ApprovalRequest pairs a task's plan with a rendered summary and risk list.
// Requests exist only while a decision is pending.
type ApprovalRequest struct {
	ID          string
	TaskID      string
	TaskTitle   string
	Role        string
	Plan        *ExecutionPlan
	Summary     string
	Risks       []string
	RequestedAt time.Time
}

// ApprovalDecision records the outcome for one request.
type ApprovalDecision struct {
	RequestID    string
	Approved     bool
	Reason       string
	ModifiedPlan *ExecutionPlan
	DecidedAt    time.Time
}

// ApprovalHandler decides approval requests. Interactive human prompts,
// auto-approve, and auto-reject implementations are interchangeable.
type ApprovalHandler interface {
	Decide(ctx context.Context, request *ApprovalRequest) (*ApprovalDecision, error)
}

// ApprovalHandlerFunc adapts a plain function to ApprovalHandler.
type ApprovalHandlerFunc func(ctx context.Context, request *ApprovalRequest) (*ApprovalDecision, error)

func (f ApprovalHandlerFunc) Decide(ctx context.Context, request *ApprovalRequest) (*ApprovalDecision, error) {
	return f(ctx, request)
}
