package approval

import (
	"context"

	"conductor/internal/agent/ports"
)

// AutoApprove returns a handler that approves every request with the given
// reason. Useful for unattended runs and tests.
func AutoApprove(reason string) ports.ApprovalHandler {
	if reason == "" {
		reason = "auto-approve policy"
	}
	return ports.ApprovalHandlerFunc(func(_ context.Context, req *ports.ApprovalRequest) (*ports.ApprovalDecision, error) {
		return &ports.ApprovalDecision{
			RequestID: req.ID,
			Approved:  true,
			Reason:    reason,
		}, nil
	})
}

// AutoReject returns a handler that rejects every request with the given
// reason.
func AutoReject(reason string) ports.ApprovalHandler {
	if reason == "" {
		reason = "auto-reject policy"
	}
	return ports.ApprovalHandlerFunc(func(_ context.Context, req *ports.ApprovalRequest) (*ports.ApprovalDecision, error) {
		return &ports.ApprovalDecision{
			RequestID: req.ID,
			Approved:  false,
			Reason:    reason,
		}, nil
	})
}
