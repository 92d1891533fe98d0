package main

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"

	"conductor/internal/agent/ports"
	"conductor/internal/approval"
)

// approvalHandler builds the gate handler for this run: auto policies when
// requested, otherwise an interactive terminal prompt.
func approvalHandler(p *printer, autoApprove, autoReject bool) ports.ApprovalHandler {
	switch {
	case autoApprove:
		return approval.AutoApprove("approved by --auto-approve")
	case autoReject:
		return approval.AutoReject("rejected by --auto-reject")
	default:
		return &promptHandler{printer: p}
	}
}

// promptHandler asks the operator to decide each held plan on the terminal.
type promptHandler struct {
	printer *printer
}

func (h *promptHandler) Decide(ctx context.Context, req *ports.ApprovalRequest) (*ports.ApprovalDecision, error) {
	fmt.Fprintln(h.printer.out)
	h.printer.headline.Fprintf(h.printer.out, "Plan awaiting approval\n")
	fmt.Fprintln(h.printer.out, req.Summary)

	prompt := promptui.Select{
		Label: fmt.Sprintf("Approve plan for %q", req.TaskTitle),
		Items: []string{"Approve", "Reject"},
	}

	type choice struct {
		index int
		err   error
	}
	done := make(chan choice, 1)
	go func() {
		index, _, err := prompt.Run()
		done <- choice{index, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-done:
		if c.err != nil {
			// An aborted prompt (Ctrl-C, EOF) counts as a rejection, not a
			// handler error.
			return &ports.ApprovalDecision{
				Approved: false,
				Reason:   fmt.Sprintf("prompt aborted: %v", c.err),
			}, nil
		}
		if c.index == 0 {
			return &ports.ApprovalDecision{Approved: true, Reason: "approved at terminal"}, nil
		}
		return &ports.ApprovalDecision{Approved: false, Reason: "rejected at terminal"}, nil
	}
}
