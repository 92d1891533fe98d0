package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"conductor/internal/agent/domain"
	"conductor/internal/agent/ports"
	"conductor/internal/orchestrator"
	"conductor/internal/task"
)

// printer renders orchestration progress to the terminal.
type printer struct {
	out io.Writer

	headline *color.Color
	success  *color.Color
	failure  *color.Color
	dim      *color.Color
	toolTint *color.Color
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:      out,
		headline: color.New(color.FgCyan, color.Bold),
		success:  color.New(color.FgGreen),
		failure:  color.New(color.FgRed),
		dim:      color.New(color.Faint),
		toolTint: color.New(color.FgYellow),
	}
}

func (p *printer) handlers() orchestrator.EventHandlers {
	return orchestrator.EventHandlers{
		OnTaskStarted: func(taskID string, role task.Role) {
			p.headline.Fprintf(p.out, "▶ %s", shortID(taskID))
			fmt.Fprintf(p.out, " (%s)\n", role)
		},
		OnTaskCompleted: func(taskID string, result *ports.AgentResult) {
			p.success.Fprintf(p.out, "✔ %s", shortID(taskID))
			fmt.Fprintf(p.out, " done in %d iteration(s), %d tool call(s)\n",
				result.Iterations, len(result.ToolRecords))
		},
		OnTaskFailed: func(taskID, reason string) {
			p.failure.Fprintf(p.out, "✘ %s", shortID(taskID))
			fmt.Fprintf(p.out, " %s\n", reason)
		},
		OnApprovalRequired: func(requestID, taskID, summary string) {
			p.toolTint.Fprintf(p.out, "⏸ approval required for %s\n", shortID(taskID))
		},
		OnAgentEvent: p.printAgentEvent,
	}
}

func (p *printer) printAgentEvent(event ports.AgentEvent) {
	switch e := event.(type) {
	case *domain.IterationStartEvent:
		p.dim.Fprintf(p.out, "  · iteration %d/%d\n", e.Iteration, e.TotalIters)
	case *domain.ThinkingEvent:
		p.dim.Fprintf(p.out, "  · %s\n", truncate(e.Content, 120))
	case *domain.ToolCallEvent:
		p.toolTint.Fprintf(p.out, "  → %s", e.ToolName)
		fmt.Fprintln(p.out)
	case *domain.ToolResultEvent:
		if e.Error != nil {
			p.failure.Fprintf(p.out, "  ← %s failed: %v\n", e.ToolName, e.Error)
		} else {
			p.dim.Fprintf(p.out, "  ← %s (%s)\n", e.ToolName, e.Duration.Round(time.Millisecond))
		}
	}
}

func (p *printer) queued(n int) {
	p.headline.Fprintf(p.out, "Queued %d task(s)\n", n)
}

// summary prints the end-of-run table for the created tasks.
func (p *printer) summary(registry *task.Registry, taskIDs []string, elapsed time.Duration) {
	fmt.Fprintln(p.out)
	p.headline.Fprintf(p.out, "Run finished in %s\n", elapsed.Round(time.Millisecond))
	completed, failed := 0, 0
	for _, taskID := range taskIDs {
		t, err := registry.Get(taskID)
		if err != nil {
			continue
		}
		tint := p.dim
		switch t.Status {
		case task.StatusCompleted:
			tint = p.success
			completed++
		case task.StatusFailed, task.StatusCancelled:
			tint = p.failure
			failed++
		}
		tint.Fprintf(p.out, "  %-10s", t.Status)
		fmt.Fprintf(p.out, " %s %s", shortID(t.ID), t.Title)
		if t.Result != nil && t.Result.Error != "" {
			p.dim.Fprintf(p.out, "  (%s)", truncate(t.Result.Error, 80))
		}
		fmt.Fprintln(p.out)
	}
	fmt.Fprintf(p.out, "%d completed, %d failed, %d total\n", completed, failed, len(taskIDs))
}

func shortID(id string) string {
	if len(id) > 13 {
		return id[:13]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
