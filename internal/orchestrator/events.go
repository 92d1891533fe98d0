package orchestrator

import (
	"conductor/internal/agent/ports"
	"conductor/internal/events"
	"conductor/internal/task"
)

// EventHandlers are optional callbacks invoked as tasks move through their
// lifecycle. Nil fields are skipped. Handlers run synchronously on the
// orchestrator's goroutines and should return quickly.
type EventHandlers struct {
	OnTaskStarted      func(taskID string, role task.Role)
	OnTaskCompleted    func(taskID string, result *ports.AgentResult)
	OnTaskFailed       func(taskID string, reason string)
	OnApprovalRequired func(requestID, taskID, summary string)
	OnAgentEvent       func(event ports.AgentEvent)
}

func (h EventHandlers) taskStarted(taskID string, role task.Role) {
	if h.OnTaskStarted != nil {
		h.OnTaskStarted(taskID, role)
	}
}

func (h EventHandlers) taskCompleted(taskID string, result *ports.AgentResult) {
	if h.OnTaskCompleted != nil {
		h.OnTaskCompleted(taskID, result)
	}
}

func (h EventHandlers) taskFailed(taskID, reason string) {
	if h.OnTaskFailed != nil {
		h.OnTaskFailed(taskID, reason)
	}
}

func (h EventHandlers) agentEvent(event ports.AgentEvent) {
	if h.OnAgentEvent != nil {
		h.OnAgentEvent(event)
	}
}

// subscribeApprovals bridges bus approval events to the handler callback.
func (h EventHandlers) subscribeApprovals(bus *events.Bus) {
	if bus == nil || h.OnApprovalRequired == nil {
		return
	}
	bus.Subscribe(events.TypeApprovalRequested, func(e events.Event) {
		if req, ok := e.(*events.ApprovalRequestedEvent); ok {
			h.OnApprovalRequired(req.RequestID, req.TaskID, req.Summary)
		}
	})
}
