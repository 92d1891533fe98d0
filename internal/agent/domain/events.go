package domain

import (
	"time"

	"conductor/internal/agent/ports"
)

// Re-export the event listener contract defined at the port layer.
type AgentEvent = ports.AgentEvent
type EventListener = ports.EventListener

// BaseEvent provides common fields for all events
type BaseEvent struct {
	timestamp time.Time
	taskID    string
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

func (e *BaseEvent) GetTaskID() string {
	return e.taskID
}

func newBaseEvent(taskID string, ts time.Time) BaseEvent {
	return BaseEvent{timestamp: ts, taskID: taskID}
}

// StartedEvent - emitted exactly once when a run begins
type StartedEvent struct {
	BaseEvent
	Role          string
	MaxIterations int
}

func (e *StartedEvent) EventType() string { return "started" }

// IterationStartEvent - emitted at start of each loop iteration
type IterationStartEvent struct {
	BaseEvent
	Iteration  int
	TotalIters int
}

func (e *IterationStartEvent) EventType() string { return "iteration_start" }

// ThinkingEvent - emitted for each plain-text block the model returns
type ThinkingEvent struct {
	BaseEvent
	Iteration int
	Content   string
}

func (e *ThinkingEvent) EventType() string { return "thinking" }

// ToolCallEvent - emitted when a tool invocation begins
type ToolCallEvent struct {
	BaseEvent
	Iteration int
	CallID    string
	ToolName  string
	Arguments map[string]any
}

func (e *ToolCallEvent) EventType() string { return "tool_call" }

// ToolResultEvent - emitted when a tool invocation finishes
type ToolResultEvent struct {
	BaseEvent
	Iteration int
	CallID    string
	ToolName  string
	Result    string
	Error     error
	Duration  time.Duration
}

func (e *ToolResultEvent) EventType() string { return "tool_result" }

// CompletedEvent - terminal, emitted when the model naturally ends its turn
type CompletedEvent struct {
	BaseEvent
	Summary    string
	Iterations int
	ToolCalls  int
	Duration   time.Duration
}

func (e *CompletedEvent) EventType() string { return "completed" }

// FailedEvent - terminal, emitted on model errors, cancellation, or an
// exhausted iteration budget
type FailedEvent struct {
	BaseEvent
	Reason     string
	Iterations int
	Duration   time.Duration
}

func (e *FailedEvent) EventType() string { return "failed" }
