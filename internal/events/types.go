package events

import "time"

// Event type identifiers published by the task registry and approval gate.
const (
	TypeTaskAdded         = "task.added"
	TypeTaskUpdated       = "task.updated"
	TypeTaskRemoved       = "task.removed"
	TypeTaskStatusChanged = "task.status_changed"
	TypeApprovalRequested = "approval.requested"
	TypeApprovalResolved  = "approval.resolved"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// TaskAddedEvent is emitted when a task is registered.
type TaskAddedEvent struct {
	baseEvent
	TaskID string
	Role   string
}

// NewTaskAddedEvent creates a TaskAddedEvent.
func NewTaskAddedEvent(taskID, role string, ts time.Time) *TaskAddedEvent {
	return &TaskAddedEvent{baseEvent{TypeTaskAdded, ts}, taskID, role}
}

// TaskUpdatedEvent is emitted when task fields other than status change.
type TaskUpdatedEvent struct {
	baseEvent
	TaskID string
}

// NewTaskUpdatedEvent creates a TaskUpdatedEvent.
func NewTaskUpdatedEvent(taskID string, ts time.Time) *TaskUpdatedEvent {
	return &TaskUpdatedEvent{baseEvent{TypeTaskUpdated, ts}, taskID}
}

// TaskRemovedEvent is emitted when a terminal task is garbage collected.
type TaskRemovedEvent struct {
	baseEvent
	TaskID string
}

// NewTaskRemovedEvent creates a TaskRemovedEvent.
func NewTaskRemovedEvent(taskID string, ts time.Time) *TaskRemovedEvent {
	return &TaskRemovedEvent{baseEvent{TypeTaskRemoved, ts}, taskID}
}

// TaskStatusChangedEvent is emitted synchronously with every status mutation,
// carrying the previous status so listeners observe a gapless sequence.
type TaskStatusChangedEvent struct {
	baseEvent
	TaskID         string
	PreviousStatus string
	Status         string
}

// NewTaskStatusChangedEvent creates a TaskStatusChangedEvent.
func NewTaskStatusChangedEvent(taskID, previous, current string, ts time.Time) *TaskStatusChangedEvent {
	return &TaskStatusChangedEvent{baseEvent{TypeTaskStatusChanged, ts}, taskID, previous, current}
}

// ApprovalRequestedEvent is emitted when a plan is held for sign-off.
type ApprovalRequestedEvent struct {
	baseEvent
	RequestID string
	TaskID    string
	Summary   string
}

// NewApprovalRequestedEvent creates an ApprovalRequestedEvent.
func NewApprovalRequestedEvent(requestID, taskID, summary string, ts time.Time) *ApprovalRequestedEvent {
	return &ApprovalRequestedEvent{baseEvent{TypeApprovalRequested, ts}, requestID, taskID, summary}
}

// ApprovalResolvedEvent is emitted once a pending request is decided.
type ApprovalResolvedEvent struct {
	baseEvent
	RequestID string
	TaskID    string
	Approved  bool
	Reason    string
}

// NewApprovalResolvedEvent creates an ApprovalResolvedEvent.
func NewApprovalResolvedEvent(requestID, taskID string, approved bool, reason string, ts time.Time) *ApprovalResolvedEvent {
	return &ApprovalResolvedEvent{baseEvent{TypeApprovalResolved, ts}, requestID, taskID, approved, reason}
}
