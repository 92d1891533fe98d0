// Package id produces prefixed, time-ordered identifiers for tasks, plans,
// approvals and tool calls.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NewTaskID generates a new task identifier with a stable prefix for display.
func NewTaskID() string {
	return newIdentifier("task")
}

// NewPlanID generates a new execution plan identifier.
func NewPlanID() string {
	return newIdentifier("plan")
}

// NewApprovalID generates a new approval request identifier.
func NewApprovalID() string {
	return newIdentifier("approval")
}

// NewCallID generates a new tool call identifier.
func NewCallID() string {
	return newIdentifier("call")
}

// newIdentifier prefers UUIDv7 for its time-ordered layout so identifiers
// sort by creation time; it falls back to random UUIDs when v7 generation
// fails (entropy exhaustion).
func newIdentifier(prefix string) string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return fmt.Sprintf("%s-%s", prefix, u.String())
}
