package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleKnown(t *testing.T) {
	for _, role := range Roles() {
		assert.True(t, role.Known(), "role %s", role)
	}
	assert.False(t, Role("designer").Known())
	assert.False(t, Role("").Known())
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Less(t, PriorityNormal.Rank(), PriorityLow.Rank())
	assert.Greater(t, Priority("bogus").Rank(), PriorityLow.Rank())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusAwaitingApproval.Terminal())
	assert.False(t, StatusRunning.Terminal())
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusAwaitingApproval, true},
		{StatusPending, StatusCancelled, true},
		{StatusAwaitingApproval, StatusRunning, true},
		{StatusAwaitingApproval, StatusCancelled, true},
		{StatusAwaitingApproval, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCancelled, true},
		{StatusRunning, StatusPending, false},
		{StatusFailed, StatusPending, true}, // retry edge
		{StatusFailed, StatusRunning, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusRunning, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTaskCloneIsDeep(t *testing.T) {
	started := time.Now()
	original := &Task{
		ID:           "task-1",
		Role:         RoleDocs,
		Status:       StatusRunning,
		StartedAt:    &started,
		Options:      map[string]any{"key": "value"},
		Target:       Target{Files: []string{"a.go"}},
		ChildTaskIDs: []string{"task-2"},
		Result:       &Result{Success: true},
	}

	clone := original.Clone()
	require.NotNil(t, clone)

	clone.Options["key"] = "other"
	clone.Target.Files[0] = "b.go"
	clone.ChildTaskIDs[0] = "task-3"
	*clone.StartedAt = started.Add(time.Hour)
	clone.Result.Success = false

	assert.Equal(t, "value", original.Options["key"])
	assert.Equal(t, "a.go", original.Target.Files[0])
	assert.Equal(t, "task-2", original.ChildTaskIDs[0])
	assert.Equal(t, started, *original.StartedAt)
	assert.True(t, original.Result.Success)
}

func TestTaskCloneNil(t *testing.T) {
	var missing *Task
	assert.Nil(t, missing.Clone())
}
