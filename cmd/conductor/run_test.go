package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/agent/ports"
	"conductor/internal/task"
)

func TestLoadTaskList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tasks:
  - role: docs
    title: document the scheduler
    priority: high
    target:
      files: [internal/scheduler/scheduler.go]
  - role: qa
    title: review the approval gate
    max_retries: 1
`), 0o644))

	inputs, err := loadTaskList(path)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, task.RoleDocs, inputs[0].Role)
	assert.Equal(t, "document the scheduler", inputs[0].Title)
	assert.Equal(t, task.PriorityHigh, inputs[0].Priority)
	assert.Equal(t, []string{"internal/scheduler/scheduler.go"}, inputs[0].Target.Files)
	assert.Equal(t, task.RoleQA, inputs[1].Role)
	assert.Equal(t, 1, inputs[1].MaxRetries)
}

func TestLoadTaskListErrors(t *testing.T) {
	_, err := loadTaskList(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tasks: [oops"), 0o644))
	_, err = loadTaskList(path)
	assert.ErrorContains(t, err, "parse task list")
}

func TestScriptedClientInspectsThenSummarizes(t *testing.T) {
	client := newScriptedClient()

	first, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "Task: tidy the docs\n\ndetails"}},
		Tools:    []ports.ToolDefinition{{Name: "list_dir"}},
	})
	require.NoError(t, err)
	require.Len(t, first.ToolCalls, 1)
	assert.Equal(t, "list_dir", first.ToolCalls[0].Name)
	assert.Equal(t, ports.StopReasonToolUse, first.StopReason)

	second, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{
			{Role: "user", Content: "Task: tidy the docs"},
			{Role: "tool", Content: "a.txt\nb.txt"},
		},
		Tools: []ports.ToolDefinition{{Name: "list_dir"}},
	})
	require.NoError(t, err)
	assert.Empty(t, second.ToolCalls)
	assert.Equal(t, ports.StopReasonEndTurn, second.StopReason)
	assert.Contains(t, second.Content, "tidy the docs")
	assert.True(t, second.EndOfTurn())
}

func TestScriptedClientWithoutTools(t *testing.T) {
	client := newScriptedClient()
	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "Task: review"}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.ToolCalls, "no list_dir available means straight to summary")
	assert.Equal(t, ports.StopReasonEndTurn, resp.StopReason)
}

func TestTruncateAndShortID(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "long st...", truncate("long string here", 10))
	assert.Equal(t, "task-0123456", shortID("task-0123456"))
	assert.Equal(t, "task-01234567", shortID("task-01234567890abc"))
}
