package ports

import "time"

// FileChangeType classifies what happened to a file during a run.
type FileChangeType string

const (
	FileCreated  FileChangeType = "created"
	FileModified FileChangeType = "modified"
	FileDeleted  FileChangeType = "deleted"
)

// FileChange is a derived record of one file touched by a file-modifying tool.
type FileChange struct {
	Path string         `json:"path"`
	Type FileChangeType `json:"type"`
}

// ToolExecutionRecord captures one tool call made during a run.
type ToolExecutionRecord struct {
	CallID    string         `json:"call_id"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Output    string         `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration"`
}

// AgentResult is the outcome of one execution loop run. Orchestrator callers
// always receive a structured result, never an exception path: failures are
// reported through Success=false and Error.
type AgentResult struct {
	TaskID      string                `json:"task_id"`
	Success     bool                  `json:"success"`
	Summary     string                `json:"summary,omitempty"`
	Error       string                `json:"error,omitempty"`
	StopReason  string                `json:"stop_reason"`
	Iterations  int                   `json:"iterations"`
	ToolRecords []ToolExecutionRecord `json:"tool_records,omitempty"`
	FileChanges []FileChange          `json:"file_changes,omitempty"`
	TokensUsed  int                   `json:"tokens_used"`
	Duration    time.Duration         `json:"duration"`
}
