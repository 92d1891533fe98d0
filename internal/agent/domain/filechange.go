package domain

import (
	"conductor/internal/agent/ports"
)

// fileModifyingTools is the fixed allow-list of tool names whose calls
// produce FileChange entries, keyed to the change type their name implies.
var fileModifyingTools = map[string]ports.FileChangeType{
	"file_create":     ports.FileCreated,
	"create_file":     ports.FileCreated,
	"file_write":      ports.FileModified,
	"write_file":      ports.FileModified,
	"file_edit":       ports.FileModified,
	"edit_file":       ports.FileModified,
	"replace_in_file": ports.FileModified,
	"file_delete":     ports.FileDeleted,
	"delete_file":     ports.FileDeleted,
}

// pathArgKeys are the argument names checked, in order, for the target path.
var pathArgKeys = []string{"path", "file_path", "filename", "file"}

// classifyFileChange derives a FileChange from a tool call, or false when the
// tool is not file-modifying or carries no recognisable path argument.
func classifyFileChange(call ports.ToolCall) (ports.FileChange, bool) {
	changeType, ok := fileModifyingTools[call.Name]
	if !ok {
		return ports.FileChange{}, false
	}
	for _, key := range pathArgKeys {
		if raw, ok := call.Arguments[key]; ok {
			if path, ok := raw.(string); ok && path != "" {
				return ports.FileChange{Path: path, Type: changeType}, true
			}
		}
	}
	return ports.FileChange{}, false
}

// recordFileChange folds a change into the accumulated list. A path seen as
// created stays created through later edits; a delete always wins.
func recordFileChange(changes []ports.FileChange, change ports.FileChange) []ports.FileChange {
	for i, existing := range changes {
		if existing.Path != change.Path {
			continue
		}
		if change.Type == ports.FileDeleted {
			changes[i].Type = ports.FileDeleted
		}
		return changes
	}
	return append(changes, change)
}
