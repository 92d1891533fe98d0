// Package tools implements the built-in filesystem tools exposed to the
// execution loop. All paths are resolved inside a fixed root; a tool call
// can never read or write outside it.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"conductor/internal/agent/ports"
)

const maxReadBytes = 256 * 1024

// RegisterFileTools adds the filesystem toolset rooted at root.
func RegisterFileTools(reg ports.ToolRegistry, root string) error {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve tool root: %w", err)
	}
	for _, tool := range []ports.ToolExecutor{
		&readFileTool{root: abs},
		&writeFileTool{root: abs},
		&deleteFileTool{root: abs},
		&listDirTool{root: abs},
	} {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// resolvePath joins rel onto root and rejects escapes.
func resolvePath(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	joined := filepath.Join(root, rel)
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes working root: %s", rel)
	}
	return joined, nil
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok && v != ""
}

func requirePath(args map[string]any) error {
	if _, ok := stringArg(args, "path"); !ok {
		return fmt.Errorf("path must be a non-empty string")
	}
	return nil
}

type readFileTool struct {
	root string
}

func (t *readFileTool) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{Name: "file_read", Version: "1.0", Category: "filesystem", Tags: []string{"read"}}
}

func (t *readFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "file_read",
		Description: "Read a file's contents, relative to the working root.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {Type: "string", Description: "File path relative to the working root"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *readFileTool) Validate(args map[string]any) error { return requirePath(args) }

func (t *readFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	rel, _ := stringArg(call.Arguments, "path")
	path, err := resolvePath(t.root, rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
	}
	return &ports.ToolResult{CallID: call.ID, Content: string(data)}, nil
}

type writeFileTool struct {
	root string
}

func (t *writeFileTool) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{Name: "file_write", Version: "1.0", Category: "filesystem", Tags: []string{"write"}, Dangerous: true}
}

func (t *writeFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "file_write",
		Description: "Write content to a file, creating parent directories as needed.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":    {Type: "string", Description: "File path relative to the working root"},
				"content": {Type: "string", Description: "Full file content to write"},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *writeFileTool) Validate(args map[string]any) error {
	if err := requirePath(args); err != nil {
		return err
	}
	if _, ok := args["content"].(string); !ok {
		return fmt.Errorf("content must be a string")
	}
	return nil
}

func (t *writeFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	rel, _ := stringArg(call.Arguments, "path")
	content, _ := call.Arguments["content"].(string)
	path, err := resolvePath(t.root, rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent for %s: %w", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", rel, err)
	}
	return &ports.ToolResult{CallID: call.ID, Content: fmt.Sprintf("Wrote %d bytes to %s", len(content), rel)}, nil
}

type deleteFileTool struct {
	root string
}

func (t *deleteFileTool) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{Name: "file_delete", Version: "1.0", Category: "filesystem", Tags: []string{"write"}, Dangerous: true}
}

func (t *deleteFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "file_delete",
		Description: "Delete a single file. Directories are not deletable.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {Type: "string", Description: "File path relative to the working root"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *deleteFileTool) Validate(args map[string]any) error { return requirePath(args) }

func (t *deleteFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	rel, _ := stringArg(call.Arguments, "path")
	path, err := resolvePath(t.root, rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", rel)
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("delete %s: %w", rel, err)
	}
	return &ports.ToolResult{CallID: call.ID, Content: fmt.Sprintf("Deleted %s", rel)}, nil
}

type listDirTool struct {
	root string
}

func (t *listDirTool) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{Name: "list_dir", Version: "1.0", Category: "filesystem", Tags: []string{"read"}}
}

func (t *listDirTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "list_dir",
		Description: "List the entries of a directory, relative to the working root.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {Type: "string", Description: "Directory path relative to the working root, \".\" for the root"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *listDirTool) Validate(args map[string]any) error { return requirePath(args) }

func (t *listDirTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	rel, _ := stringArg(call.Arguments, "path")
	path, err := resolvePath(t.root, rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return &ports.ToolResult{CallID: call.ID, Content: strings.Join(names, "\n")}, nil
}
