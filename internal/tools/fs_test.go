package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/agent/ports"
	"conductor/internal/toolregistry"
)

func newToolset(t *testing.T) (ports.ToolRegistry, string) {
	t.Helper()
	root := t.TempDir()
	reg := toolregistry.New()
	require.NoError(t, RegisterFileTools(reg, root))
	return reg, root
}

func execute(t *testing.T, reg ports.ToolRegistry, name string, args map[string]any) (*ports.ToolResult, error) {
	t.Helper()
	tool, err := reg.Get(name)
	require.NoError(t, err)
	if v, ok := tool.(ports.ToolValidator); ok {
		if err := v.Validate(args); err != nil {
			return nil, err
		}
	}
	return tool.Execute(context.Background(), ports.ToolCall{ID: "call-1", Name: name, Arguments: args})
}

func TestRegisterFileTools(t *testing.T) {
	reg, _ := newToolset(t)
	defs := reg.List()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	assert.Equal(t, []string{"file_delete", "file_read", "file_write", "list_dir"}, names)
}

func TestWriteThenRead(t *testing.T) {
	reg, root := newToolset(t)

	result, err := execute(t, reg, "file_write", map[string]any{"path": "pkg/a.txt", "content": "hello"})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "5 bytes")

	data, err := os.ReadFile(filepath.Join(root, "pkg", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	read, err := execute(t, reg, "file_read", map[string]any{"path": "pkg/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello", read.Content)
}

func TestReadMissingFile(t *testing.T) {
	reg, _ := newToolset(t)
	_, err := execute(t, reg, "file_read", map[string]any{"path": "absent.txt"})
	assert.Error(t, err)
}

func TestDeleteFile(t *testing.T) {
	reg, root := newToolset(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "junk.txt"), []byte("x"), 0o644))

	_, err := execute(t, reg, "file_delete", map[string]any{"path": "junk.txt"})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "junk.txt"))
}

func TestDeleteRejectsDirectory(t *testing.T) {
	reg, root := newToolset(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	_, err := execute(t, reg, "file_delete", map[string]any{"path": "sub"})
	assert.ErrorContains(t, err, "is a directory")
}

func TestListDir(t *testing.T) {
	reg, root := newToolset(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	result, err := execute(t, reg, "list_dir", map[string]any{"path": "."})
	require.NoError(t, err)
	assert.Equal(t, "a.txt\nb.txt\nsub/", result.Content)
}

func TestPathEscapesRejected(t *testing.T) {
	reg, _ := newToolset(t)

	for _, path := range []string{"../outside.txt", "a/../../outside.txt", "/etc/passwd"} {
		_, err := execute(t, reg, "file_read", map[string]any{"path": path})
		assert.Error(t, err, "path %q", path)
	}
}

func TestValidateArguments(t *testing.T) {
	reg, _ := newToolset(t)

	_, err := execute(t, reg, "file_read", map[string]any{})
	assert.ErrorContains(t, err, "path must be a non-empty string")

	_, err = execute(t, reg, "file_write", map[string]any{"path": "a.txt"})
	assert.ErrorContains(t, err, "content must be a string")

	_, err = execute(t, reg, "file_write", map[string]any{"path": "a.txt", "content": 5})
	assert.ErrorContains(t, err, "content must be a string")
}
