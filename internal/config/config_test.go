package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/task"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.Scheduler.MaxConcurrent)
	assert.Equal(t, time.Second, cfg.Scheduler.Cooldown)
	assert.Equal(t, 1000, cfg.Scheduler.PriorityWeights["critical"])
	assert.Equal(t, 100, cfg.Scheduler.TypeWeights["qa"])
	assert.Equal(t, 10, cfg.Loop.MaxIterations)
	assert.Equal(t, 3, cfg.Loop.MaxRetries)
	assert.Equal(t, 100, cfg.Approval.MaxAutoApprovals)
	assert.Equal(t, "full", cfg.Autonomy.Roles["docs"])
	assert.Equal(t, "supervised", cfg.Autonomy.Roles["feature"])
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  max_concurrent: 4
  cooldown: 250ms
loop:
  max_iterations: 25
autonomy:
  roles:
    docs: supervised
    test: full
    qa: full
    refactor: manual
    feature: supervised
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Scheduler.MaxConcurrent)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.Cooldown)
	assert.Equal(t, 25, cfg.Loop.MaxIterations)
	assert.Equal(t, "supervised", cfg.Autonomy.Roles["docs"])
	assert.Equal(t, "manual", cfg.Autonomy.Roles["refactor"])
	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Approval.MaxAutoApprovals)
	assert.Equal(t, 1000, cfg.Scheduler.PriorityWeights["critical"])
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "scheduler: [not a map")
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero concurrency", func(c *Config) { c.Scheduler.MaxConcurrent = 0 }, "max_concurrent"},
		{"negative cooldown", func(c *Config) { c.Scheduler.Cooldown = -time.Second }, "cooldown"},
		{"negative weight", func(c *Config) { c.Scheduler.PriorityWeights["high"] = -1 }, "priority_weights"},
		{"zero iterations", func(c *Config) { c.Loop.MaxIterations = 0 }, "max_iterations"},
		{"negative retries", func(c *Config) { c.Loop.MaxRetries = -1 }, "max_retries"},
		{"unknown role", func(c *Config) { c.Autonomy.Roles["designer"] = "full" }, "unknown role"},
		{"unknown autonomy", func(c *Config) { c.Autonomy.Roles["docs"] = "sometimes" }, "autonomy level"},
		{"zero cache", func(c *Config) { c.Cache.MaxSize = 0 }, "cache.max_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTypedConversions(t *testing.T) {
	cfg := Default()

	policy := cfg.AutonomyPolicy()
	assert.Equal(t, task.AutonomyFull, policy[task.RoleDocs])
	assert.Equal(t, task.AutonomySupervised, policy[task.RoleFeature])

	pw := cfg.SchedulerPriorityWeights()
	assert.Equal(t, 1000, pw[task.PriorityCritical])
	assert.Equal(t, 1, pw[task.PriorityLow])

	tw := cfg.SchedulerTypeWeights()
	assert.Equal(t, 100, tw[task.RoleQA])
	assert.Equal(t, 30, tw[task.RoleRefactor])
}
