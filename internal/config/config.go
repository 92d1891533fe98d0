// Package config loads and validates conductor configuration from YAML
// files, with sane defaults for every knob so an empty file is valid.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"conductor/internal/task"
)

// Config is the root configuration document.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Loop      LoopConfig      `yaml:"loop"`
	Approval  ApprovalConfig  `yaml:"approval"`
	Autonomy  AutonomyConfig  `yaml:"autonomy"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// SchedulerConfig controls queue ordering and concurrency.
type SchedulerConfig struct {
	MaxConcurrent   int            `yaml:"max_concurrent"`
	Cooldown        time.Duration  `yaml:"cooldown"`
	PriorityWeights map[string]int `yaml:"priority_weights"`
	TypeWeights     map[string]int `yaml:"type_weights"`
}

// LoopConfig bounds the execution loop.
type LoopConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	MaxRetries    int     `yaml:"max_retries"`
}

// ApprovalConfig controls the approval gate.
type ApprovalConfig struct {
	MaxAutoApprovals int `yaml:"max_auto_approvals"`
}

// AutonomyConfig maps roles to autonomy levels.
type AutonomyConfig struct {
	Roles map[string]string `yaml:"roles"`
}

// CacheConfig controls the tool result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// MetricsConfig controls the Prometheus registry exposure.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig controls the component debug logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrent: 1,
			Cooldown:      time.Second,
			PriorityWeights: map[string]int{
				"critical": 1000,
				"high":     100,
				"normal":   10,
				"low":      1,
			},
			TypeWeights: map[string]int{
				"qa":       100,
				"test":     80,
				"feature":  50,
				"refactor": 30,
			},
		},
		Loop: LoopConfig{
			MaxIterations: 10,
			Temperature:   0.2,
			MaxTokens:     4096,
			MaxRetries:    3,
		},
		Approval: ApprovalConfig{
			MaxAutoApprovals: 100,
		},
		Autonomy: AutonomyConfig{
			Roles: map[string]string{
				"docs":     "full",
				"test":     "full",
				"qa":       "full",
				"refactor": "supervised",
				"feature":  "supervised",
			},
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 256,
			TTL:     5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9464",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path and merges it over the defaults. A
// missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values that would make the system misbehave silently.
func (c *Config) Validate() error {
	if c.Scheduler.MaxConcurrent < 1 {
		return fmt.Errorf("scheduler.max_concurrent must be >= 1, got %d", c.Scheduler.MaxConcurrent)
	}
	if c.Scheduler.Cooldown < 0 {
		return fmt.Errorf("scheduler.cooldown must not be negative, got %s", c.Scheduler.Cooldown)
	}
	for name, w := range c.Scheduler.PriorityWeights {
		if w < 0 {
			return fmt.Errorf("scheduler.priority_weights.%s must not be negative, got %v", name, w)
		}
	}
	for name, w := range c.Scheduler.TypeWeights {
		if w < 0 {
			return fmt.Errorf("scheduler.type_weights.%s must not be negative, got %v", name, w)
		}
	}
	if c.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.max_iterations must be >= 1, got %d", c.Loop.MaxIterations)
	}
	if c.Loop.MaxRetries < 0 {
		return fmt.Errorf("loop.max_retries must not be negative, got %d", c.Loop.MaxRetries)
	}
	if c.Approval.MaxAutoApprovals < 0 {
		return fmt.Errorf("approval.max_auto_approvals must not be negative, got %d", c.Approval.MaxAutoApprovals)
	}
	for role, level := range c.Autonomy.Roles {
		if !task.Role(role).Known() {
			return fmt.Errorf("autonomy.roles: unknown role %q", role)
		}
		switch task.AutonomyLevel(level) {
		case task.AutonomyFull, task.AutonomySupervised, task.AutonomyManual:
		default:
			return fmt.Errorf("autonomy.roles.%s: unknown autonomy level %q", role, level)
		}
	}
	if c.Cache.MaxSize < 1 {
		return fmt.Errorf("cache.max_size must be >= 1, got %d", c.Cache.MaxSize)
	}
	return nil
}

// AutonomyPolicy converts the role table into typed task policy entries.
func (c *Config) AutonomyPolicy() map[task.Role]task.AutonomyLevel {
	policy := make(map[task.Role]task.AutonomyLevel, len(c.Autonomy.Roles))
	for role, level := range c.Autonomy.Roles {
		policy[task.Role(role)] = task.AutonomyLevel(level)
	}
	return policy
}

// SchedulerPriorityWeights converts the string-keyed YAML maps into typed keys.
func (c *Config) SchedulerPriorityWeights() map[task.Priority]int {
	weights := make(map[task.Priority]int, len(c.Scheduler.PriorityWeights))
	for p, w := range c.Scheduler.PriorityWeights {
		weights[task.Priority(p)] = w
	}
	return weights
}

// SchedulerTypeWeights converts the string-keyed YAML maps into typed keys.
func (c *Config) SchedulerTypeWeights() map[task.Role]int {
	weights := make(map[task.Role]int, len(c.Scheduler.TypeWeights))
	for r, w := range c.Scheduler.TypeWeights {
		weights[task.Role(r)] = w
	}
	return weights
}
