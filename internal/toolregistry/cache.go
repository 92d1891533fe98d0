package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"conductor/internal/agent/ports"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 5 * time.Minute
)

// CacheConfig configures the tool result cache behaviour.
type CacheConfig struct {
	// MaxSize is the maximum number of entries in the LRU cache.
	MaxSize int
	// TTL is how long a cached result remains valid.
	TTL time.Duration
	// ExcludeTools lists tool names that should never be cached.
	ExcludeTools []string
}

// DefaultCacheConfig returns sensible defaults for tool result caching.
// File-modifying tools are excluded: caching their results would skip the
// side effect on replay.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize: defaultCacheMaxSize,
		TTL:     defaultCacheTTL,
		ExcludeTools: []string{
			"file_write",
			"write_file",
			"file_edit",
			"edit_file",
			"replace_in_file",
			"file_create",
			"create_file",
			"file_delete",
			"delete_file",
			"shell_exec",
			"bash",
		},
	}
}

// cacheEntry holds a cached tool result along with the timestamp it was stored.
type cacheEntry struct {
	content  string
	metadata map[string]any
	storedAt time.Time
}

// cacheExecutor is a ToolExecutor wrapper that caches tool results keyed by
// (toolName + normalised arguments).
type cacheExecutor struct {
	delegate     ports.ToolExecutor
	cache        *lru.Cache[string, cacheEntry]
	ttl          time.Duration
	excludeTools map[string]bool
}

// NewCacheExecutor wraps delegate with an LRU result cache.
// If config values are zero they fall back to DefaultCacheConfig defaults.
func NewCacheExecutor(delegate ports.ToolExecutor, config CacheConfig) ports.ToolExecutor {
	if delegate == nil {
		return nil
	}
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	cache, err := lru.New[string, cacheEntry](config.MaxSize)
	if err != nil {
		return delegate
	}
	return &cacheExecutor{
		delegate:     delegate,
		cache:        cache,
		ttl:          config.TTL,
		excludeTools: excludeSet(config.ExcludeTools),
	}
}

// CachedRegistry wraps a registry so every read-only tool fetched through Get
// carries the result cache. The registry owns one cache shared by every
// executor it hands out; entries survive repeated Get calls, which matters
// because the execution loop re-fetches the tool on every call. Keys include
// the tool name, so one cache can serve all tools.
type CachedRegistry struct {
	inner   ports.ToolRegistry
	cache   *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	exclude map[string]bool
}

// NewCachedRegistry decorates registry lookups with result caching.
// Zero config values fall back to DefaultCacheConfig defaults.
func NewCachedRegistry(inner ports.ToolRegistry, config CacheConfig) *CachedRegistry {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	cache, _ := lru.New[string, cacheEntry](config.MaxSize)
	return &CachedRegistry{
		inner:   inner,
		cache:   cache,
		ttl:     config.TTL,
		exclude: excludeSet(config.ExcludeTools),
	}
}

func (r *CachedRegistry) Register(tool ports.ToolExecutor) error { return r.inner.Register(tool) }
func (r *CachedRegistry) List() []ports.ToolDefinition           { return r.inner.List() }
func (r *CachedRegistry) Unregister(name string) error           { return r.inner.Unregister(name) }

func (r *CachedRegistry) Get(name string) (ports.ToolExecutor, error) {
	tool, err := r.inner.Get(name)
	if err != nil {
		return nil, err
	}
	if r.cache == nil {
		return tool, nil
	}
	return &cacheExecutor{
		delegate:     tool,
		cache:        r.cache,
		ttl:          r.ttl,
		excludeTools: r.exclude,
	}, nil
}

func excludeSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[strings.TrimSpace(name)] = true
	}
	return set
}

var _ ports.ToolRegistry = (*CachedRegistry)(nil)

func (c *cacheExecutor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if c.shouldSkip(call) {
		return c.delegate.Execute(ctx, call)
	}

	key := c.cacheKey(call)

	if entry, ok := c.cache.Get(key); ok {
		if time.Since(entry.storedAt) < c.ttl {
			// Cache hit, return a copy with the current call's ID.
			return &ports.ToolResult{
				CallID:   call.ID,
				Content:  entry.content,
				Metadata: cloneMetadata(entry.metadata),
			}, nil
		}
		// Expired: evict so the LRU bookkeeping stays clean.
		c.cache.Remove(key)
	}

	result, err := c.delegate.Execute(ctx, call)
	if err != nil {
		return result, err
	}
	// Do not cache error results.
	if result != nil && result.Error != nil {
		return result, nil
	}
	if result != nil {
		c.cache.Add(key, cacheEntry{
			content:  result.Content,
			metadata: cloneMetadata(result.Metadata),
			storedAt: time.Now(),
		})
	}
	return result, nil
}

func (c *cacheExecutor) Definition() ports.ToolDefinition {
	return c.delegate.Definition()
}

func (c *cacheExecutor) Metadata() ports.ToolMetadata {
	return c.delegate.Metadata()
}

// shouldSkip returns true when caching must be bypassed for this call.
func (c *cacheExecutor) shouldSkip(call ports.ToolCall) bool {
	name := strings.TrimSpace(call.Name)
	if name == "" {
		name = strings.TrimSpace(c.delegate.Metadata().Name)
	}
	if c.excludeTools[name] {
		return true
	}
	return c.delegate.Metadata().Dangerous
}

// cacheKey produces a deterministic string key from tool name + arguments.
func (c *cacheExecutor) cacheKey(call ports.ToolCall) string {
	name := strings.TrimSpace(call.Name)
	if name == "" {
		name = strings.TrimSpace(c.delegate.Metadata().Name)
	}
	return fmt.Sprintf("%s:%s", name, normalizeArgs(call.Arguments))
}

// normalizeArgs serialises a map[string]any into a deterministic JSON string
// by sorting keys at every level.
func normalizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(sortedMap(args))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// sortedMap normalises nested maps to the same concrete type so json.Marshal
// serialises every level with sorted keys.
func sortedMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		if nested, ok := v.(map[string]any); ok {
			v = sortedMap(nested)
		}
		out[k] = v
	}
	return out
}

// cloneMetadata performs a shallow copy of metadata so cached entries do not
// alias caller maps.
func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

var _ ports.ToolExecutor = (*cacheExecutor)(nil)
