package task

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"conductor/internal/agent/ports"
	"conductor/internal/events"
	id "conductor/internal/utils/id"
)

// Sentinel errors returned by registry operations.
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRetriesExhausted  = errors.New("retry budget exhausted")
	ErrTaskRunning       = errors.New("task is running")
	ErrUnknownRole       = errors.New("unknown role")
)

const defaultMaxRetries = 3

// DefaultAutonomyPolicy is the role -> autonomy table applied when the caller
// supplies none. Verification roles run free, generative roles are supervised.
func DefaultAutonomyPolicy() map[Role]AutonomyLevel {
	return map[Role]AutonomyLevel{
		RoleDocs:     AutonomyFull,
		RoleTest:     AutonomyFull,
		RoleQA:       AutonomyFull,
		RoleRefactor: AutonomySupervised,
		RoleFeature:  AutonomySupervised,
	}
}

// Registry owns the canonical task records and their status transitions. All
// reads return copies, so repeated queries between mutations are identical
// and callers can never mutate registry state through a returned task.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	order  []string // insertion order, for stable tie-breaks
	policy map[Role]AutonomyLevel
	bus    events.Publisher
	clock  ports.Clock
	logger ports.Logger
}

// RegistryConfig captures the dependencies of a Registry.
type RegistryConfig struct {
	// AutonomyPolicy maps roles to their autonomy level at creation time.
	// Roles absent from the table default to supervised (fail-safe).
	AutonomyPolicy map[Role]AutonomyLevel
	Bus            events.Publisher
	Clock          ports.Clock
	Logger         ports.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	policy := cfg.AutonomyPolicy
	if policy == nil {
		policy = DefaultAutonomyPolicy()
	}
	bus := cfg.Bus
	if bus == nil {
		bus = events.Discard()
	}
	return &Registry{
		tasks:  make(map[string]*Task),
		policy: policy,
		bus:    bus,
		clock:  ports.OrSystem(cfg.Clock),
		logger: ports.OrNop(cfg.Logger),
	}
}

// Create builds a Task with a fresh id, pending status, zero retries and the
// autonomy level looked up from the role policy table. Emits task.added.
func (r *Registry) Create(input CreateInput) (*Task, error) {
	if !input.Role.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, input.Role)
	}

	priority := input.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	maxRetries := input.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	// Copy the options map so later caller mutations cannot reach the
	// internal record; reads are already protected by Clone.
	var options map[string]any
	if input.Options != nil {
		options = make(map[string]any, len(input.Options))
		for k, v := range input.Options {
			options[k] = v
		}
	}

	r.mu.Lock()
	autonomy, ok := r.policy[input.Role]
	if !ok {
		autonomy = AutonomySupervised
	}

	t := &Task{
		ID:            id.NewTaskID(),
		Role:          input.Role,
		Status:        StatusPending,
		Priority:      priority,
		AutonomyLevel: autonomy,
		Title:         input.Title,
		Description:   input.Description,
		Target:        input.Target,
		WorkingDir:    input.WorkingDir,
		MaxIterations: input.MaxIterations,
		Options:       options,
		CreatedAt:     r.clock.Now(),
		MaxRetries:    maxRetries,
		ParentTaskID:  input.ParentTaskID,
	}
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	snapshot := t.Clone()
	r.mu.Unlock()

	r.logger.Info("task created: id=%s role=%s priority=%s autonomy=%s", t.ID, t.Role, t.Priority, t.AutonomyLevel)
	r.bus.Publish(events.NewTaskAddedEvent(snapshot.ID, string(snapshot.Role), snapshot.CreatedAt))
	return snapshot, nil
}

// Get returns a copy of the task, or ErrTaskNotFound.
func (r *Registry) Get(taskID string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return t.Clone(), nil
}

// UpdateStatus transitions a task, stamping StartedAt on the first move to
// running and CompletedAt on any terminal status. The task.status_changed
// event is published synchronously with the mutation, carrying the previous
// status, so listeners observe a monotonic sequence with no gaps.
func (r *Registry) UpdateStatus(taskID string, status Status) error {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	previous := t.Status
	if !previous.CanTransition(status) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s (task %s)", ErrInvalidTransition, previous, status, taskID)
	}

	t.Status = status
	now := r.clock.Now()
	if status == StatusRunning && t.StartedAt == nil {
		t.StartedAt = &now
	}
	if status.Terminal() {
		t.CompletedAt = &now
	}
	r.mu.Unlock()

	r.logger.Debug("task %s: %s -> %s", taskID, previous, status)
	r.bus.Publish(events.NewTaskStatusChangedEvent(taskID, string(previous), string(status), now))
	return nil
}

// SetResult attaches the final result summary to a task. Emits task.updated.
func (r *Registry) SetResult(taskID string, result Result) error {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	res := result
	t.Result = &res
	r.mu.Unlock()

	r.bus.Publish(events.NewTaskUpdatedEvent(taskID, r.clock.Now()))
	return nil
}

// GetNext selects the pending task with the lexicographically smallest
// (priority rank, creation time) pair: what would run next if cooldowns and
// concurrency did not matter. Ties break in insertion order.
func (r *Registry) GetNext() *Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Task
	for _, taskID := range r.order {
		t := r.tasks[taskID]
		if t == nil || t.Status != StatusPending {
			continue
		}
		if best == nil {
			best = t
			continue
		}
		if t.Priority.Rank() < best.Priority.Rank() ||
			(t.Priority.Rank() == best.Priority.Rank() && t.CreatedAt.Before(best.CreatedAt)) {
			best = t
		}
	}
	return best.Clone()
}

// CanRetry reports whether the task still has retry budget.
func (r *Registry) CanRetry(taskID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[taskID]
	return ok && t.RetryCount < t.MaxRetries
}

// IncrementRetry consumes one retry. Fails once the budget is exhausted, so
// RetryCount <= MaxRetries always holds.
func (r *Registry) IncrementRetry(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if t.RetryCount >= t.MaxRetries {
		return fmt.Errorf("%w: task %s (%d/%d)", ErrRetriesExhausted, taskID, t.RetryCount, t.MaxRetries)
	}
	t.RetryCount++
	return nil
}

// AddChildTask appends childID to the parent's child list. The registry never
// cascades status between parent and children; that policy belongs to callers.
func (r *Registry) AddChildTask(parentID, childID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.tasks[parentID]
	if !ok {
		return fmt.Errorf("%w: parent %s", ErrTaskNotFound, parentID)
	}
	child, ok := r.tasks[childID]
	if !ok {
		return fmt.Errorf("%w: child %s", ErrTaskNotFound, childID)
	}

	for _, existing := range parent.ChildTaskIDs {
		if existing == childID {
			return nil
		}
	}
	parent.ChildTaskIDs = append(parent.ChildTaskIDs, childID)
	child.ParentTaskID = parentID
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Statuses []Status
	Roles    []Role
}

func (f Filter) matches(t *Task) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if t.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Roles) > 0 {
		ok := false
		for _, role := range f.Roles {
			if t.Role == role {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// List returns copies of matching tasks sorted by (priority rank, createdAt).
func (r *Registry) List(filter Filter) []*Task {
	r.mu.RLock()
	matched := make([]*Task, 0, len(r.tasks))
	for _, taskID := range r.order {
		t := r.tasks[taskID]
		if t != nil && filter.matches(t) {
			matched = append(matched, t.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority.Rank() != matched[j].Priority.Rank() {
			return matched[i].Priority.Rank() < matched[j].Priority.Rank()
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched
}

// PendingCount returns the number of pending tasks.
func (r *Registry) PendingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, t := range r.tasks {
		if t.Status == StatusPending {
			count++
		}
	}
	return count
}

// Count returns the total number of registered tasks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Remove garbage collects a terminal task. Removal is rejected while the task
// is running or still referenced as someone's child-in-progress.
func (r *Registry) Remove(taskID string) error {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if !t.Status.Terminal() {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskRunning, taskID)
	}
	delete(r.tasks, taskID)
	for i, ordered := range r.order {
		if ordered == taskID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.bus.Publish(events.NewTaskRemovedEvent(taskID, r.clock.Now()))
	return nil
}
