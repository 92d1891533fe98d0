// Package scheduler decides which pending task may start next, subject to a
// global concurrency ceiling and per-role cooldowns.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"conductor/internal/agent/ports"
	"conductor/internal/task"
)

// Options configures scheduling behaviour. Start from DefaultOptions.
type Options struct {
	// MaxConcurrent caps simultaneously running tasks. Default 1: tasks
	// execute effectively serially unless raised.
	MaxConcurrent int

	// PriorityWeights score task priority. Multiplied with the role weight
	// they dominate the aging term for the first tens of minutes.
	PriorityWeights map[task.Priority]int

	// TypeWeights are role-specific multipliers. Verification work outranks
	// generative work by default.
	TypeWeights map[task.Role]int

	// Cooldown is the minimum spacing between two runs of the same role.
	Cooldown time.Duration
}

const defaultTypeWeight = 10

// DefaultOptions returns the stock weights and limits.
func DefaultOptions() Options {
	return Options{
		MaxConcurrent: 1,
		PriorityWeights: map[task.Priority]int{
			task.PriorityCritical: 1000,
			task.PriorityHigh:     100,
			task.PriorityNormal:   10,
			task.PriorityLow:      1,
		},
		TypeWeights: map[task.Role]int{
			task.RoleQA:       100,
			task.RoleTest:     80,
			task.RoleFeature:  50,
			task.RoleRefactor: 30,
		},
		Cooldown: time.Second,
	}
}

// ScheduledTask is a task plus its computed score. Owned exclusively by the
// scheduler; recomputed whenever scheduling options change.
type ScheduledTask struct {
	Task           *task.Task
	Score          int
	ScheduledAt    time.Time
	EstimatedStart time.Time

	seq uint64 // insertion order, stable tie-break
}

// Scheduler holds the priority-ordered queue, the running set, and the
// per-role cooldown bookkeeping. All entry points are safe for concurrent use
// by independent execution workers.
type Scheduler struct {
	mu      sync.Mutex
	opts    Options
	queue   []*ScheduledTask
	running map[string]task.Role
	lastRun map[task.Role]time.Time
	clock   ports.Clock
	logger  ports.Logger
	nextSeq uint64
}

// New builds a scheduler with the given options.
func New(opts Options, clock ports.Clock, logger ports.Logger) *Scheduler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Scheduler{
		opts:    opts,
		running: make(map[string]task.Role),
		lastRun: make(map[task.Role]time.Time),
		clock:   ports.OrSystem(clock),
		logger:  ports.OrNop(logger),
	}
}

// CalculatePriority computes priorityWeight * typeWeight plus one aging point
// per minute waited. The aging term is non-decreasing over time, so no task
// starves indefinitely even at the lowest priority/role combination.
func (s *Scheduler) CalculatePriority(t *task.Task) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scoreLocked(t, s.clock.Now())
}

func (s *Scheduler) scoreLocked(t *task.Task, now time.Time) int {
	pw := s.opts.PriorityWeights[t.Priority]
	tw, ok := s.opts.TypeWeights[t.Role]
	if !ok {
		tw = defaultTypeWeight
	}
	aging := 0
	if waited := now.Sub(t.CreatedAt); waited > 0 {
		aging = int(waited / time.Minute)
	}
	return pw*tw + aging
}

// Schedule computes the task's score and inserts it into the ordered queue
// (descending by score, stable on insertion order).
func (s *Scheduler) Schedule(t *task.Task) *ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	st := &ScheduledTask{
		Task:        t.Clone(),
		Score:       s.scoreLocked(t, now),
		ScheduledAt: now,
		seq:         s.nextSeq,
	}
	s.nextSeq++
	s.queue = append(s.queue, st)
	s.sortLocked()
	s.estimateLocked(now)

	s.logger.Debug("scheduled task %s (role=%s score=%d queue=%d)", t.ID, t.Role, st.Score, len(s.queue))
	return s.snapshotLocked(st)
}

func (s *Scheduler) sortLocked() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].Score != s.queue[j].Score {
			return s.queue[i].Score > s.queue[j].Score
		}
		return s.queue[i].seq < s.queue[j].seq
	})
}

// estimateLocked refreshes advisory start estimates: queue position times the
// cooldown window, from now.
func (s *Scheduler) estimateLocked(now time.Time) {
	for i, st := range s.queue {
		st.EstimatedStart = now.Add(time.Duration(i) * s.opts.Cooldown)
	}
}

// Next returns the highest-scored task whose role is not in cooldown, or nil
// when the concurrency ceiling is reached or nothing is eligible. A role in
// cooldown is skipped even when it holds the top score, which deliberately
// lets a lower-priority task of a different role run ahead: strict priority
// order is traded for rate-limiting a noisy role.
func (s *Scheduler) Next() *ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.running) >= s.opts.MaxConcurrent {
		return nil
	}

	now := s.clock.Now()
	for _, st := range s.queue {
		if s.inCooldownLocked(st.Task.Role, now) {
			continue
		}
		return s.snapshotLocked(st)
	}
	return nil
}

func (s *Scheduler) inCooldownLocked(role task.Role, now time.Time) bool {
	last, ok := s.lastRun[role]
	if !ok {
		return false
	}
	return now.Sub(last) < s.opts.Cooldown
}

// MarkRunning removes the task from the queue and adds it to the running set.
func (s *Scheduler) MarkRunning(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, st := range s.queue {
		if st.Task.ID == taskID {
			s.running[taskID] = st.Task.Role
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// MarkComplete removes the task from the running set and stamps the role's
// last-run time, starting its cooldown window.
func (s *Scheduler) MarkComplete(taskID string, role task.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, taskID)
	s.lastRun[role] = s.clock.Now()
}

// Remove drops a task from the queue without running it (cancellation).
// Returns true if the task was queued.
func (s *Scheduler) Remove(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, st := range s.queue {
		if st.Task.ID == taskID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Reprioritize recomputes every queued task's score, picking up aging and any
// option changes, and re-sorts the queue.
func (s *Scheduler) Reprioritize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reprioritizeLocked()
}

func (s *Scheduler) reprioritizeLocked() {
	now := s.clock.Now()
	for _, st := range s.queue {
		st.Score = s.scoreLocked(st.Task, now)
	}
	s.sortLocked()
	s.estimateLocked(now)
}

// SetOptions swaps the scheduling options at runtime and reprioritizes, so
// queued scores reflect the new weights immediately.
func (s *Scheduler) SetOptions(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	s.opts = opts
	s.reprioritizeLocked()
}

// Options returns a copy of the current options.
func (s *Scheduler) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := s.opts
	opts.PriorityWeights = cloneMap(s.opts.PriorityWeights)
	opts.TypeWeights = cloneMap(s.opts.TypeWeights)
	return opts
}

// RunningCount returns the size of the running set.
func (s *Scheduler) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// QueuedCount returns the number of tasks waiting in the queue.
func (s *Scheduler) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Queued returns a snapshot of the queue in scheduling order.
func (s *Scheduler) Queued() []*ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ScheduledTask, len(s.queue))
	for i, st := range s.queue {
		out[i] = s.snapshotLocked(st)
	}
	return out
}

func (s *Scheduler) snapshotLocked(st *ScheduledTask) *ScheduledTask {
	return &ScheduledTask{
		Task:           st.Task.Clone(),
		Score:          st.Score,
		ScheduledAt:    st.ScheduledAt,
		EstimatedStart: st.EstimatedStart,
		seq:            st.seq,
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
