// Package scheduler owns the single-flight task run slot and the task /
// task-domain state machines.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pricing_server/core/domain"
	"pricing_server/core/port/in"
	"pricing_server/core/port/out"
	"pricing_server/pkg/apperr"
	"pricing_server/pkg/logger"
)

// PriceResolver yields the best grounded price candidate for one domain.
// (nil, nil) means no evidence, which is an answer rather than an error.
type PriceResolver interface {
	Resolve(ctx context.Context, targetDomain string) (*domain.PriceCandidate, error)
}

const defaultRecoveryGrace = 5 * time.Second

// Config tunes scheduler behavior.
type Config struct {
	// RecoveryGrace delays the single auto-resume after crash recovery so
	// the rest of the process finishes booting first.
	RecoveryGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.RecoveryGrace <= 0 {
		c.RecoveryGrace = defaultRecoveryGrace
	}
	return c
}

// Scheduler drives batch pricing runs. Exactly one task executes at a time;
// a second start request is queued. Pause and cancel are cooperative,
// observed only at domain-iteration boundaries.
type Scheduler struct {
	tasks    out.TaskRepository
	taskDoms out.TaskDomainRepository
	prices   out.ResolvedPriceRepository
	resolver PriceResolver
	notifier out.Notifier
	cfg      Config
	log      *logger.Logger

	mu        sync.Mutex
	runningID int64 // 0 means the run slot is free
	paused    map[int64]bool
	cancelled map[int64]bool

	seq atomic.Int64
	wg  sync.WaitGroup
}

var _ in.TaskService = (*Scheduler)(nil)

// New creates the scheduler.
func New(tasks out.TaskRepository, taskDoms out.TaskDomainRepository, prices out.ResolvedPriceRepository, res PriceResolver, notifier out.Notifier, cfg Config) *Scheduler {
	return &Scheduler{
		tasks:     tasks,
		taskDoms:  taskDoms,
		prices:    prices,
		resolver:  res,
		notifier:  notifier,
		cfg:       cfg.withDefaults(),
		log:       logger.WithField("component", "scheduler"),
		paused:    make(map[int64]bool),
		cancelled: make(map[int64]bool),
	}
}

// =============================================================================
// Task CRUD
// =============================================================================

// CreateTask registers a new batch of domains. Input domains are normalized
// and deduplicated; the task starts pending.
func (s *Scheduler) CreateTask(ctx context.Context, name string, domainList []string) (*domain.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.MissingField("name")
	}

	seen := make(map[string]struct{}, len(domainList))
	var cleaned []string
	for _, d := range domainList {
		nd := domain.NormalizeDomain(d)
		if nd == "" {
			continue
		}
		if _, dup := seen[nd]; dup {
			continue
		}
		seen[nd] = struct{}{}
		cleaned = append(cleaned, nd)
	}
	if len(cleaned) == 0 {
		return nil, apperr.ValidationFailed("at least one valid domain is required")
	}

	task := &domain.Task{
		Name:         name,
		Status:       domain.TaskStatusPending,
		TotalDomains: len(cleaned),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, apperr.DatabaseError("create task", err)
	}

	rows := make([]*domain.TaskDomain, len(cleaned))
	for i, nd := range cleaned {
		rows[i] = &domain.TaskDomain{
			TaskID: task.ID,
			Domain: nd,
			Status: domain.DomainStatusPending,
		}
	}
	if err := s.taskDoms.BulkCreate(ctx, rows); err != nil {
		return nil, apperr.DatabaseError("create task domains", err)
	}

	s.log.Info("task %d created with %d domains", task.ID, len(cleaned))
	s.publishTask(ctx, task)
	return task, nil
}

// GetTask returns one task.
func (s *Scheduler) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return s.tasks.Get(ctx, id)
}

// ListTasks lists tasks, optionally filtered by status.
func (s *Scheduler) ListTasks(ctx context.Context, status *domain.TaskStatus) ([]*domain.Task, error) {
	return s.tasks.List(ctx, status)
}

// ListTaskDomains returns a task's domain rows in creation order.
func (s *Scheduler) ListTaskDomains(ctx context.Context, taskID int64) ([]*domain.TaskDomain, error) {
	if _, err := s.tasks.Get(ctx, taskID); err != nil {
		return nil, err
	}
	return s.taskDoms.ListByTask(ctx, taskID)
}

// DeleteTask removes a task and its domain rows. Active tasks cannot be
// deleted; cancel first.
func (s *Scheduler) DeleteTask(ctx context.Context, id int64) error {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	switch task.Status {
	case domain.TaskStatusRunning, domain.TaskStatusQueued:
		return apperr.Conflict("cannot delete an active task, cancel it first")
	}
	return s.tasks.Delete(ctx, id)
}

// =============================================================================
// Lifecycle Operations
// =============================================================================

// StartTask runs a pending or paused task. When the run slot is taken by
// another task, this task is queued instead.
func (s *Scheduler) StartTask(ctx context.Context, id int64) error {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	switch task.Status {
	case domain.TaskStatusPending, domain.TaskStatusPaused:
		// startable
	case domain.TaskStatusRunning:
		return apperr.SchedulerInvariant("task is already running")
	case domain.TaskStatusQueued:
		return apperr.SchedulerInvariant("task is already queued")
	default:
		return apperr.SchedulerInvariant(fmt.Sprintf("cannot start a %s task", task.Status))
	}

	s.mu.Lock()
	if s.runningID != 0 {
		s.mu.Unlock()
		if err := s.tasks.UpdateStatus(ctx, id, domain.TaskStatusQueued); err != nil {
			return apperr.DatabaseError("queue task", err)
		}
		s.log.Info("run slot taken, task %d queued", id)
		s.publishTaskByID(ctx, id)
		return nil
	}
	s.runningID = id
	delete(s.paused, id)
	delete(s.cancelled, id)
	s.mu.Unlock()

	return s.launch(ctx, id)
}

// PauseTask requests a cooperative pause of the running task. A queued task
// is dequeued back to pending instead.
func (s *Scheduler) PauseTask(ctx context.Context, id int64) error {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	switch task.Status {
	case domain.TaskStatusRunning:
		s.mu.Lock()
		s.paused[id] = true
		s.mu.Unlock()
		s.log.Info("pause requested for task %d", id)
		return nil
	case domain.TaskStatusQueued:
		if err := s.tasks.UpdateStatus(ctx, id, domain.TaskStatusPending); err != nil {
			return apperr.DatabaseError("dequeue task", err)
		}
		s.publishTaskByID(ctx, id)
		return nil
	default:
		return apperr.SchedulerInvariant(fmt.Sprintf("cannot pause a %s task", task.Status))
	}
}

// CancelTask cancels a task. For the running task the cancel is cooperative:
// the current domain finishes, the rest are skipped. Idle tasks are cancelled
// immediately.
func (s *Scheduler) CancelTask(ctx context.Context, id int64) error {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	switch task.Status {
	case domain.TaskStatusRunning:
		s.mu.Lock()
		s.cancelled[id] = true
		s.mu.Unlock()
		s.log.Info("cancel requested for task %d", id)
		return nil
	case domain.TaskStatusPending, domain.TaskStatusQueued, domain.TaskStatusPaused:
		if _, err := s.taskDoms.SkipActive(ctx, id); err != nil {
			return apperr.DatabaseError("skip task domains", err)
		}
		if err := s.tasks.UpdateStatus(ctx, id, domain.TaskStatusCancelled); err != nil {
			return apperr.DatabaseError("cancel task", err)
		}
		s.publishTaskByID(ctx, id)
		return nil
	default:
		return apperr.SchedulerInvariant(fmt.Sprintf("cannot cancel a %s task", task.Status))
	}
}

// RetryFailed reopens a finished task's failed domains and restarts it.
// The status reset is administrative, outside the user transition table,
// same as crash recovery.
func (s *Scheduler) RetryFailed(ctx context.Context, id int64) error {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if !task.Status.IsTerminal() {
		return apperr.SchedulerInvariant(fmt.Sprintf("cannot retry a %s task", task.Status))
	}

	n, err := s.taskDoms.ResetFailed(ctx, id)
	if err != nil {
		return apperr.DatabaseError("reset failed domains", err)
	}
	if n == 0 {
		return apperr.ValidationFailed("task has no failed domains")
	}
	if err := s.tasks.RetryAdjust(ctx, id, int(n)); err != nil {
		return apperr.DatabaseError("adjust task counters", err)
	}
	if err := s.tasks.UpdateStatus(ctx, id, domain.TaskStatusPending); err != nil {
		return apperr.DatabaseError("reopen task", err)
	}
	s.log.Info("task %d reopened with %d failed domains reset", id, n)
	return s.StartTask(ctx, id)
}

// =============================================================================
// Flags & Events
// =============================================================================

func (s *Scheduler) isPaused(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused[id]
}

func (s *Scheduler) isCancelled(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[id]
}

// publish stamps and delivers one event. Delivery is best-effort.
func (s *Scheduler) publish(ctx context.Context, ev *domain.TaskEvent) {
	if s.notifier == nil {
		return
	}
	ev.Seq = s.seq.Add(1)
	ev.Timestamp = time.Now().UTC()
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.log.WithError(err).Debug("event publish failed")
	}
}

func (s *Scheduler) publishTask(ctx context.Context, t *domain.Task) {
	s.publish(ctx, &domain.TaskEvent{Type: domain.EventTaskUpdated, Task: t})
}

func (s *Scheduler) publishTaskByID(ctx context.Context, id int64) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return
	}
	s.publishTask(ctx, t)
}

func (s *Scheduler) publishDomain(ctx context.Context, d *domain.TaskDomain) {
	s.publish(ctx, &domain.TaskEvent{Type: domain.EventDomainUpdated, Domain: d})
}
