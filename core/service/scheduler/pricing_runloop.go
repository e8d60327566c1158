package scheduler

import (
	"context"
	"fmt"
	"time"

	"pricing_server/core/domain"
	"pricing_server/pkg/apperr"
)

// =============================================================================
// Run Loop
// =============================================================================

type runOutcome int

const (
	outcomeCompleted runOutcome = iota
	outcomePaused
	outcomeCancelled
)

// launch marks the task running and spawns its run loop. The caller must
// already hold the run slot for this task.
func (s *Scheduler) launch(ctx context.Context, id int64) error {
	if err := s.tasks.UpdateStatus(ctx, id, domain.TaskStatusRunning); err != nil {
		s.mu.Lock()
		s.runningID = 0
		s.mu.Unlock()
		return apperr.DatabaseError("mark task running", err)
	}
	s.publishTaskByID(ctx, id)

	s.wg.Add(1)
	go s.run(id)
	return nil
}

// run processes a task's pending domains strictly sequentially, in creation
// order. Pause and cancel flags are checked only here, at domain boundaries:
// an in-flight resolution always finishes.
func (s *Scheduler) run(taskID int64) {
	defer s.wg.Done()
	ctx := context.Background()
	log := s.log.WithField("task_id", taskID)

	pending, err := s.taskDoms.ListPending(ctx, taskID)
	if err != nil {
		// Store failure: leave the task paused so it stays resumable.
		log.WithError(err).Error("failed to load pending domains")
		s.finish(ctx, taskID, outcomePaused)
		return
	}
	log.Info("run started, %d pending domains", len(pending))

	outcome := outcomeCompleted
	for _, d := range pending {
		if s.isCancelled(taskID) {
			outcome = outcomeCancelled
			break
		}
		if s.isPaused(taskID) {
			outcome = outcomePaused
			break
		}
		s.processDomain(ctx, d)
	}
	// A cancel that lands during the last domain still cancels the task.
	if outcome == outcomeCompleted && s.isCancelled(taskID) {
		outcome = outcomeCancelled
	}

	s.finish(ctx, taskID, outcome)
}

// processDomain resolves one domain and records exactly one terminal outcome:
// completed, no_result or failed. Failures never escape this boundary.
func (s *Scheduler) processDomain(ctx context.Context, d *domain.TaskDomain) {
	log := s.log.WithFields(map[string]any{"task_id": d.TaskID, "domain": d.Domain})

	if err := s.taskDoms.UpdateStatus(ctx, d.ID, domain.DomainStatusRunning, ""); err != nil {
		log.WithError(err).Error("failed to mark domain running")
	}
	d.Status = domain.DomainStatusRunning
	s.publishDomain(ctx, d)

	outcome, errMsg := s.resolveDomain(ctx, d)

	switch outcome {
	case domain.DomainStatusCompleted:
		d.Status = domain.DomainStatusCompleted
		d.ErrorMessage = ""
		if err := s.taskDoms.Update(ctx, d); err != nil {
			log.WithError(err).Error("failed to persist resolved domain")
		}
	case domain.DomainStatusNoResult:
		d.Status = domain.DomainStatusNoResult
		if err := s.taskDoms.UpdateStatus(ctx, d.ID, domain.DomainStatusNoResult, ""); err != nil {
			log.WithError(err).Error("failed to mark domain no_result")
		}
	default:
		d.Status = domain.DomainStatusFailed
		d.ErrorMessage = errMsg
		log.Warn("domain failed: %s", errMsg)
		if err := s.taskDoms.UpdateStatus(ctx, d.ID, domain.DomainStatusFailed, errMsg); err != nil {
			log.WithError(err).Error("failed to mark domain failed")
		}
	}

	if err := s.tasks.RecordOutcome(ctx, d.TaskID, d.Status); err != nil {
		log.WithError(err).Error("failed to record task outcome")
	}
	s.publishDomain(ctx, d)
	s.publishTaskByID(ctx, d.TaskID)
}

// resolveDomain invokes the resolver and persists a winning price. Panics are
// contained here so a buggy extraction cannot take down the run loop.
func (s *Scheduler) resolveDomain(ctx context.Context, d *domain.TaskDomain) (outcome domain.TaskDomainStatus, errMsg string) {
	defer func() {
		if r := recover(); r != nil {
			outcome = domain.DomainStatusFailed
			errMsg = fmt.Sprintf("panic: %v", r)
		}
	}()

	cand, err := s.resolver.Resolve(ctx, d.Domain)
	if err != nil {
		return domain.DomainStatusFailed, apperr.DomainProcessing(d.Domain, err).Error()
	}
	if cand == nil {
		// No grounded evidence. Distinct from failure on purpose.
		return domain.DomainStatusNoResult, ""
	}

	rp := domain.FromCandidate(cand, time.Now().UTC())
	if err := s.prices.Upsert(ctx, rp); err != nil {
		return domain.DomainStatusFailed, apperr.DatabaseError("store resolved price", err).Error()
	}
	d.ApplyResolved(rp)
	return domain.DomainStatusCompleted, ""
}

// finish records the task's end state, releases the run slot, and advances
// the queue. A paused task keeps the queue waiting for its resume.
func (s *Scheduler) finish(ctx context.Context, taskID int64, outcome runOutcome) {
	log := s.log.WithField("task_id", taskID)

	switch outcome {
	case outcomePaused:
		if err := s.tasks.UpdateStatus(ctx, taskID, domain.TaskStatusPaused); err != nil {
			log.WithError(err).Error("failed to mark task paused")
		}
		log.Info("run paused")
	case outcomeCancelled:
		if _, err := s.taskDoms.SkipActive(ctx, taskID); err != nil {
			log.WithError(err).Error("failed to skip remaining domains")
		}
		if err := s.tasks.UpdateStatus(ctx, taskID, domain.TaskStatusCancelled); err != nil {
			log.WithError(err).Error("failed to mark task cancelled")
		}
		log.Info("run cancelled")
	default:
		if err := s.tasks.UpdateStatus(ctx, taskID, domain.TaskStatusCompleted); err != nil {
			log.WithError(err).Error("failed to mark task completed")
		}
		log.Info("run completed")
	}
	s.publishTaskByID(ctx, taskID)

	s.mu.Lock()
	s.runningID = 0
	delete(s.paused, taskID)
	delete(s.cancelled, taskID)
	s.mu.Unlock()

	if outcome != outcomePaused {
		s.advanceQueue(ctx)
	}
}

// advanceQueue starts the oldest queued task if the slot is free.
func (s *Scheduler) advanceQueue(ctx context.Context) {
	queued, err := s.tasks.ListByStatus(ctx, domain.TaskStatusQueued)
	if err != nil {
		s.log.WithError(err).Error("failed to list queued tasks")
		return
	}
	if len(queued) == 0 {
		return
	}
	next := queued[0]

	s.mu.Lock()
	if s.runningID != 0 {
		s.mu.Unlock()
		return
	}
	s.runningID = next.ID
	s.mu.Unlock()

	s.log.Info("advancing queue to task %d", next.ID)
	if err := s.launch(ctx, next.ID); err != nil {
		s.log.WithError(err).Error("failed to launch queued task %d", next.ID)
	}
}

// =============================================================================
// Crash Recovery & Shutdown
// =============================================================================

// Recover resets tasks stranded in "running" by a dead process: their
// running domains return to pending with partial work discarded, the tasks
// return to pending, and exactly one of them auto-resumes after the grace
// delay.
func (s *Scheduler) Recover(ctx context.Context) error {
	stranded, err := s.tasks.ListByStatus(ctx, domain.TaskStatusRunning)
	if err != nil {
		return apperr.DatabaseError("list stranded tasks", err)
	}
	if len(stranded) == 0 {
		return nil
	}

	for _, t := range stranded {
		if _, err := s.taskDoms.ResetRunning(ctx, t.ID); err != nil {
			s.log.WithError(err).Error("failed to reset running domains of task %d", t.ID)
			continue
		}
		if err := s.tasks.UpdateStatus(ctx, t.ID, domain.TaskStatusPending); err != nil {
			s.log.WithError(err).Error("failed to reset stranded task %d", t.ID)
			continue
		}
		s.log.Info("recovered stranded task %d", t.ID)
	}

	resumeID := stranded[0].ID
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		time.Sleep(s.cfg.RecoveryGrace)
		if err := s.StartTask(context.Background(), resumeID); err != nil {
			s.log.WithError(err).Warn("auto-resume of task %d failed", resumeID)
		}
	}()
	return nil
}

// Shutdown waits for the in-flight run loop to drain, bounded by ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
