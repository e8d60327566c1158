package domain

import "time"

// =============================================================================
// Task State Machine
// =============================================================================

// TaskStatus is the lifecycle state of a pricing resolution task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// taskTransitions encodes the legal task state machine.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:   {TaskStatusQueued, TaskStatusRunning},
	TaskStatusQueued:    {TaskStatusRunning, TaskStatusPending, TaskStatusCancelled},
	TaskStatusRunning:   {TaskStatusPaused, TaskStatusCompleted, TaskStatusCancelled},
	// A paused task resuming while the run slot is taken lands in the queue.
	TaskStatusPaused:    {TaskStatusRunning, TaskStatusQueued, TaskStatusCancelled},
	TaskStatusCompleted: {},
	TaskStatusCancelled: {},
}

// CanTransitionTo reports whether the status change is legal.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// Task is a batch pricing run over a list of domains. Persisted.
type Task struct {
	ID                int64
	Name              string
	Status            TaskStatus
	TotalDomains      int
	CompletedDomains  int
	SuccessfulDomains int
	NoResultDomains   int
	FailedDomains     int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
}

// Progress returns completed/total as a ratio in [0,1].
func (t *Task) Progress() float64 {
	if t.TotalDomains == 0 {
		return 0
	}
	return float64(t.CompletedDomains) / float64(t.TotalDomains)
}

// =============================================================================
// Task Domain State Machine
// =============================================================================

// TaskDomainStatus is the per-domain state within a task.
type TaskDomainStatus string

const (
	DomainStatusPending   TaskDomainStatus = "pending"
	DomainStatusRunning   TaskDomainStatus = "running"
	DomainStatusCompleted TaskDomainStatus = "completed"
	DomainStatusNoResult  TaskDomainStatus = "no_result"
	DomainStatusFailed    TaskDomainStatus = "failed"
	DomainStatusSkipped   TaskDomainStatus = "skipped"
)

var domainTransitions = map[TaskDomainStatus][]TaskDomainStatus{
	DomainStatusPending:   {DomainStatusRunning, DomainStatusSkipped},
	DomainStatusRunning:   {DomainStatusCompleted, DomainStatusNoResult, DomainStatusFailed, DomainStatusSkipped},
	DomainStatusCompleted: {},
	DomainStatusNoResult:  {},
	// Retry-failed resets a failed domain back to pending.
	DomainStatusFailed:  {DomainStatusPending},
	DomainStatusSkipped: {},
}

// CanTransitionTo reports whether the status change is legal.
func (s TaskDomainStatus) CanTransitionTo(next TaskDomainStatus) bool {
	for _, allowed := range domainTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the domain reached an end state. Failed is
// terminal for the run loop even though retry can reopen it.
func (s TaskDomainStatus) IsTerminal() bool {
	switch s {
	case DomainStatusCompleted, DomainStatusNoResult, DomainStatusFailed, DomainStatusSkipped:
		return true
	}
	return false
}

// TaskDomain is one domain row owned by a task, cascade-deleted with it.
// Resolved price fields are flattened onto the row once resolution succeeds.
type TaskDomain struct {
	ID                 int64
	TaskID             int64
	Domain             string
	Status             TaskDomainStatus
	GuestPostPrice     *float64
	LinkInsertionPrice *float64
	SponsoredPostPrice *float64
	HomepageLinkPrice  *float64
	CasinoPrice        *float64
	CasinoAccepted     string
	Currency           string
	SourceContact      string
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ApplyResolved copies the resolved price fields onto the domain row.
func (d *TaskDomain) ApplyResolved(rp *ResolvedPrice) {
	d.GuestPostPrice = rp.GuestPostPrice
	d.LinkInsertionPrice = rp.LinkInsertionPrice
	d.SponsoredPostPrice = rp.SponsoredPostPrice
	d.HomepageLinkPrice = rp.HomepageLinkPrice
	d.CasinoPrice = rp.CasinoPrice
	d.CasinoAccepted = rp.CasinoAccepted
	d.Currency = rp.Currency
	d.SourceContact = rp.SourceContact
}

// =============================================================================
// Progress Events
// =============================================================================

// TaskEventType identifies a realtime task notification.
type TaskEventType string

const (
	EventTaskSnapshot  TaskEventType = "task.snapshot"
	EventTaskUpdated   TaskEventType = "task.updated"
	EventDomainUpdated TaskEventType = "task.domain_updated"
)

// TaskEvent is a best-effort progress notification pushed after every task
// or task-domain state change.
type TaskEvent struct {
	Type      TaskEventType `json:"type"`
	Task      *Task         `json:"task,omitempty"`
	Domain    *TaskDomain   `json:"domain,omitempty"`
	Seq       int64         `json:"seq"`
	Timestamp time.Time     `json:"timestamp"`
}
