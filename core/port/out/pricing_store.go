package out

import (
	"context"

	"pricing_server/core/domain"
)

// TaskRepository persists tasks. Row updates must be atomic; concurrent
// writers are not expected but updates must not interleave.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id int64) (*domain.Task, error)
	List(ctx context.Context, status *domain.TaskStatus) ([]*domain.Task, error)
	ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TaskStatus) error

	// RecordOutcome atomically bumps completed_domains plus the counter
	// matching the terminal domain outcome (completed/no_result/failed).
	RecordOutcome(ctx context.Context, id int64, outcome domain.TaskDomainStatus) error

	// RetryAdjust rewinds counters when n failed domains are reopened.
	RetryAdjust(ctx context.Context, id int64, n int) error

	Delete(ctx context.Context, id int64) error
}

// TaskDomainRepository persists per-task domain rows. Cascade-deleted with
// the owning task by the schema.
type TaskDomainRepository interface {
	BulkCreate(ctx context.Context, domains []*domain.TaskDomain) error
	ListByTask(ctx context.Context, taskID int64) ([]*domain.TaskDomain, error)

	// ListPending returns pending domains in creation order.
	ListPending(ctx context.Context, taskID int64) ([]*domain.TaskDomain, error)

	Update(ctx context.Context, d *domain.TaskDomain) error
	UpdateStatus(ctx context.Context, id int64, status domain.TaskDomainStatus, errorMessage string) error

	// SkipActive marks all pending/running domains of a task skipped.
	SkipActive(ctx context.Context, taskID int64) (int64, error)

	// ResetRunning returns mid-run domains to pending (crash recovery).
	ResetRunning(ctx context.Context, taskID int64) (int64, error)

	// ResetFailed reopens failed domains for retry.
	ResetFailed(ctx context.Context, taskID int64) (int64, error)
}

// ResolvedPriceRepository stores the accepted price per domain.
type ResolvedPriceRepository interface {
	Upsert(ctx context.Context, rp *domain.ResolvedPrice) error
	GetByDomain(ctx context.Context, dom string) (*domain.ResolvedPrice, error)
}
