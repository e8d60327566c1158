// Package in defines inbound ports: the operations the core exposes to
// transports.
package in

import (
	"context"

	"pricing_server/core/domain"
)

// TaskService drives batch pricing runs.
type TaskService interface {
	CreateTask(ctx context.Context, name string, domains []string) (*domain.Task, error)
	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	ListTasks(ctx context.Context, status *domain.TaskStatus) ([]*domain.Task, error)
	ListTaskDomains(ctx context.Context, taskID int64) ([]*domain.TaskDomain, error)
	DeleteTask(ctx context.Context, id int64) error

	// StartTask runs a pending or paused task, or queues it when the run
	// slot is taken.
	StartTask(ctx context.Context, id int64) error
	PauseTask(ctx context.Context, id int64) error
	CancelTask(ctx context.Context, id int64) error

	// RetryFailed reopens a finished task's failed domains and restarts it.
	RetryFailed(ctx context.Context, id int64) error
}
