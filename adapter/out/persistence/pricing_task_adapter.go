package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
	"pricing_server/pkg/apperr"
)

// TaskRepository implements out.TaskRepository on Postgres.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *sqlx.DB) out.TaskRepository {
	return &TaskRepository{db: db}
}

type taskRow struct {
	ID                int64        `db:"id"`
	Name              string       `db:"name"`
	Status            string       `db:"status"`
	TotalDomains      int          `db:"total_domains"`
	CompletedDomains  int          `db:"completed_domains"`
	SuccessfulDomains int          `db:"successful_domains"`
	NoResultDomains   int          `db:"no_result_domains"`
	FailedDomains     int          `db:"failed_domains"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
	StartedAt         sql.NullTime `db:"started_at"`
	FinishedAt        sql.NullTime `db:"finished_at"`
}

func (r taskRow) toDomain() *domain.Task {
	t := &domain.Task{
		ID:                r.ID,
		Name:              r.Name,
		Status:            domain.TaskStatus(r.Status),
		TotalDomains:      r.TotalDomains,
		CompletedDomains:  r.CompletedDomains,
		SuccessfulDomains: r.SuccessfulDomains,
		NoResultDomains:   r.NoResultDomains,
		FailedDomains:     r.FailedDomains,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.StartedAt.Valid {
		t.StartedAt = &r.StartedAt.Time
	}
	if r.FinishedAt.Valid {
		t.FinishedAt = &r.FinishedAt.Time
	}
	return t
}

const taskColumns = `
	id, name, status, total_domains, completed_domains, successful_domains,
	no_result_domains, failed_domains, created_at, updated_at, started_at, finished_at`

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO pricing_tasks (name, status, total_domains)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	if err := r.db.QueryRowxContext(ctx, query, task.Name, task.Status, task.TotalDomains).
		Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Get(ctx context.Context, id int64) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM pricing_tasks WHERE id = $1`

	var row taskRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("task")
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return row.toDomain(), nil
}

func (r *TaskRepository) List(ctx context.Context, status *domain.TaskStatus) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM pricing_tasks`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]*domain.Task, len(rows))
	for i, row := range rows {
		tasks[i] = row.toDomain()
	}
	return tasks, nil
}

// ListByStatus lists oldest-first, the order queue advancement and crash
// recovery need.
func (r *TaskRepository) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM pricing_tasks WHERE status = $1 ORDER BY created_at ASC`

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, status); err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	tasks := make([]*domain.Task, len(rows))
	for i, row := range rows {
		tasks[i] = row.toDomain()
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status domain.TaskStatus) error {
	query := `
		UPDATE pricing_tasks
		SET status = $2,
		    updated_at = NOW(),
		    started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN NOW() ELSE started_at END,
		    finished_at = CASE WHEN $2 IN ('completed', 'cancelled') THEN NOW() ELSE finished_at END
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("task")
	}
	return nil
}

// RecordOutcome bumps completed_domains plus the matching outcome bucket in
// one atomic statement.
func (r *TaskRepository) RecordOutcome(ctx context.Context, id int64, outcome domain.TaskDomainStatus) error {
	query := `
		UPDATE pricing_tasks
		SET completed_domains  = completed_domains + 1,
		    successful_domains = successful_domains + CASE WHEN $2 = 'completed' THEN 1 ELSE 0 END,
		    no_result_domains  = no_result_domains  + CASE WHEN $2 = 'no_result' THEN 1 ELSE 0 END,
		    failed_domains     = failed_domains     + CASE WHEN $2 = 'failed'    THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, outcome); err != nil {
		return fmt.Errorf("record task outcome: %w", err)
	}
	return nil
}

func (r *TaskRepository) RetryAdjust(ctx context.Context, id int64, n int) error {
	query := `
		UPDATE pricing_tasks
		SET completed_domains = completed_domains - $2,
		    failed_domains    = failed_domains - $2,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, n); err != nil {
		return fmt.Errorf("adjust task counters: %w", err)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pricing_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("task")
	}
	return nil
}
