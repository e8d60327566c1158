package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
)

// TaskDomainRepository implements out.TaskDomainRepository on Postgres. Rows
// are cascade-deleted with the owning task by the schema.
type TaskDomainRepository struct {
	db *sqlx.DB
}

// NewTaskDomainRepository creates a new TaskDomainRepository.
func NewTaskDomainRepository(db *sqlx.DB) out.TaskDomainRepository {
	return &TaskDomainRepository{db: db}
}

type taskDomainRow struct {
	ID                 int64     `db:"id"`
	TaskID             int64     `db:"task_id"`
	Domain             string    `db:"domain"`
	Status             string    `db:"status"`
	GuestPostPrice     *float64  `db:"guest_post_price"`
	LinkInsertionPrice *float64  `db:"link_insertion_price"`
	SponsoredPostPrice *float64  `db:"sponsored_post_price"`
	HomepageLinkPrice  *float64  `db:"homepage_link_price"`
	CasinoPrice        *float64  `db:"casino_price"`
	CasinoAccepted     string    `db:"casino_accepted"`
	Currency           string    `db:"currency"`
	SourceContact      string    `db:"source_contact"`
	ErrorMessage       string    `db:"error_message"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r taskDomainRow) toDomain() *domain.TaskDomain {
	return &domain.TaskDomain{
		ID:                 r.ID,
		TaskID:             r.TaskID,
		Domain:             r.Domain,
		Status:             domain.TaskDomainStatus(r.Status),
		GuestPostPrice:     r.GuestPostPrice,
		LinkInsertionPrice: r.LinkInsertionPrice,
		SponsoredPostPrice: r.SponsoredPostPrice,
		HomepageLinkPrice:  r.HomepageLinkPrice,
		CasinoPrice:        r.CasinoPrice,
		CasinoAccepted:     r.CasinoAccepted,
		Currency:           r.Currency,
		SourceContact:      r.SourceContact,
		ErrorMessage:       r.ErrorMessage,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

const taskDomainColumns = `
	id, task_id, domain, status, guest_post_price, link_insertion_price,
	sponsored_post_price, homepage_link_price, casino_price, casino_accepted,
	currency, source_contact, error_message, created_at, updated_at`

func (r *TaskDomainRepository) BulkCreate(ctx context.Context, domains []*domain.TaskDomain) error {
	if len(domains) == 0 {
		return nil
	}

	taskIDs := make([]int64, len(domains))
	names := make([]string, len(domains))
	statuses := make([]string, len(domains))
	for i, d := range domains {
		taskIDs[i] = d.TaskID
		names[i] = d.Domain
		statuses[i] = string(d.Status)
	}

	query := `
		INSERT INTO pricing_task_domains (task_id, domain, status)
		SELECT * FROM unnest($1::bigint[], $2::text[], $3::text[])
		RETURNING id`

	rows, err := r.db.QueryxContext(ctx, query, pq.Array(taskIDs), pq.Array(names), pq.Array(statuses))
	if err != nil {
		return fmt.Errorf("bulk create task domains: %w", err)
	}
	defer rows.Close()

	for i := 0; rows.Next(); i++ {
		if err := rows.Scan(&domains[i].ID); err != nil {
			return fmt.Errorf("scan task domain id: %w", err)
		}
	}
	return rows.Err()
}

func (r *TaskDomainRepository) ListByTask(ctx context.Context, taskID int64) ([]*domain.TaskDomain, error) {
	query := `SELECT ` + taskDomainColumns + ` FROM pricing_task_domains WHERE task_id = $1 ORDER BY id ASC`

	var rows []taskDomainRow
	if err := r.db.SelectContext(ctx, &rows, query, taskID); err != nil {
		return nil, fmt.Errorf("list task domains: %w", err)
	}
	result := make([]*domain.TaskDomain, len(rows))
	for i, row := range rows {
		result[i] = row.toDomain()
	}
	return result, nil
}

// ListPending returns pending domains in creation order; the run loop
// depends on this ordering for deterministic progress.
func (r *TaskDomainRepository) ListPending(ctx context.Context, taskID int64) ([]*domain.TaskDomain, error) {
	query := `SELECT ` + taskDomainColumns + `
		FROM pricing_task_domains
		WHERE task_id = $1 AND status = 'pending'
		ORDER BY id ASC`

	var rows []taskDomainRow
	if err := r.db.SelectContext(ctx, &rows, query, taskID); err != nil {
		return nil, fmt.Errorf("list pending task domains: %w", err)
	}
	result := make([]*domain.TaskDomain, len(rows))
	for i, row := range rows {
		result[i] = row.toDomain()
	}
	return result, nil
}

func (r *TaskDomainRepository) Update(ctx context.Context, d *domain.TaskDomain) error {
	query := `
		UPDATE pricing_task_domains
		SET status = $2, guest_post_price = $3, link_insertion_price = $4,
		    sponsored_post_price = $5, homepage_link_price = $6, casino_price = $7,
		    casino_accepted = $8, currency = $9, source_contact = $10,
		    error_message = $11, updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query,
		d.ID, d.Status, d.GuestPostPrice, d.LinkInsertionPrice,
		d.SponsoredPostPrice, d.HomepageLinkPrice, d.CasinoPrice,
		d.CasinoAccepted, d.Currency, d.SourceContact, d.ErrorMessage); err != nil {
		return fmt.Errorf("update task domain: %w", err)
	}
	return nil
}

func (r *TaskDomainRepository) UpdateStatus(ctx context.Context, id int64, status domain.TaskDomainStatus, errorMessage string) error {
	query := `
		UPDATE pricing_task_domains
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, status, errorMessage); err != nil {
		return fmt.Errorf("update task domain status: %w", err)
	}
	return nil
}

func (r *TaskDomainRepository) SkipActive(ctx context.Context, taskID int64) (int64, error) {
	query := `
		UPDATE pricing_task_domains
		SET status = 'skipped', updated_at = NOW()
		WHERE task_id = $1 AND status IN ('pending', 'running')`

	res, err := r.db.ExecContext(ctx, query, taskID)
	if err != nil {
		return 0, fmt.Errorf("skip active task domains: %w", err)
	}
	return res.RowsAffected()
}

func (r *TaskDomainRepository) ResetRunning(ctx context.Context, taskID int64) (int64, error) {
	query := `
		UPDATE pricing_task_domains
		SET status = 'pending', updated_at = NOW()
		WHERE task_id = $1 AND status = 'running'`

	res, err := r.db.ExecContext(ctx, query, taskID)
	if err != nil {
		return 0, fmt.Errorf("reset running task domains: %w", err)
	}
	return res.RowsAffected()
}

func (r *TaskDomainRepository) ResetFailed(ctx context.Context, taskID int64) (int64, error) {
	query := `
		UPDATE pricing_task_domains
		SET status = 'pending', error_message = '', updated_at = NOW()
		WHERE task_id = $1 AND status = 'failed'`

	res, err := r.db.ExecContext(ctx, query, taskID)
	if err != nil {
		return 0, fmt.Errorf("reset failed task domains: %w", err)
	}
	return res.RowsAffected()
}
