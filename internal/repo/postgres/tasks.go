package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/clockbill/clockbill/internal/domain/task"
	"github.com/clockbill/clockbill/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, project_id, user_id, name, estimated_hours,
	completed, sort_order, task_date, created_at, updated_at`

const taskDateLayout = "2006-01-02"

type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task

	err := row.Scan(
		&t.ID, &t.ProjectID, &t.UserID, &t.Name, &t.EstimatedHours,
		&t.Completed, &t.SortOrder, &t.Date, &t.CreatedAt, &t.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}

		return task.Task{}, err
	}

	return t, nil
}

func taskDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	d, err := time.Parse(taskDateLayout, raw)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

func (r *TasksRepo) Create(ctx context.Context, userID, customerID, projectID int64, req task.CreateTaskRequest) (task.Task, error) {
	if err := projectOwned(ctx, r.pool, userID, customerID, projectID); err != nil {
		return task.Task{}, err
	}

	hours := 1.0
	if req.EstimatedHours != nil {
		hours = *req.EstimatedHours
	}

	date, err := taskDate(req.Date)
	if err != nil {
		return task.Task{}, err
	}

	var t task.Task

	err = r.observe("tasks.create", func() error {
		t, err = scanTask(r.pool.QueryRow(ctx,
			`INSERT INTO tasks (project_id, user_id, name, estimated_hours, completed, sort_order, task_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+taskColumns,
			projectID, userID, req.Name, hours, req.Completed, req.Order, date,
		))
		return err
	})

	return t, err
}

// List returns the project's tasks in display order: the caller-assigned
// rank first, insertion order as the tiebreak.
func (r *TasksRepo) List(ctx context.Context, userID, customerID, projectID int64) ([]task.Task, error) {
	if err := projectOwned(ctx, r.pool, userID, customerID, projectID); err != nil {
		return nil, err
	}

	out := make([]task.Task, 0, 16)

	err := r.observe("tasks.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+taskColumns+`
			 FROM tasks
			 WHERE project_id = $1 AND user_id = $2
			 ORDER BY sort_order ASC, id ASC`,
			projectID, userID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *TasksRepo) Update(ctx context.Context, userID, customerID, projectID, taskID int64, req task.UpdateTaskRequest) (task.Task, error) {
	if err := taskOwned(ctx, r.pool, userID, customerID, projectID, taskID); err != nil {
		return task.Task{}, err
	}

	hours := 1.0
	if req.EstimatedHours != nil {
		hours = *req.EstimatedHours
	}

	date, err := taskDate(req.Date)
	if err != nil {
		return task.Task{}, err
	}

	var t task.Task

	err = r.observe("tasks.update", func() error {
		t, err = scanTask(r.pool.QueryRow(ctx,
			`UPDATE tasks SET
				name = $4, estimated_hours = $5, completed = $6,
				sort_order = $7, task_date = $8, updated_at = NOW()
			 WHERE id = $1 AND project_id = $2 AND user_id = $3
			 RETURNING `+taskColumns,
			taskID, projectID, userID,
			req.Name, hours, req.Completed, req.Order, date,
		))
		return err
	})

	return t, err
}

func (r *TasksRepo) Delete(ctx context.Context, userID, customerID, projectID, taskID int64) error {
	if err := taskOwned(ctx, r.pool, userID, customerID, projectID, taskID); err != nil {
		return err
	}

	return r.observe("tasks.delete", func() error {
		tag, err := r.pool.Exec(ctx,
			`DELETE FROM tasks WHERE id = $1 AND project_id = $2 AND user_id = $3`,
			taskID, projectID, userID,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return task.ErrNotFound
		}

		return nil
	})
}

// Reorder applies a batch of (taskId, order) pairs after validating the
// project once. Ids that do not match the (task, project, user) scope are
// skipped, not fatal; the skipped ids are reported back so callers can tell
// a partial apply from a full one.
func (r *TasksRepo) Reorder(ctx context.Context, userID, customerID, projectID int64, items []task.ReorderItem) (skipped []int64, err error) {
	err = r.observe("tasks.reorder", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		if err := projectOwned(ctx, tx, userID, customerID, projectID); err != nil {
			return err
		}

		for _, item := range items {
			tag, err := tx.Exec(ctx,
				`UPDATE tasks SET sort_order = $4, updated_at = NOW()
				 WHERE id = $1 AND project_id = $2 AND user_id = $3`,
				item.ID, projectID, userID, item.Order,
			)

			if err != nil {
				return err
			}

			if tag.RowsAffected() == 0 {
				skipped = append(skipped, item.ID)
			}
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return nil, err
	}

	return skipped, nil
}

// listTasksForCustomer backs the eager include on project listings.
func listTasksForCustomer(ctx context.Context, pool *pgxpool.Pool, observe func(string, func() error) error, userID, customerID int64) ([]task.Task, error) {
	var out []task.Task

	err := observe("tasks.list_for_customer", func() error {
		rows, err := pool.Query(ctx,
			`SELECT t.id, t.project_id, t.user_id, t.name, t.estimated_hours,
				t.completed, t.sort_order, t.task_date, t.created_at, t.updated_at
			 FROM tasks t
			 JOIN projects p ON p.id = t.project_id
			 WHERE p.customer_id = $1 AND t.user_id = $2 AND p.user_id = $2
			 ORDER BY t.project_id ASC, t.sort_order ASC, t.id ASC`,
			customerID, userID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
