package postgres

import (
	"context"
	"errors"

	"github.com/clockbill/clockbill/internal/domain/project"
	"github.com/clockbill/clockbill/internal/invoice"
	"github.com/clockbill/clockbill/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const projectColumns = `id, customer_id, user_id, name, description,
	pricing_type, hourly_rate, fixed_price, invoice_number, invoice_date,
	created_at, updated_at`

const projectColumnsP = `p.id, p.customer_id, p.user_id, p.name, p.description,
	p.pricing_type, p.hourly_rate, p.fixed_price, p.invoice_number, p.invoice_date,
	p.created_at, p.updated_at`

type ProjectsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewProjectsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProjectsRepo {
	return &ProjectsRepo{pool: pool, prom: prom}
}

func (r *ProjectsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanProject(row pgx.Row) (project.Project, error) {
	var p project.Project

	err := row.Scan(
		&p.ID, &p.CustomerID, &p.UserID, &p.Name, &p.Description,
		&p.PricingType, &p.HourlyRate, &p.FixedPrice, &p.InvoiceNumber, &p.InvoiceDate,
		&p.CreatedAt, &p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}

		return project.Project{}, err
	}

	return p, nil
}

// Create inserts a project under the given customer. When the request does
// not carry an invoice number, the owner's sequence is consulted inside the
// same transaction with the user row locked: the project snapshots the
// current value and the sequence advances to its successor. Concurrent
// creations for one user therefore serialize and can never draw the same
// number. A caller-supplied number skips the allocator entirely and the
// sequence does not advance.
func (r *ProjectsRepo) Create(ctx context.Context, userID, customerID int64, req project.CreateProjectRequest) (project.Project, bool, error) {
	pricing := req.PricingType
	if pricing == "" {
		pricing = project.PricingHourly
	}

	var p project.Project
	allocated := false

	err := r.observe("projects.create", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		if err := customerOwned(ctx, tx, userID, customerID); err != nil {
			return err
		}

		number := req.InvoiceNumber

		if number == "" {
			var current string

			err = tx.QueryRow(ctx,
				`SELECT invoice_number FROM users WHERE id = $1 FOR UPDATE`,
				userID,
			).Scan(&current)

			if err != nil {
				return err
			}

			// an untouched sequence seeds itself on first use
			if current == "" {
				current = invoice.NextNumber("")
			}

			number = current
			allocated = true

			_, err = tx.Exec(ctx,
				`UPDATE users SET invoice_number = $2, updated_at = NOW() WHERE id = $1`,
				userID, invoice.NextNumber(current),
			)

			if err != nil {
				return err
			}
		}

		p, err = scanProject(tx.QueryRow(ctx,
			`INSERT INTO projects (customer_id, user_id, name, description,
				pricing_type, hourly_rate, fixed_price, invoice_number)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+projectColumns,
			customerID, userID, req.Name, req.Description,
			pricing, req.HourlyRate, req.FixedPrice, number,
		))

		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return project.Project{}, false, err
	}

	return p, allocated, nil
}

func (r *ProjectsRepo) List(ctx context.Context, userID, customerID int64, withTasks bool) ([]project.Project, error) {
	if err := customerOwned(ctx, r.pool, userID, customerID); err != nil {
		return nil, err
	}

	out := make([]project.Project, 0, 8)

	err := r.observe("projects.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+projectColumns+`
			 FROM projects
			 WHERE customer_id = $1 AND user_id = $2
			 ORDER BY name ASC, id ASC`,
			customerID, userID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	if !withTasks || len(out) == 0 {
		return out, nil
	}

	tasks, err := listTasksForCustomer(ctx, r.pool, r.observe, userID, customerID)

	if err != nil {
		return nil, err
	}

	byProject := make(map[int64]int, len(out))
	for i := range out {
		byProject[out[i].ID] = i
	}

	for _, t := range tasks {
		if i, ok := byProject[t.ProjectID]; ok {
			out[i].Tasks = append(out[i].Tasks, t)
		}
	}

	return out, nil
}

func (r *ProjectsRepo) GetByID(ctx context.Context, userID, customerID, projectID int64) (project.Project, error) {
	var p project.Project
	var err error

	err = r.observe("projects.get", func() error {
		p, err = scanProject(r.pool.QueryRow(ctx,
			`SELECT `+projectColumnsP+`
			 FROM projects p
			 JOIN customers c ON c.id = p.customer_id
			 WHERE p.id = $1 AND p.customer_id = $2 AND p.user_id = $3 AND c.user_id = $3`,
			projectID, customerID, userID,
		))
		return err
	})

	return p, err
}

func (r *ProjectsRepo) Update(ctx context.Context, userID, customerID, projectID int64, req project.UpdateProjectRequest) (project.Project, error) {
	if err := projectOwned(ctx, r.pool, userID, customerID, projectID); err != nil {
		return project.Project{}, err
	}

	var p project.Project
	var err error

	err = r.observe("projects.update", func() error {
		p, err = scanProject(r.pool.QueryRow(ctx,
			`UPDATE projects SET
				name = $4, description = $5, pricing_type = $6,
				hourly_rate = $7, fixed_price = $8, updated_at = NOW()
			 WHERE id = $1 AND customer_id = $2 AND user_id = $3
			 RETURNING `+projectColumns,
			projectID, customerID, userID,
			req.Name, req.Description, req.PricingType, req.HourlyRate, req.FixedPrice,
		))
		return err
	})

	return p, err
}

// Delete cascades tasks then the project in one transaction.
func (r *ProjectsRepo) Delete(ctx context.Context, userID, customerID, projectID int64) error {
	return r.observe("projects.delete_cascade", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		if err := projectOwned(ctx, tx, userID, customerID, projectID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM tasks WHERE project_id = $1 AND user_id = $2`,
			projectID, userID,
		)

		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM projects WHERE id = $1 AND customer_id = $2 AND user_id = $3`,
			projectID, customerID, userID,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return project.ErrNotFound
		}

		return tx.Commit(ctx)
	})
}

// MaterializeInvoice freezes the invoice header for a project: the first
// preview assigns today's date, and a project that was never numbered draws
// from the owner's sequence under the same user-row lock as Create. Repeat
// previews read back the frozen values unchanged.
func (r *ProjectsRepo) MaterializeInvoice(ctx context.Context, userID, customerID, projectID int64) (project.Project, bool, error) {
	var p project.Project
	allocated := false

	err := r.observe("projects.materialize_invoice", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		if err := projectOwned(ctx, tx, userID, customerID, projectID); err != nil {
			return err
		}

		// no-op when the date is already frozen
		_, err = tx.Exec(ctx,
			`UPDATE projects SET invoice_date = CURRENT_DATE, updated_at = NOW()
			 WHERE id = $1 AND user_id = $2 AND invoice_date IS NULL`,
			projectID, userID,
		)

		if err != nil {
			return err
		}

		var number string

		err = tx.QueryRow(ctx,
			`SELECT invoice_number FROM projects WHERE id = $1 AND user_id = $2`,
			projectID, userID,
		).Scan(&number)

		if err != nil {
			return err
		}

		if number == "" {
			var current string

			err = tx.QueryRow(ctx,
				`SELECT invoice_number FROM users WHERE id = $1 FOR UPDATE`,
				userID,
			).Scan(&current)

			if err != nil {
				return err
			}

			if current == "" {
				current = invoice.NextNumber("")
			}

			allocated = true

			_, err = tx.Exec(ctx,
				`UPDATE users SET invoice_number = $2, updated_at = NOW() WHERE id = $1`,
				userID, invoice.NextNumber(current),
			)

			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx,
				`UPDATE projects SET invoice_number = $3, updated_at = NOW()
				 WHERE id = $1 AND user_id = $2`,
				projectID, userID, current,
			)

			if err != nil {
				return err
			}
		}

		p, err = scanProject(tx.QueryRow(ctx,
			`SELECT `+projectColumns+`
			 FROM projects
			 WHERE id = $1 AND customer_id = $2 AND user_id = $3`,
			projectID, customerID, userID,
		))

		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return project.Project{}, false, err
	}

	return p, allocated, nil
}

// listProjectsForUser backs the eager include on customer listings.
func listProjectsForUser(ctx context.Context, pool *pgxpool.Pool, observe func(string, func() error) error, userID int64) ([]project.Project, error) {
	var out []project.Project

	err := observe("projects.list_for_user", func() error {
		rows, err := pool.Query(ctx,
			`SELECT `+projectColumns+`
			 FROM projects
			 WHERE user_id = $1
			 ORDER BY customer_id ASC, name ASC, id ASC`,
			userID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
