package postgres

import (
	"context"
	"errors"

	"github.com/clockbill/clockbill/internal/domain/customer"
	"github.com/clockbill/clockbill/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const customerColumns = `id, user_id, name, address, zip, city, country,
	contact_name, contact_email, contact_phone, vat_id, created_at, updated_at`

type CustomersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCustomersRepo(pool *pgxpool.Pool, prom *observability.Prom) *CustomersRepo {
	return &CustomersRepo{pool: pool, prom: prom}
}

func (r *CustomersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanCustomer(row pgx.Row) (customer.Customer, error) {
	var c customer.Customer

	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Address, &c.Zip, &c.City, &c.Country,
		&c.ContactName, &c.ContactEmail, &c.ContactPhone, &c.VatID,
		&c.CreatedAt, &c.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customer.Customer{}, customer.ErrNotFound
		}

		return customer.Customer{}, err
	}

	return c, nil
}

func (r *CustomersRepo) Create(ctx context.Context, userID int64, req customer.CreateCustomerRequest) (customer.Customer, error) {
	var c customer.Customer
	var err error

	err = r.observe("customers.create", func() error {
		c, err = scanCustomer(r.pool.QueryRow(ctx,
			`INSERT INTO customers (user_id, name, address, zip, city, country,
				contact_name, contact_email, contact_phone, vat_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING `+customerColumns,
			userID, req.Name, req.Address, req.Zip, req.City, req.Country,
			req.ContactName, req.ContactEmail, req.ContactPhone, req.VatID,
		))
		return err
	})

	return c, err
}

// List returns the user's customers; withProjects eagerly attaches each
// customer's projects in one extra query.
func (r *CustomersRepo) List(ctx context.Context, userID int64, withProjects bool) ([]customer.Customer, error) {
	out := make([]customer.Customer, 0, 8)

	err := r.observe("customers.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+customerColumns+` FROM customers WHERE user_id = $1 ORDER BY name ASC, id ASC`,
			userID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			c, err := scanCustomer(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	if !withProjects || len(out) == 0 {
		return out, nil
	}

	projects, err := listProjectsForUser(ctx, r.pool, r.observe, userID)

	if err != nil {
		return nil, err
	}

	byCustomer := make(map[int64]int, len(out))
	for i := range out {
		byCustomer[out[i].ID] = i
	}

	for _, p := range projects {
		if i, ok := byCustomer[p.CustomerID]; ok {
			out[i].Projects = append(out[i].Projects, p)
		}
	}

	return out, nil
}

func (r *CustomersRepo) GetByID(ctx context.Context, userID, id int64) (customer.Customer, error) {
	var c customer.Customer
	var err error

	err = r.observe("customers.get", func() error {
		c, err = scanCustomer(r.pool.QueryRow(ctx,
			`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND user_id = $2`,
			id, userID,
		))
		return err
	})

	return c, err
}

// Update re-reads via RETURNING under the same ownership filter, so a row
// deleted between the check and the write still surfaces as not found.
func (r *CustomersRepo) Update(ctx context.Context, userID, id int64, req customer.UpdateCustomerRequest) (customer.Customer, error) {
	var c customer.Customer
	var err error

	err = r.observe("customers.update", func() error {
		c, err = scanCustomer(r.pool.QueryRow(ctx,
			`UPDATE customers SET
				name = $3, address = $4, zip = $5, city = $6, country = $7,
				contact_name = $8, contact_email = $9, contact_phone = $10, vat_id = $11,
				updated_at = NOW()
			 WHERE id = $1 AND user_id = $2
			 RETURNING `+customerColumns,
			id, userID,
			req.Name, req.Address, req.Zip, req.City, req.Country,
			req.ContactName, req.ContactEmail, req.ContactPhone, req.VatID,
		))
		return err
	})

	return c, err
}

// Delete removes the customer and its whole subtree bottom-up (tasks, then
// projects, then the customer) inside one transaction, so a concurrent
// reader never observes an orphaned child row.
func (r *CustomersRepo) Delete(ctx context.Context, userID, id int64) error {
	return r.observe("customers.delete_cascade", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		if err := customerOwned(ctx, tx, userID, id); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM tasks
			 WHERE user_id = $1
			   AND project_id IN (SELECT id FROM projects WHERE customer_id = $2 AND user_id = $1)`,
			userID, id,
		)

		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM projects WHERE customer_id = $2 AND user_id = $1`,
			userID, id,
		)

		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM customers WHERE id = $2 AND user_id = $1`,
			userID, id,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return customer.ErrNotFound
		}

		return tx.Commit(ctx)
	})
}
