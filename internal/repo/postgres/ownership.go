package postgres

import (
	"context"
	"errors"

	"github.com/clockbill/clockbill/internal/domain/customer"
	"github.com/clockbill/clockbill/internal/domain/project"
	"github.com/clockbill/clockbill/internal/domain/task"
	"github.com/jackc/pgx/v5"
)

// queryRower is satisfied by both *pgxpool.Pool and pgx.Tx, so the guard can
// run inside a cascade transaction.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// The ownership guard re-validates every link of the user -> customer ->
// project -> task chain with explicit equality predicates, never trusting the
// denormalized user_id on child rows alone. A missing link and a foreign link
// produce the same not-found error, so unauthorized callers learn nothing
// about existence.

func customerOwned(ctx context.Context, q queryRower, userID, customerID int64) error {
	var one int

	err := q.QueryRow(ctx,
		`SELECT 1 FROM customers WHERE id = $1 AND user_id = $2`,
		customerID, userID,
	).Scan(&one)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customer.ErrNotFound
		}

		return err
	}

	return nil
}

func projectOwned(ctx context.Context, q queryRower, userID, customerID, projectID int64) error {
	var one int

	err := q.QueryRow(ctx,
		`SELECT 1
		 FROM projects p
		 JOIN customers c ON c.id = p.customer_id
		 WHERE p.id = $1 AND p.customer_id = $2 AND p.user_id = $3 AND c.user_id = $3`,
		projectID, customerID, userID,
	).Scan(&one)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.ErrNotFound
		}

		return err
	}

	return nil
}

func taskOwned(ctx context.Context, q queryRower, userID, customerID, projectID, taskID int64) error {
	var one int

	err := q.QueryRow(ctx,
		`SELECT 1
		 FROM tasks t
		 JOIN projects p ON p.id = t.project_id
		 JOIN customers c ON c.id = p.customer_id
		 WHERE t.id = $1 AND t.project_id = $2 AND p.customer_id = $3
		   AND t.user_id = $4 AND p.user_id = $4 AND c.user_id = $4`,
		taskID, projectID, customerID, userID,
	).Scan(&one)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.ErrNotFound
		}

		return err
	}

	return nil
}
