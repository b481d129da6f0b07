package db

import (
	"context"
	"errors"
	"strings"

	"github.com/clockbill/clockbill/internal/config"
	"github.com/clockbill/clockbill/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser creates the bootstrap admin account when configured and
// missing. Seeded admins are active immediately, unlike registered users.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	var dummy int64

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (email, password_hash, name, role, active, invoice_number, created_at, updated_at)
		 VALUES ($1, $2, $3, 'admin', TRUE, '', NOW(), NOW())`,
		email, hash, cfg.AdminName,
	)

	return err
}
