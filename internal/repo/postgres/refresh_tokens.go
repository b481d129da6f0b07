package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	// ErrRefreshTokenReused signals a rotation attempt with an already
	// rotated token; every live session of that user has been revoked.
	ErrRefreshTokenReused = errors.New("refresh token reused")
)

type RefreshTokenRow struct {
	ID         string
	UserID     int64
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

type RefreshTokensRepo struct {
	pool *pgxpool.Pool
}

func NewRefreshTokensRepo(pool *pgxpool.Pool) *RefreshTokensRepo {
	return &RefreshTokensRepo{pool: pool}
}

// Save persists a freshly issued session row.
func (r *RefreshTokensRepo) Save(ctx context.Context, row RefreshTokenRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.RevokedAt, row.ReplacedBy, row.CreatedAt,
	)
	return err
}

// Rotate atomically retires the presented token and records its successor.
// The old row is locked so concurrent refreshes of the same token serialize
// instead of double-rotating. Presenting an already rotated token is treated
// as theft: every live session of that user is revoked.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldID, presentedHash string, next RefreshTokenRow) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	old, err := getForUpdate(ctx, tx, oldID)

	if err != nil {
		return err
	}

	if old.RevokedAt != nil {
		if err := revokeAllForUser(ctx, tx, old.UserID); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		return ErrRefreshTokenReused
	}

	if time.Now().After(old.ExpiresAt) {
		return ErrRefreshTokenExpired
	}

	if old.TokenHash != presentedHash {
		return ErrRefreshTokenNotFound
	}

	if err := revoke(ctx, tx, oldID, &next.ID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		next.ID, next.UserID, next.TokenHash, next.ExpiresAt, next.RevokedAt, next.ReplacedBy, next.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RevokeByID retires a single session, used on logout. Unknown ids are not an
// error; logout is idempotent.
func (r *RefreshTokensRepo) RevokeByID(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL
	`, id)

	return err
}

// RevokeAllForUser kills every live session, used after password changes.
func (r *RefreshTokensRepo) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)

	return err
}

func getForUpdate(ctx context.Context, tx pgx.Tx, id string) (RefreshTokenRow, error) {
	var row RefreshTokenRow

	err := tx.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM refresh_tokens
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&row.ID,
		&row.UserID,
		&row.TokenHash,
		&row.ExpiresAt,
		&row.RevokedAt,
		&row.ReplacedBy,
		&row.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RefreshTokenRow{}, ErrRefreshTokenNotFound
		}

		return RefreshTokenRow{}, err
	}

	return row, nil
}

func revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error {
	_, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), replaced_by = $2
		WHERE id = $1
	`, id, replacedBy)

	return err
}

func revokeAllForUser(ctx context.Context, tx pgx.Tx, userID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)

	return err
}
