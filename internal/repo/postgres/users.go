package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/clockbill/clockbill/internal/domain/user"
	"github.com/clockbill/clockbill/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, locale,
	company_name, company_address, company_zip, company_city, company_country,
	tax_id, vat_id, contact_email, contact_phone, contact_web,
	bank_name, bank_bic, iban_cipher, iban_iv, iban_tag,
	vat_percent, invoice_number, role, active, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Locale,
		&u.CompanyName, &u.CompanyAddress, &u.CompanyZip, &u.CompanyCity, &u.CompanyCountry,
		&u.TaxID, &u.VatID, &u.ContactEmail, &u.ContactPhone, &u.ContactWeb,
		&u.BankName, &u.BankBIC, &u.IBANCipher, &u.IBANIV, &u.IBANTag,
		&u.VatPercent, &u.InvoiceNumber, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

// Create registers a new, inactive account. Emails are stored lowercase and
// a duplicate surfaces as user.ErrEmailTaken.
func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name, locale string) (user.User, error) {
	if locale == "" {
		locale = "en"
	}

	var u user.User
	var err error

	err = r.observe("users.create", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (email, password_hash, name, locale)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+userColumns,
			strings.ToLower(strings.TrimSpace(email)), passwordHash, name, locale,
		))
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError

		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			strings.ToLower(strings.TrimSpace(email)),
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
		))
		return err
	})

	return u, err
}

// UpdateProfile writes the mutable profile fields. The IBAN triple is
// supplied already encrypted; empty strings clear the stored bank details.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id int64, req user.UpdateProfileRequest, ibanCipher, ibanIV, ibanTag string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.update_profile", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET
				name = $2, locale = $3,
				company_name = $4, company_address = $5, company_zip = $6,
				company_city = $7, company_country = $8,
				tax_id = $9, vat_id = $10,
				contact_email = $11, contact_phone = $12, contact_web = $13,
				bank_name = $14, bank_bic = $15,
				iban_cipher = $16, iban_iv = $17, iban_tag = $18,
				vat_percent = $19, invoice_number = $20,
				updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+userColumns,
			id,
			req.Name, req.Locale,
			req.CompanyName, req.CompanyAddress, req.CompanyZip,
			req.CompanyCity, req.CompanyCountry,
			req.TaxID, req.VatID,
			req.ContactEmail, req.ContactPhone, req.ContactWeb,
			req.BankName, req.BankBIC,
			ibanCipher, ibanIV, ibanTag,
			req.VatPercent, req.InvoiceNumber,
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.observe("users.update_password", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, passwordHash,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var out []user.User

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+userColumns+` FROM users ORDER BY id ASC`,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// SetRoleAndActive is the admin toggle. Deactivation closes the login gate
// but leaves the user's data untouched.
func (r *UsersRepo) SetRoleAndActive(ctx context.Context, id int64, role string, active bool) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.set_role_active", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET role = $2, active = $3, updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+userColumns,
			id, role, active,
		))
		return err
	})

	return u, err
}
