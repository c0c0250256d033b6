package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
)

const emailConstraint = "accounts_email_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (email, display_name, salt, verifier)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.Email, account.DisplayName, account.Salt, account.Verifier).Scan(&account.ID, &account.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, emailConstraint) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

const selectAccount = `SELECT id, email, display_name, salt, verifier, disabled, failed_logins, locked_until, created_at FROM accounts`

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a := &models.Account{}
	var lockedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.Salt, &a.Verifier,
		&a.Disabled, &a.FailedLogins, &lockedUntil, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}
	return a, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE id = $1`, id)
}

func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, id string, maxFailed int, lockUntil time.Time) error {
	query :=
		`UPDATE accounts SET
		   locked_until = CASE WHEN failed_logins + 1 >= $2 THEN $3 ELSE locked_until END,
		   failed_logins = CASE WHEN failed_logins + 1 >= $2 THEN 0 ELSE failed_logins + 1 END
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id, maxFailed, lockUntil)
}

func (r *PostgresRepository) ResetFailedLogins(ctx context.Context, id string) error {
	query :=
		`UPDATE accounts SET failed_logins = 0, locked_until = NULL
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) UpdateDisplayName(ctx context.Context, id, name string) error {
	query :=
		`UPDATE accounts SET display_name = $2
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id, name)
}

func (r *PostgresRepository) UpdateEmail(ctx context.Context, id, email string) error {
	query :=
		`UPDATE accounts SET email = $2
		 WHERE id = $1
		 `
	err := r.exec(ctx, query, id, email)
	if dbx.IsUniqueViolation(err, emailConstraint) {
		return common.ErrorAlreadyExists
	}
	return err
}

func (r *PostgresRepository) UpdateCredential(ctx context.Context, id string, salt, verifier []byte) error {
	query :=
		`UPDATE accounts SET salt = $2, verifier = $3, failed_logins = 0, locked_until = NULL
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id, salt, verifier)
}

// exec runs an update addressing a single account and reports
// common.ErrorNotFound when no row matched.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
