// Package users provides the PostgreSQL-backed credential store.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const userColumns = `id, username, email, country, profile_picture, profile_public_id,
		email_verified, email_verification_token, password_reset_token,
		password_reset_expires_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.AuthUser, error) {
	user := &models.AuthUser{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Country, &user.ProfilePicture,
		&user.ProfilePublicID, &user.EmailVerified, &user.EmailVerificationToken,
		&user.PasswordResetToken, &user.PasswordResetExpiresAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, args ...any) (*models.AuthUser, error) {
	query := `SELECT ` + userColumns + `
		FROM auth_users
		WHERE ` + where + `
		LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, args...))
}

// Create inserts user and fills in the store-assigned id and creation time.
// Unique constraint violations are reported as common.ErrDuplicateCredential.
func (r *PostgresRepository) Create(ctx context.Context, user *models.AuthUser) (*models.AuthUser, error) {

	query :=
		`INSERT INTO auth_users (username, email, password, country, profile_picture,
			profile_public_id, email_verified, email_verification_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`

	created := *user
	created.Username = models.CanonicalUsername(user.Username)
	created.Email = models.CanonicalEmail(user.Email)

	err := r.db.QueryRowContext(ctx, query,
		created.Username, created.Email, created.PasswordHash, created.Country,
		created.ProfilePicture, created.ProfilePublicID, created.EmailVerified,
		created.EmailVerificationToken).Scan(&created.ID, &created.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrDuplicateCredential
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	created.PasswordHash = ""
	return &created, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.AuthUser, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.AuthUser, error) {
	return r.findOne(ctx, "username = $1", models.CanonicalUsername(username))
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	return r.findOne(ctx, "email = $1", models.CanonicalEmail(email))
}

func (r *PostgresRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.AuthUser, error) {
	return r.findOne(ctx, "username = $1 OR email = $2",
		models.CanonicalUsername(username), models.CanonicalEmail(email))
}

// FindByVerificationToken is read-only; see ConsumeVerificationToken.
func (r *PostgresRepository) FindByVerificationToken(ctx context.Context, token string) (*models.AuthUser, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, "email_verification_token = $1", token)
}

// FindByResetToken is read-only; see ConsumeResetToken.
func (r *PostgresRepository) FindByResetToken(ctx context.Context, token string, requireUnexpired bool, now time.Time) (*models.AuthUser, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	if requireUnexpired {
		return r.findOne(ctx, "password_reset_token = $1 AND password_reset_expires_at > $2", token, now)
	}
	return r.findOne(ctx, "password_reset_token = $1", token)
}

// UpdateFields applies the non-nil fields of update to the user with the
// given id.
func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, update models.UserUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.PasswordHash != nil {
		add("password", *update.PasswordHash)
	}
	if update.EmailVerified != nil {
		add("email_verified", *update.EmailVerified)
	}
	if update.EmailVerificationToken != nil {
		add("email_verification_token", *update.EmailVerificationToken)
	}
	if update.PasswordResetToken != nil {
		add("password_reset_token", *update.PasswordResetToken)
	}
	if update.PasswordResetExpiresAt != nil {
		add("password_reset_expires_at", *update.PasswordResetExpiresAt)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE auth_users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrDuplicateCredential
		}
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

func (r *PostgresRepository) GetPasswordHash(ctx context.Context, id string, forUpdate bool) (string, error) {
	query := `SELECT password FROM auth_users WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var hash string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return hash, nil
}

// ConsumeVerificationToken relies on the row lock taken by UPDATE: a
// concurrent caller re-evaluates the WHERE clause against the cleared token
// and matches nothing.
func (r *PostgresRepository) ConsumeVerificationToken(ctx context.Context, token string) (*models.AuthUser, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	query :=
		`UPDATE auth_users
		 SET email_verified = TRUE, email_verification_token = NULL
		 WHERE email_verification_token = $1
		 RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, token))
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*models.AuthUser, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	query :=
		`UPDATE auth_users
		 SET password = $2, password_reset_token = NULL, password_reset_expires_at = NULL
		 WHERE password_reset_token = $1 AND password_reset_expires_at > $3
		 RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, token, passwordHash, now))
}
