package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists auth users. Username and email lookups are
// case-normalised to their canonical forms, and no lookup returns the
// password hash. Missing rows yield common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, user *models.AuthUser) (*models.AuthUser, error)

	FindByID(ctx context.Context, id string) (*models.AuthUser, error)
	FindByUsername(ctx context.Context, username string) (*models.AuthUser, error)
	FindByEmail(ctx context.Context, email string) (*models.AuthUser, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.AuthUser, error)

	// FindByVerificationToken and FindByResetToken are read-only lookups;
	// they never clear a token. Redeeming one goes through the Consume methods.
	FindByVerificationToken(ctx context.Context, token string) (*models.AuthUser, error)
	FindByResetToken(ctx context.Context, token string, requireUnexpired bool, now time.Time) (*models.AuthUser, error)

	UpdateFields(ctx context.Context, id string, update models.UserUpdate) error

	// GetPasswordHash is the only way to read a stored hash. forUpdate locks
	// the row until the surrounding transaction ends.
	GetPasswordHash(ctx context.Context, id string, forUpdate bool) (string, error)

	// ConsumeVerificationToken marks the owner verified and clears the token
	// in one statement.
	ConsumeVerificationToken(ctx context.Context, token string) (*models.AuthUser, error)

	// ConsumeResetToken stores passwordHash and clears the reset token in one
	// statement, provided the token expires strictly after now.
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*models.AuthUser, error)
}
