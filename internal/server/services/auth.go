// Package services contains server-side business logic. AuthService runs the
// credential lifecycle: signup, signin, email verification, and password
// recovery and change.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/queues"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/uploads"
	"github.com/google/uuid"
)

// SignupInput is the registration request.
type SignupInput struct {
	Username       string
	Email          string
	Password       string
	Country        string
	ProfilePicture string
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   queues.Publisher
	uploader    uploads.Uploader
	tokens      *auth.TokenService
	hasher      *auth.PasswordHasher
	logger      logging.Logger

	clientURL     string
	resetValidity time.Duration

	now         func() time.Time
	newPublicID func() string
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, publisher queues.Publisher,
	uploader uploads.Uploader, tokens *auth.TokenService, hasher *auth.PasswordHasher,
	logger logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		db:            db,
		repomanager:   m,
		publisher:     publisher,
		uploader:      uploader,
		tokens:        tokens,
		hasher:        hasher,
		logger:        logger.With("module", "auth_service"),
		clientURL:     cfg.ClientURL,
		resetValidity: cfg.ResetTokenValidityDuration,
		now:           time.Now,
		newPublicID:   func() string { return uuid.NewString() },
	}
}

// Signup registers a user, stores the profile picture, and returns the new
// user together with a session token. The verification email and buyer sync
// are published after the record is stored.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.AuthUser, string, error) {
	if err := validateSignup(in); err != nil {
		return nil, "", err
	}

	repo := s.repomanager.Users(s.db)

	_, err := repo.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		return nil, "", common.ErrDuplicateCredential
	case !errors.Is(err, common.ErrorNotFound):
		return nil, "", fmt.Errorf("error searching user: %w", err)
	}

	upload, err := s.uploader.Upload(ctx, s.newPublicID(), in.ProfilePicture)
	if err != nil || upload == nil || upload.PublicID == "" {
		s.logger.Error(ctx, "profile picture upload failed", "error", err)
		return nil, "", common.ErrUploadFailed
	}

	verificationToken, err := auth.GenerateSingleUseToken()
	if err != nil {
		return nil, "", fmt.Errorf("error generating token: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("error hashing password: %w", err)
	}

	user, err := repo.Create(ctx, &models.AuthUser{
		Username:               in.Username,
		Email:                  in.Email,
		PasswordHash:           hash,
		Country:                in.Country,
		ProfilePicture:         upload.URL,
		ProfilePublicID:        upload.PublicID,
		EmailVerificationToken: &verificationToken,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateCredential) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("error creating user: %w", err)
	}

	s.publish(ctx, queues.BuyerExchange, queues.BuyerRoutingKey, queues.BuyerMessage{
		Username:       user.Username,
		Email:          user.Email,
		ProfilePicture: user.ProfilePicture,
		Country:        user.Country,
		CreatedAt:      user.CreatedAt,
		Type:           "auth",
	}, "Buyer details sent to buyer service")

	s.publish(ctx, queues.EmailExchange, queues.EmailRoutingKey, queues.EmailMessage{
		ReceiverEmail: user.Email,
		VerifyLink:    s.clientURL + "/confirm_email?v_token=" + verificationToken,
		Template:      queues.TemplateVerifyEmail,
	}, "Verify email message has been sent to notification service")

	token, err := s.tokens.SignSessionToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("error signing token: %w", err)
	}

	return user, token, nil
}

// Signin resolves identifier as an email address when it parses as one and
// as a username otherwise. Unknown accounts and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Signin(ctx context.Context, identifier, password string) (*models.AuthUser, string, error) {
	if err := validateSignin(identifier, password); err != nil {
		return nil, "", err
	}

	repo := s.repomanager.Users(s.db)

	var user *models.AuthUser
	var err error
	if models.IsEmail(identifier) {
		user, err = repo.FindByEmail(ctx, identifier)
	} else {
		user, err = repo.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("error searching user: %w", err)
	}

	if err := s.checkPassword(ctx, repo, user.ID, password, false); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.SignSessionToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("error signing token: %w", err)
	}

	return user, token, nil
}

// ForgotPassword stores a fresh reset token and mails the reset link. The
// token itself is never returned.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidCredentials
		}
		return fmt.Errorf("error searching user: %w", err)
	}

	resetToken, err := auth.GenerateSingleUseToken()
	if err != nil {
		return fmt.Errorf("error generating token: %w", err)
	}
	expires := s.now().Add(s.resetValidity)

	err = repo.UpdateFields(ctx, user.ID, models.UserUpdate{
		PasswordResetToken:     &sql.NullString{String: resetToken, Valid: true},
		PasswordResetExpiresAt: &sql.NullTime{Time: expires, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("error storing reset token: %w", err)
	}

	s.publish(ctx, queues.EmailExchange, queues.EmailRoutingKey, queues.EmailMessage{
		ReceiverEmail: user.Email,
		ResetLink:     s.clientURL + "/reset_password?token=" + resetToken,
		Username:      user.Username,
		Template:      queues.TemplateForgotPassword,
	}, "Forgot password email sent to notification service")

	return nil
}

// ResetPassword sets a new password for the owner of an unexpired reset
// token. The token is consumed in the same statement.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirmPassword string) error {
	if err := validateReset(password, confirmPassword); err != nil {
		return err
	}
	if password != confirmPassword {
		return common.ErrPasswordMismatch
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.repomanager.Users(s.db).ConsumeResetToken(ctx, token, hash, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTokenExpiredOrInvalid
		}
		return fmt.Errorf("error resetting password: %w", err)
	}

	s.publish(ctx, queues.EmailExchange, queues.EmailRoutingKey, queues.EmailMessage{
		ReceiverEmail: user.Email,
		Template:      queues.TemplateResetPasswordSuccess,
	}, "Reset password email sent to notification service")

	return nil
}

// ChangePassword replaces the password of the authenticated actor after
// checking the current one. The row is locked while the check and update run.
func (s *AuthService) ChangePassword(ctx context.Context, actor *auth.SessionClaims, currentPassword, newPassword string) error {
	if actor == nil || actor.UserID == "" {
		return common.ErrorUnauthorized
	}
	if err := validateChange(currentPassword, newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return common.ErrSamePassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	var user *models.AuthUser
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if err := s.checkPassword(ctx, repo, actor.UserID, currentPassword, true); err != nil {
			return err
		}

		var err error
		user, err = repo.FindByID(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("error searching user: %w", err)
		}

		return repo.UpdateFields(ctx, actor.UserID, models.UserUpdate{PasswordHash: &hash})
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return err
		}
		return fmt.Errorf("error changing password: %w", err)
	}

	s.publish(ctx, queues.EmailExchange, queues.EmailRoutingKey, queues.EmailMessage{
		ReceiverEmail: user.Email,
		Template:      queues.TemplateResetPasswordSuccess,
	}, "Password change mail sent to notification service")

	return nil
}

// VerifyEmail marks the owner of token as verified and returns the updated
// user. A token can be used once.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.AuthUser, error) {
	if err := firstInvalid(required(token, "Token is a required field")); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).ConsumeVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrUsedToken
		}
		return nil, fmt.Errorf("error verifying email: %w", err)
	}
	return user, nil
}

type passwordHashReader interface {
	GetPasswordHash(ctx context.Context, id string, forUpdate bool) (string, error)
}

// checkPassword is the only reader of stored hashes; the hash goes straight
// into the comparison.
func (s *AuthService) checkPassword(ctx context.Context, repo passwordHashReader, id, password string, forUpdate bool) error {
	hash, err := repo.GetPasswordHash(ctx, id, forUpdate)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidCredentials
		}
		return fmt.Errorf("error reading password: %w", err)
	}
	if !s.hasher.Compare(hash, password) {
		return common.ErrInvalidCredentials
	}
	return nil
}

// publish hands msg to the publisher. Failures are logged and never undo the
// state change that preceded them.
func (s *AuthService) publish(ctx context.Context, exchange, routingKey string, msg any, logLabel string) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(ctx, "message encoding failed", "exchange", exchange, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, exchange, routingKey, payload, logLabel); err != nil {
		s.logger.Error(ctx, "message dispatch failed", "exchange", exchange, "routingKey", routingKey, "error", err)
	}
}
