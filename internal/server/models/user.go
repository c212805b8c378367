// Package models holds the records persisted by the auth server.
package models

import (
	"database/sql"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// AuthUser is an account record. PasswordHash and the single-use tokens are
// never serialised; lookups leave PasswordHash empty.
type AuthUser struct {
	ID                     string     `json:"id"`
	Username               string     `json:"username"`
	Email                  string     `json:"email"`
	PasswordHash           string     `json:"-"`
	Country                string     `json:"country"`
	ProfilePicture         string     `json:"profilePicture"`
	ProfilePublicID        string     `json:"profilePublicId"`
	EmailVerified          bool       `json:"emailVerified"`
	EmailVerificationToken *string    `json:"-"`
	PasswordResetToken     *string    `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// UserUpdate is a partial update. A nil field is left untouched; a non-nil
// field with Valid=false sets the column to NULL.
type UserUpdate struct {
	PasswordHash           *string
	EmailVerified          *bool
	EmailVerificationToken *sql.NullString
	PasswordResetToken     *sql.NullString
	PasswordResetExpiresAt *sql.NullTime
}

// IsEmpty reports whether the update would change nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.PasswordHash == nil && u.EmailVerified == nil && u.EmailVerificationToken == nil &&
		u.PasswordResetToken == nil && u.PasswordResetExpiresAt == nil
}

// CanonicalUsername upper-cases the first letter and keeps the rest as is.
func CanonicalUsername(username string) string {
	r, size := utf8.DecodeRuneInString(username)
	if r == utf8.RuneError {
		return username
	}
	return string(unicode.ToUpper(r)) + username[size:]
}

// CanonicalEmail lower-cases the address.
func CanonicalEmail(email string) string {
	return strings.ToLower(email)
}

// IsEmail reports whether s is a bare email address (no display name).
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
