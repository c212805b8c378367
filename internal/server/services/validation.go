package services

import (
	"unicode/utf8"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const (
	minUsernameLen = 4
	maxUsernameLen = 12
	minPasswordLen = 4
	maxPasswordLen = 12
)

func invalid(msg string) error {
	return &common.ValidationError{Message: msg}
}

// firstInvalid returns the first failing check, in order.
func firstInvalid(checks ...func() error) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func required(value, msg string) func() error {
	return func() error {
		if value == "" {
			return invalid(msg)
		}
		return nil
	}
}

func lengthBetween(value string, min, max int, tooShort, tooLong string) func() error {
	return func() error {
		n := utf8.RuneCountInString(value)
		if n < min {
			return invalid(tooShort)
		}
		if n > max {
			return invalid(tooLong)
		}
		return nil
	}
}

func email(value string) func() error {
	return func() error {
		if !models.IsEmail(value) {
			return invalid("Invalid email")
		}
		return nil
	}
}

func validatePassword(password string) []func() error {
	return []func() error{
		required(password, "Password is a required field"),
		lengthBetween(password, minPasswordLen, maxPasswordLen,
			"Password length should be greater or equal to 4",
			"Password length should be lesser or equal to 12"),
	}
}

func validateSignup(in SignupInput) error {
	checks := []func() error{
		required(in.Username, "Username is a required field"),
		lengthBetween(in.Username, minUsernameLen, maxUsernameLen,
			"Username length should be greater than or equal to 4",
			"Username length should be lesser than or equal to 12"),
	}
	checks = append(checks, validatePassword(in.Password)...)
	checks = append(checks,
		required(in.Country, "Country is a required field"),
		required(in.Email, "Email is a required field"),
		email(in.Email),
		required(in.ProfilePicture, "Profile picture is required"),
	)
	return firstInvalid(checks...)
}

func validateSignin(identifier, password string) error {
	return firstInvalid(
		required(identifier, "Username is a required field"),
		required(password, "Password is a required field"),
	)
}

func validateEmail(value string) error {
	return firstInvalid(
		required(value, "Email is a required field"),
		email(value),
	)
}

func validateReset(password, confirmPassword string) error {
	checks := validatePassword(password)
	checks = append(checks, required(confirmPassword, "Confirm password is a required field"))
	return firstInvalid(checks...)
}

func validateChange(currentPassword, newPassword string) error {
	checks := []func() error{required(currentPassword, "Current password is a required field")}
	checks = append(checks, validatePassword(newPassword)...)
	return firstInvalid(checks...)
}
