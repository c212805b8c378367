package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/api"
)

var errNotLoggedIn = errors.New("not logged in, use signin first")

func (a *App) prompt(label string) (string, error) {
	return getSimpleText(a.reader, label, a.out)
}

func (a *App) health(ctx context.Context) error {
	msg, err := a.service.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) signup(ctx context.Context) error {
	var in api.SignupRequest
	var err error

	if in.Username, err = a.prompt("Username"); err != nil {
		return err
	}
	if in.Email, err = a.prompt("Email"); err != nil {
		return err
	}
	if in.Password, err = getPassword("Password", a.out); err != nil {
		return err
	}
	if in.Country, err = a.prompt("Country"); err != nil {
		return err
	}
	path, err := a.prompt("Profile picture file")
	if err != nil {
		return err
	}
	if in.ProfilePicture, err = readPicture(path); err != nil {
		return err
	}

	res, err := a.service.Signup(ctx, in)
	if err != nil {
		return err
	}
	a.remember(res)
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *App) signin(ctx context.Context) error {
	username, err := a.prompt("Username or email")
	if err != nil {
		return err
	}
	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}

	res, err := a.service.Signin(ctx, username, password)
	if err != nil {
		return err
	}
	a.remember(res)
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *App) verifyEmail(ctx context.Context) error {
	token, err := a.prompt("Verification token")
	if err != nil {
		return err
	}
	res, err := a.service.VerifyEmail(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *App) forgotPassword(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	res, err := a.service.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *App) resetPassword(ctx context.Context) error {
	token, err := a.prompt("Reset token")
	if err != nil {
		return err
	}
	password, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	confirm, err := getPassword("Confirm password", a.out)
	if err != nil {
		return err
	}

	res, err := a.service.ResetPassword(ctx, token, password, confirm)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *App) changePassword(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	current, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	next, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}

	res, err := a.service.ChangePassword(ctx, a.session, current, next)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			a.logout()
		}
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *App) logout() {
	a.session, a.userName = "", ""
}

// readPicture turns an image file into a data URI. An empty path means no
// picture.
func readPicture(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read profile picture: %w", err)
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
