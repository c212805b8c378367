package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/api"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
)

// Service is the subset of the auth API the shell drives.
type Service interface {
	Health(ctx context.Context) (string, error)
	Signup(ctx context.Context, in api.SignupRequest) (*api.AuthResult, error)
	Signin(ctx context.Context, username, password string) (*api.AuthResult, error)
	VerifyEmail(ctx context.Context, token string) (*api.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) (*api.AuthResult, error)
	ResetPassword(ctx context.Context, token, password, confirm string) (*api.AuthResult, error)
	ChangePassword(ctx context.Context, session, current, next string) (*api.AuthResult, error)
}

var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

type App struct {
	service  Service
	reader   *bufio.Reader
	out      io.Writer
	session  string
	userName string
}

func NewApp(c *config.Config) *App {
	return &App{
		service: api.New(c),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
}

func (a *App) Run(ctx context.Context) {
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.session != ""
}

func (a *App) remember(res *api.AuthResult) {
	if res.Token == "" {
		return
	}
	a.session = res.Token
	if res.User != nil {
		a.userName = res.User.Username
	}
}
