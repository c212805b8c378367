package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/api"
)

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s) ", a.userName)
}

// Root runs the read-eval loop until exit or end of input.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to authctl (type 'help' for commands)")

	for {
		fmt.Fprintf(a.out, "authctl %s> ", a.getStatus())
		line, err := a.reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		var cmdErr error
		switch parts[0] {
		case "help":
			fmt.Fprintln(a.out, "Available commands: health, signup, signin, verify, forgot, reset, change, logout, exit")
		case "health":
			cmdErr = a.health(ctx)
		case "signup":
			cmdErr = a.signup(ctx)
		case "signin", "login":
			cmdErr = a.signin(ctx)
		case "verify":
			cmdErr = a.verifyEmail(ctx)
		case "forgot":
			cmdErr = a.forgotPassword(ctx)
		case "reset":
			cmdErr = a.resetPassword(ctx)
		case "change":
			cmdErr = a.changePassword(ctx)
		case "logout":
			a.logout()
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", parts[0])
		}

		if cmdErr != nil {
			a.printError(cmdErr)
		}
	}
}

func (a *App) printError(err error) {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		fmt.Fprintln(a.out, "Error:", apiErr.Message)
	case errors.Is(err, api.ErrUnavailable):
		fmt.Fprintln(a.out, "Error: auth service is unreachable")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
}
