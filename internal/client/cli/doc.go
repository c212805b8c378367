// Package cli implements the interactive authctl shell: it prompts for
// credentials, calls the auth service and keeps the session token of the
// last successful signup or signin for commands that need it.
package cli
