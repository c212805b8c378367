package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	server := []string{"-a", "-d", "-s", "-gs"}

	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate values kept, foreign flags dropped",
			args:    []string{"-a", ":8080", "-test.v", "-d", "postgres://x", "-z", "1"},
			allowed: server,
			want:    []string{"-a", ":8080", "-d", "postgres://x"},
		},
		{
			name:    "equals form",
			args:    []string{"-s=session", "-gs=gateway", "-q=amqp://"},
			allowed: server,
			want:    []string{"-s=session", "-gs=gateway"},
		},
		{
			name:    "dash-prefixed token is not a value",
			args:    []string{"-s", "-gs", "gw"},
			allowed: server,
			want:    []string{"-s", "-gs", "gw"},
		},
		{
			name:    "flag without value at end",
			args:    []string{"-a"},
			allowed: server,
			want:    []string{"-a"},
		},
		{
			name:    "equals value that looks like a flag",
			args:    []string{"-s=--weird"},
			allowed: server,
			want:    []string{"-s=--weird"},
		},
		{
			name:    "repeated flag preserved in order",
			args:    []string{"-a", ":1", "-a", ":2"},
			allowed: server,
			want:    []string{"-a", ":1", "-a", ":2"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"positional", "-x", "1"},
			allowed: server,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigFilePath(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"bin", "-c", "/etc/auth.json"}, "/etc/auth.json"},
		{"long with equals", []string{"bin", "-config=/etc/auth.json", "-a", ":1"}, "/etc/auth.json"},
		{"last wins", []string{"bin", "-c", "one.json", "-config", "two.json"}, "two.json"},
		{"absent", []string{"bin", "-a", ":4002"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			assert.Equal(t, tt.want, ConfigFilePath())
		})
	}
}
