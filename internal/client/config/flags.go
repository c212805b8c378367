package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags overlays cfg with command-line flags.
//
//	-a string   auth service base URL
//	-g string   gateway secret key
//	-id string  gateway caller id
//	-t int      request timeout in seconds
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-id", "-t"})

	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "auth service base URL")
	fs.StringVar(&cfg.GatewaySecretKey, "g", cfg.GatewaySecretKey, "gateway secret key")
	fs.StringVar(&cfg.GatewayID, "id", cfg.GatewayID, "gateway caller id")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
