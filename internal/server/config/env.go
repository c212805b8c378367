package config

import (
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name declared in Config's env tags,
// e.g. GOPHAUTH_JWT_TOKEN.
const EnvPrefix = "GOPHAUTH_"

// parseEnv overlays variables that are set in the environment. Unset
// variables leave the current values alone. Malformed values panic, the same
// way a broken JSON file does.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
