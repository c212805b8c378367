package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the client configuration file.
type JsonConfig struct {
	ServerURL        string         `json:"server_url"`
	GatewaySecretKey string         `json:"gateway_secret_key"`
	GatewayID        string         `json:"gateway_id"`
	RequestTimeout   timex.Duration `json:"request_timeout"`
}

// parseJson copies the fields present in the -c/-config file over cfg.
// Read or decode errors panic.
func parseJson(cfg *Config) {
	path := flagx.ConfigFilePath()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.GatewaySecretKey != "" {
		cfg.GatewaySecretKey = jc.GatewaySecretKey
	}
	if jc.GatewayID != "" {
		cfg.GatewayID = jc.GatewayID
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
