package config

import "time"

// Config holds runtime settings for authctl.
//
// Fields:
//   - ServerURL: base URL of the auth service, without the /api/v1/auth prefix.
//   - GatewaySecretKey: HMAC secret used to sign the gateway token.
//   - GatewayID: caller id placed in the gateway token.
//   - RequestTimeout: per-request deadline.
type Config struct {
	ServerURL        string
	GatewaySecretKey string
	GatewayID        string
	RequestTimeout   time.Duration
}

// LoadDefaults populates c with values matching a local development server.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:4002"
	c.GatewaySecretKey = "gatewaySecretKey"
	c.GatewayID = "auth"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then JSON, then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
