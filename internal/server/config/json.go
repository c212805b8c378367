package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations accept
// both "15m" strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	DatabaseDSN                  string          `json:"database_dsn"`
	SecretKey                    string          `json:"secret_key"`
	GatewaySecretKey             string          `json:"gateway_secret_key"`
	GatewayAllowedIDs            []string        `json:"gateway_allowed_ids"`
	SessionTokenValidityDuration *timex.Duration `json:"session_token_validity_duration"`
	ResetTokenValidityDuration   timex.Duration  `json:"reset_token_validity_duration"`
	ClientURL                    string          `json:"client_url"`
	RabbitMQEndpoint             string          `json:"rabbitmq_endpoint"`
	PublishQueueSize             int             `json:"publish_queue_size"`
	PublishTimeout               timex.Duration  `json:"publish_timeout"`
	S3RootUser                   string          `json:"s3_root_user"`
	S3RootPassword               string          `json:"s3_root_password"`
	S3Bucket                     string          `json:"s3_bucket"`
	S3Region                     string          `json:"s3_region"`
	S3BaseEndpoint               string          `json:"s3_base_endpoint"`
	LogLevel                     string          `json:"log_level"`
	LogBackend                   string          `json:"log_backend"`
	ShutdownTimeout              timex.Duration  `json:"shutdown_timeout"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// field present in it over config. A missing file or invalid JSON panics:
// an operator who points at a config file expects it to be used.
//
// session_token_validity_duration is a pointer so that an explicit 0 (tokens
// without expiry) can be told apart from an absent key.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigFilePath()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.GatewaySecretKey, c.GatewaySecretKey)
	if len(c.GatewayAllowedIDs) > 0 {
		config.GatewayAllowedIDs = c.GatewayAllowedIDs
	}
	if c.SessionTokenValidityDuration != nil {
		config.SessionTokenValidityDuration = c.SessionTokenValidityDuration.Duration
	}
	if c.ResetTokenValidityDuration.Duration != 0 {
		config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Duration
	}
	setString(&config.ClientURL, c.ClientURL)
	setString(&config.RabbitMQEndpoint, c.RabbitMQEndpoint)
	if c.PublishQueueSize != 0 {
		config.PublishQueueSize = c.PublishQueueSize
	}
	if c.PublishTimeout.Duration != 0 {
		config.PublishTimeout = c.PublishTimeout.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogBackend, c.LogBackend)
	if c.ShutdownTimeout.Duration != 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
