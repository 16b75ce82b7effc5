package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Properties is a flat key/value property set, e.g. broker.url
type Properties map[string]string

// Property returns the value stored under key
func (p Properties) Property(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// EnvOverrides are read from the process environment with the BROKERD_ prefix.
// Pointer fields stay nil when the variable is not set.
type EnvOverrides struct {
	BrokerURL          *string `env:"BROKER_URL"`
	FederatedBrokerURL *string `env:"FEDERATED_BROKER_URL"`
	Home               *string `env:"HOME"`
	LogLevel           *string `env:"LOG_LEVEL"`
	SentryDSN          *string `env:"SENTRY_DSN"`
}

const envPrefix = "BROKERD_"

// LoadEnv parses the BROKERD_ variables on top of an optional dotenv file.
// The file is re-read on every call and never written into the process
// environment, so real variables win and later edits to the file are seen.
// A missing dotenv file is not an error.
func LoadEnv(dotenvPath string) (*EnvOverrides, error) {
	vars := make(map[string]string)
	if dotenvPath != "" {
		fileVars, err := godotenv.Read(dotenvPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	var overrides EnvOverrides
	opts := env.Options{Prefix: envPrefix, Environment: vars}
	if err := env.ParseWithOptions(&overrides, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return &overrides, nil
}

// ApplyEnv applies environment overrides and re-validates the result
func (c *Config) ApplyEnv(o *EnvOverrides) error {
	if o == nil {
		return nil
	}

	c.ApplyOverrides(o.BrokerURL, o.FederatedBrokerURL, o.Home)

	if o.LogLevel != nil && *o.LogLevel != "" {
		c.Logging.Level = *o.LogLevel
	}
	if o.SentryDSN != nil {
		c.Reporting.SentryDSN = *o.SentryDSN
	}

	if err := validateConfig(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
