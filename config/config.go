package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Property keys recognized in the broker properties map
const (
	PropBrokerURL          = "broker.url"
	PropFederatedBrokerURL = "federated.broker.url"
)

// DefaultBrokerURL is the local connector address used when broker.url is unset
const DefaultBrokerURL = "tcp://localhost:61616"

type Config struct {
	Broker    BrokerSection `json:"broker" yaml:"broker"`
	Runtime   RuntimeConfig `json:"runtime" yaml:"runtime"`
	Logging   LogConfig     `json:"logging" yaml:"logging"`
	Metrics   MetricsConfig `json:"metrics" yaml:"metrics"`
	Reporting ReportConfig  `json:"reporting" yaml:"reporting"`
}

// BrokerSection holds the raw broker properties and the supervisor tuning knobs
type BrokerSection struct {
	Properties         Properties `json:"properties" yaml:"properties"`
	ServerName         string     `json:"serverName" yaml:"serverName"`
	StartTimeout       string     `json:"startTimeout" yaml:"startTimeout"` // Duration string
	StopTimeout        string     `json:"stopTimeout" yaml:"stopTimeout"`   // Duration string
	FederationRequired bool       `json:"federationRequired" yaml:"federationRequired"`
	VerifyConnectors   bool       `json:"verifyConnectors" yaml:"verifyConnectors"`
}

// RuntimeConfig describes where the broker keeps its on-disk state
type RuntimeConfig struct {
	Home string `json:"home" yaml:"home"`
}

// BaseDir returns the runtime base directory
func (r RuntimeConfig) BaseDir() string {
	return r.Home
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`           // debug, info, warn, error
	OutputPath string `json:"outputPath" yaml:"outputPath"` // file path or "stdout"
	Encoding   string `json:"encoding" yaml:"encoding"`     // json or console

	// Rotation applies only when OutputPath is a file; MaxSize 0 disables it
	MaxSize    int  `json:"maxSize" yaml:"maxSize"` // megabytes
	MaxAge     int  `json:"maxAge" yaml:"maxAge"`   // days
	MaxBackups int  `json:"maxBackups" yaml:"maxBackups"`
	Compress   bool `json:"compress" yaml:"compress"`
}

type MetricsConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Address        string `json:"address" yaml:"address"`
	Path           string `json:"path" yaml:"path"`
	UpdateInterval string `json:"updateInterval" yaml:"updateInterval"` // Duration string
}

type ReportConfig struct {
	SentryDSN   string `json:"sentryDsn" yaml:"sentryDsn"`
	Environment string `json:"environment" yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.SetDefaults()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults fills every unset field with its default value
func (c *Config) SetDefaults() {
	// Set defaults for broker
	if c.Broker.Properties == nil {
		c.Broker.Properties = make(Properties)
	}
	if v, ok := c.Broker.Properties[PropBrokerURL]; !ok || v == "" {
		c.Broker.Properties[PropBrokerURL] = DefaultBrokerURL
	}
	if c.Broker.StartTimeout == "" {
		c.Broker.StartTimeout = "10s"
	}
	if c.Broker.StopTimeout == "" {
		c.Broker.StopTimeout = "10s"
	}

	// Set defaults for logging
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.OutputPath == "" {
		c.Logging.OutputPath = "stdout"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}

	// Set defaults for metrics
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":2112"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.UpdateInterval == "" {
		c.Metrics.UpdateInterval = "15s"
	}
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	// Validate broker config
	if _, err := parsePositiveDuration(cfg.Broker.StartTimeout); err != nil {
		return fmt.Errorf("invalid broker start timeout: %w", err)
	}
	if _, err := parsePositiveDuration(cfg.Broker.StopTimeout); err != nil {
		return fmt.Errorf("invalid broker stop timeout: %w", err)
	}

	// The runtime home is resolved into the data directory later on, an
	// empty one is caught there so env overrides can still supply it.

	// Validate logging config
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}
	if cfg.Logging.MaxSize < 0 || cfg.Logging.MaxAge < 0 || cfg.Logging.MaxBackups < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}

	// Validate metrics config
	if cfg.Metrics.Enabled {
		if _, err := parsePositiveDuration(cfg.Metrics.UpdateInterval); err != nil {
			return fmt.Errorf("invalid metrics update interval: %w", err)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("metrics path must start with /: %s", cfg.Metrics.Path)
		}
	}

	return nil
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be greater than 0: %s", s)
	}
	return d, nil
}

// StartTimeoutDuration returns the parsed broker start timeout
func (b BrokerSection) StartTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(b.StartTimeout)
	return d
}

// StopTimeoutDuration returns the parsed broker stop timeout
func (b BrokerSection) StopTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(b.StopTimeout)
	return d
}

// ApplyOverrides applies command line flag overrides to the configuration.
// A nil pointer leaves the value untouched. Only the federated URL can be
// cleared by passing an empty string.
func (c *Config) ApplyOverrides(brokerURL, federatedURL, home *string) {
	if c.Broker.Properties == nil {
		c.Broker.Properties = make(Properties)
	}
	if brokerURL != nil && *brokerURL != "" {
		c.Broker.Properties[PropBrokerURL] = *brokerURL
	}
	if federatedURL != nil {
		c.Broker.Properties[PropFederatedBrokerURL] = *federatedURL
	}
	if home != nil && *home != "" {
		c.Runtime.Home = *home
	}
}
