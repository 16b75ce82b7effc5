package broker

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"

	"brokerd/config"
)

// DataDirName is appended to the runtime base path to form the data directory
const DataDirName = "activemq-data"

// BrokerConfig is the validated input of a single activation
type BrokerConfig struct {
	LocalConnectorURL  string
	FederatedBrokerURL string // empty disables federation
	DataDirectory      string
}

// NewBrokerConfig builds a BrokerConfig from raw properties and the runtime
// base path. broker.url falls back to the default local connector address.
func NewBrokerConfig(src ConfigurationSource, paths RuntimePathProvider) (BrokerConfig, error) {
	var cfg BrokerConfig

	if src == nil || paths == nil {
		return cfg, newError("configure", ErrConfiguration, fmt.Errorf("configuration source and runtime paths are required"))
	}

	cfg.LocalConnectorURL = config.DefaultBrokerURL
	if v, ok := src.Property(config.PropBrokerURL); ok && v != "" {
		cfg.LocalConnectorURL = v
	}
	if v, ok := src.Property(config.PropFederatedBrokerURL); ok {
		cfg.FederatedBrokerURL = v
	}

	base := paths.BaseDir()
	if base == "" {
		return cfg, newError("configure", ErrConfiguration, fmt.Errorf("runtime base path is not set"))
	}
	dataDir, err := filepath.Abs(filepath.Join(base, DataDirName))
	if err != nil {
		return cfg, newError("configure", ErrConfiguration, fmt.Errorf("failed to resolve data directory: %w", err))
	}
	cfg.DataDirectory = dataDir

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Federated reports whether a peer broker is configured
func (c BrokerConfig) Federated() bool {
	return c.FederatedBrokerURL != ""
}

// Validate checks the invariants an activation relies on.
// The federated URL is left to the engine so that a bad peer address does not
// block local startup.
func (c BrokerConfig) Validate() error {
	if _, err := ParseEndpoint(c.LocalConnectorURL); err != nil {
		return newError("configure", ErrConfiguration, fmt.Errorf("invalid local connector url: %w", err))
	}
	if c.DataDirectory == "" {
		return newError("configure", ErrConfiguration, fmt.Errorf("data directory is not set"))
	}
	if !filepath.IsAbs(c.DataDirectory) {
		return newError("configure", ErrConfiguration, fmt.Errorf("data directory must be absolute: %s", c.DataDirectory))
	}
	return nil
}

// Endpoint is a parsed connector address
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// ParseEndpoint parses scheme://host:port and rejects anything else
func ParseEndpoint(raw string) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, fmt.Errorf("url is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, err
	}
	if u.Scheme == "" {
		return Endpoint{}, fmt.Errorf("url %q has no scheme", raw)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("url %q has no host", raw)
	}
	if u.Port() == "" {
		return Endpoint{}, fmt.Errorf("url %q has no port", raw)
	}

	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("url %q has an invalid port", raw)
	}

	return Endpoint{Scheme: u.Scheme, Host: u.Hostname(), Port: port}, nil
}

// DialURL returns the endpoint as a URL a local client can connect to.
// Wildcard bind addresses are replaced with the loopback address.
func (e Endpoint) DialURL() string {
	host := e.Host
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s://%s", e.Scheme, net.JoinHostPort(host, strconv.Itoa(e.Port)))
}
