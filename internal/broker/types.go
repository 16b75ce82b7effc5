//file: internal/broker/types.go
// Package broker supervises the lifecycle of an embedded message broker engine
package broker

import (
	"context"
	"time"

	"brokerd/internal/metrics"
	"brokerd/internal/report"
	"brokerd/internal/stats"
)

// State represents the lifecycle state of the supervisor
type State string

const (
	// StateStopped indicates no engine is held
	StateStopped State = "stopped"
	// StateStarting indicates an activation is in progress
	StateStarting State = "starting"
	// StateRunning indicates the engine started and is owned by the supervisor
	StateRunning State = "running"
	// StateStopping indicates a deactivation is in progress
	StateStopping State = "stopping"
)

// Engine is the black-box broker the supervisor drives
type Engine interface {
	// SetDataDirectory sets where the engine persists its state
	SetDataDirectory(path string)

	// AddConnector opens a client listener bound to url
	AddConnector(url string) error

	// AddNetworkConnector links this engine to a peer broker at url
	AddNetworkConnector(url string) (NetworkConnector, error)

	// Start brings the engine up and blocks until it accepts connections or ctx ends
	Start(ctx context.Context) error

	// Stop shuts the engine down and blocks until it is stopped or ctx ends
	Stop(ctx context.Context) error

	// IsStarted reports whether the engine is running
	IsStarted() bool
}

// NetworkConnector is a federation link to a peer broker
type NetworkConnector interface {
	SetDuplex(duplex bool)
	URL() string
}

// FederationReporter is implemented by engines that can count live federation links
type FederationReporter interface {
	FederationLinks() int
}

// EngineFactory constructs a fresh engine for every activation
type EngineFactory func() (Engine, error)

// ConfigurationSource is a flat key/value property lookup
type ConfigurationSource interface {
	Property(key string) (string, bool)
}

// RuntimePathProvider exposes the base directory for persistent data
type RuntimePathProvider interface {
	BaseDir() string
}

// ConnectorProbe checks that a connector accepts client connections
type ConnectorProbe interface {
	Probe(ctx context.Context, url string) error
}

// Status is a read-only view of the supervisor
type Status struct {
	State              State     `json:"state"`
	LocalConnectorURL  string    `json:"localConnectorUrl,omitempty"`
	FederatedBrokerURL string    `json:"federatedBrokerUrl,omitempty"`
	DataDirectory      string    `json:"dataDirectory,omitempty"`
	FederationLinks    int       `json:"federationLinks"`
	FederationError    string    `json:"federationError,omitempty"`
	Since              time.Time `json:"since"`
}

// SupervisorOption defines a function type for configuring the supervisor
type SupervisorOption func(*Supervisor)

// WithMetrics sets the metrics the supervisor reports to
func WithMetrics(m *metrics.Metrics) SupervisorOption {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithStats sets the lifecycle statistics collector
func WithStats(c *stats.StatsCollector) SupervisorOption {
	return func(s *Supervisor) {
		s.stats = c
	}
}

// WithReporter sets where activation and federation failures are reported
func WithReporter(r report.Reporter) SupervisorOption {
	return func(s *Supervisor) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithStartTimeout bounds how long an engine start may take
func WithStartTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.startTimeout = d
	}
}

// WithStopTimeout bounds how long an engine stop may take
func WithStopTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.stopTimeout = d
	}
}

// WithFederationRequired makes a failed federation connector abort activation
func WithFederationRequired(required bool) SupervisorOption {
	return func(s *Supervisor) {
		s.federationRequired = required
	}
}

// WithProbe registers a connector probe for a URL scheme. Probes run after
// start only when connector verification is enabled.
func WithProbe(scheme string, p ConnectorProbe) SupervisorOption {
	return func(s *Supervisor) {
		s.probes[scheme] = p
	}
}

// WithConnectorVerification enables probing the local connector after start
func WithConnectorVerification(enabled bool) SupervisorOption {
	return func(s *Supervisor) {
		s.verifyConnectors = enabled
	}
}
