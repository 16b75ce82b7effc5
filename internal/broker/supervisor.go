//file: internal/broker/supervisor.go
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"brokerd/internal/logger"
	"brokerd/internal/metrics"
	"brokerd/internal/report"
	"brokerd/internal/stats"
)

// Supervisor owns exactly one broker engine and drives its lifecycle.
// Activate, Deactivate and Reconfigure are meant to be called by a single
// owner; State and Status may be called from any goroutine.
type Supervisor struct {
	newEngine EngineFactory
	logger    *logger.Logger
	metrics   *metrics.Metrics
	stats     *stats.StatsCollector
	reporter  report.Reporter
	probes    map[string]ConnectorProbe

	startTimeout       time.Duration
	stopTimeout        time.Duration
	federationRequired bool
	verifyConnectors   bool

	mu           sync.RWMutex
	state        State
	engine       Engine
	config       BrokerConfig
	runningSince time.Time
	fedErr       error
}

// NewSupervisor creates a stopped supervisor that builds engines with factory
func NewSupervisor(factory EngineFactory, log *logger.Logger, opts ...SupervisorOption) *Supervisor {
	if log == nil {
		log = logger.NewNop()
	}

	s := &Supervisor{
		newEngine: factory,
		logger:    log,
		reporter:  report.Nop{},
		probes:    make(map[string]ConnectorProbe),
		state:     StateStopped,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetSupervisorState(string(StateStopped))
	})

	return s
}

// Activate builds a new engine from cfg and starts it. It must be called from
// the stopped state. On failure the engine is released, the supervisor is
// stopped again and the returned error wraps the original cause.
func (s *Supervisor) Activate(ctx context.Context, cfg BrokerConfig) error {
	s.mu.Lock()
	if s.state != StateStopped {
		state := s.state
		s.mu.Unlock()
		return newError("activate", ErrInvalidState, fmt.Errorf("cannot activate while %s", state))
	}
	s.setStateLocked(StateStarting)
	s.fedErr = nil
	s.mu.Unlock()

	s.logger.Info("starting activation of broker",
		"connector", cfg.LocalConnectorURL,
		"federated", cfg.FederatedBrokerURL)

	engine, err := s.activate(ctx, cfg)
	if err != nil {
		s.mu.Lock()
		s.setStateLocked(StateStopped)
		s.mu.Unlock()

		s.logger.Error("broker activation failed", "error", err)
		if s.stats != nil {
			s.stats.RecordActivationFailure(err)
		}
		s.safeMetricsUpdate(func(m *metrics.Metrics) {
			m.IncActivations("error")
		})
		s.reporter.Report(err, map[string]string{"op": "activate"})
		return err
	}

	s.mu.Lock()
	s.engine = engine
	s.config = cfg
	s.runningSince = time.Now()
	s.setStateLocked(StateRunning)
	s.mu.Unlock()

	s.logger.Info("broker started",
		"connector", cfg.LocalConnectorURL,
		"dataDirectory", cfg.DataDirectory)
	if s.stats != nil {
		s.stats.RecordActivation()
	}
	s.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.IncActivations("success")
	})

	return nil
}

// activate runs the engine setup sequence and returns the started engine
func (s *Supervisor) activate(ctx context.Context, cfg BrokerConfig) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine, err := s.newEngine()
	if err != nil {
		return nil, newError("activate", ErrEngineStart, fmt.Errorf("failed to create engine: %w", err))
	}

	s.logger.Info("setting data directory", "dataDirectory", cfg.DataDirectory)
	engine.SetDataDirectory(cfg.DataDirectory)

	if cfg.Federated() {
		s.logger.Info("federating broker", "peer", cfg.FederatedBrokerURL)
		connector, err := engine.AddNetworkConnector(cfg.FederatedBrokerURL)
		if err != nil {
			err = fmt.Errorf("failed to add network connector %s: %w", cfg.FederatedBrokerURL, err)
			s.federationFailed(err)
			if s.federationRequired {
				return nil, s.abort(ctx, engine, err)
			}
		} else {
			connector.SetDuplex(true)
		}
	}

	s.logger.Info("adding connector", "connector", cfg.LocalConnectorURL)
	if err := engine.AddConnector(cfg.LocalConnectorURL); err != nil {
		return nil, s.abort(ctx, engine, fmt.Errorf("failed to add connector %s: %w", cfg.LocalConnectorURL, err))
	}

	startCtx, cancel := s.withTimeout(ctx, s.startTimeout)
	defer cancel()
	if err := engine.Start(startCtx); err != nil {
		return nil, s.abort(ctx, engine, fmt.Errorf("failed to start engine: %w", err))
	}

	if s.verifyConnectors {
		if err := s.verify(startCtx, cfg.LocalConnectorURL); err != nil {
			return nil, s.abort(ctx, engine, err)
		}
	}

	return engine, nil
}

// verify runs the probe registered for the connector's scheme, if any
func (s *Supervisor) verify(ctx context.Context, connectorURL string) error {
	endpoint, err := ParseEndpoint(connectorURL)
	if err != nil {
		return err
	}

	probe, ok := s.probes[endpoint.Scheme]
	if !ok {
		s.logger.Debug("no probe for connector scheme", "scheme", endpoint.Scheme)
		return nil
	}

	if err := probe.Probe(ctx, endpoint.DialURL()); err != nil {
		return fmt.Errorf("connector %s is not reachable: %w", connectorURL, err)
	}
	s.logger.Debug("connector verified", "connector", connectorURL)
	return nil
}

// abort releases a partially set up engine and wraps cause as a start error.
// A release failure is appended after the cause.
func (s *Supervisor) abort(ctx context.Context, engine Engine, cause error) error {
	if engine.IsStarted() {
		stopCtx, cancel := s.withTimeout(ctx, s.stopTimeout)
		defer cancel()
		if err := engine.Stop(stopCtx); err != nil {
			s.logger.Error("failed to release engine after activation failure", "error", err)
			cause = multierr.Append(cause, fmt.Errorf("failed to release engine: %w", err))
		}
	}
	return newError("activate", ErrEngineStart, cause)
}

func (s *Supervisor) federationFailed(err error) {
	s.logger.Error("federation connector failed", "error", err, "required", s.federationRequired)

	s.mu.Lock()
	s.fedErr = err
	s.mu.Unlock()

	if s.stats != nil {
		s.stats.RecordFederationFailure(err)
	}
	s.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.IncFederationErrors()
	})
	s.reporter.Report(err, map[string]string{"op": "federate"})
}

// Deactivate stops the held engine, if it reports itself started, and always
// drops the handle afterwards. Without an engine it is a no-op. A stop failure
// is logged and returned but never leaves the engine held.
func (s *Supervisor) Deactivate(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStarting || s.state == StateStopping {
		state := s.state
		s.mu.Unlock()
		return newError("deactivate", ErrInvalidState, fmt.Errorf("cannot deactivate while %s", state))
	}
	engine := s.engine
	if engine == nil {
		s.setStateLocked(StateStopped)
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StateStopping)
	s.mu.Unlock()

	s.logger.Info("stopping broker")

	var stopErr error
	if engine.IsStarted() {
		stopCtx, cancel := s.withTimeout(ctx, s.stopTimeout)
		if err := engine.Stop(stopCtx); err != nil {
			stopErr = newError("deactivate", ErrEngineStop, err)
			s.logger.Error("failed to stop broker", "error", err)
		}
		cancel()
	}

	s.mu.Lock()
	s.engine = nil
	s.config = BrokerConfig{}
	s.runningSince = time.Time{}
	s.fedErr = nil
	s.setStateLocked(StateStopped)
	s.mu.Unlock()

	if s.stats != nil {
		s.stats.RecordDeactivation(stopErr)
	}
	s.safeMetricsUpdate(func(m *metrics.Metrics) {
		if stopErr != nil {
			m.IncDeactivations("error")
		} else {
			m.IncDeactivations("success")
		}
	})

	if stopErr == nil {
		s.logger.Info("broker stopped")
	}
	return stopErr
}

// Reconfigure replaces the running engine with one built from cfg. A failed
// stop of the old engine is logged and does not prevent the new activation.
func (s *Supervisor) Reconfigure(ctx context.Context, cfg BrokerConfig) error {
	if err := s.Deactivate(ctx); err != nil {
		if errors.Is(err, ErrInvalidState) {
			return err
		}
		s.logger.Warn("previous broker did not stop cleanly", "error", err)
	}
	return s.Activate(ctx, cfg)
}

// State returns the current lifecycle state
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Status returns a snapshot of the supervised broker
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		State:              s.state,
		LocalConnectorURL:  s.config.LocalConnectorURL,
		FederatedBrokerURL: s.config.FederatedBrokerURL,
		DataDirectory:      s.config.DataDirectory,
		Since:              s.runningSince,
	}
	if s.fedErr != nil {
		status.FederationError = s.fedErr.Error()
	}
	if fr, ok := s.engine.(FederationReporter); ok {
		status.FederationLinks = fr.FederationLinks()
	}
	return status
}

// MetricsSnapshot implements metrics.SnapshotSource
func (s *Supervisor) MetricsSnapshot() metrics.Snapshot {
	status := s.Status()

	snap := metrics.Snapshot{
		State:           string(status.State),
		FederationLinks: status.FederationLinks,
		RunningSince:    status.Since,
	}
	if status.State == StateRunning {
		snap.Connectors = 1
	}
	return snap
}

func (s *Supervisor) setStateLocked(state State) {
	s.state = state
	s.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetSupervisorState(string(state))
	})
}

func (s *Supervisor) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// safeMetricsUpdate safely updates metrics if they are enabled
func (s *Supervisor) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
