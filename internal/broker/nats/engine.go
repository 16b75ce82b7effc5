//file: internal/broker/nats/engine.go
// Package nats runs the supervised broker as an embedded NATS server
package nats

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"

	"brokerd/internal/broker"
	"brokerd/internal/logger"
)

const readyPollInterval = 100 * time.Millisecond

// EngineConfig contains NATS engine configuration
type EngineConfig struct {
	// ServerName identifies the server to peers; a random one is used when empty
	ServerName string
	Debug      bool
	Trace      bool
}

// Engine implements broker.Engine on top of an embedded nats-server
type Engine struct {
	logger *logger.Logger
	cfg    EngineConfig

	dataDir   string
	listeners map[string]broker.Endpoint // listener kind -> endpoint
	remotes   []*networkConnector

	srvLog *serverLogger
	srv    *server.Server
	mu     sync.RWMutex
}

// NewEngine creates an unstarted engine
func NewEngine(log *logger.Logger, cfg EngineConfig) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "brokerd-" + uuid.NewString()
	}
	cfg.ServerName = NormalizeServerName(cfg.ServerName)

	return &Engine{
		logger:    log.Named("nats").With("server", cfg.ServerName),
		cfg:       cfg,
		listeners: make(map[string]broker.Endpoint),
	}
}

// NewEngineFactory returns a broker.EngineFactory building a fresh engine per activation
func NewEngineFactory(log *logger.Logger, cfg EngineConfig) broker.EngineFactory {
	return func() (broker.Engine, error) {
		return NewEngine(log, cfg), nil
	}
}

// ServerName returns the name the engine runs under
func (e *Engine) ServerName() string {
	return e.cfg.ServerName
}

// SetDataDirectory sets the JetStream store directory
func (e *Engine) SetDataDirectory(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataDir = path
}

// AddConnector opens a listener chosen by the url scheme:
// tcp/nats for clients, mqtt, ws and leaf for inbound federation.
func (e *Engine) AddConnector(rawURL string) error {
	endpoint, err := broker.ParseEndpoint(rawURL)
	if err != nil {
		return fmt.Errorf("invalid connector url: %w", err)
	}

	var kind string
	switch endpoint.Scheme {
	case "tcp", "nats":
		kind = "client"
	case "mqtt":
		kind = "mqtt"
	case "ws":
		kind = "websocket"
	case "leaf":
		kind = "leafnode"
	default:
		return fmt.Errorf("unsupported connector scheme %q", endpoint.Scheme)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.srv != nil {
		return fmt.Errorf("cannot add connector to a started engine")
	}
	if existing, ok := e.listeners[kind]; ok {
		return fmt.Errorf("%s connector already bound to %s", kind, existing.DialURL())
	}
	e.listeners[kind] = endpoint

	e.logger.Debug("connector added", "kind", kind, "url", rawURL)
	return nil
}

// AddNetworkConnector adds a leafnode remote pointing at the peer broker
func (e *Engine) AddNetworkConnector(rawURL string) (broker.NetworkConnector, error) {
	urls, err := ParseRemoteURLs(rawURL)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.srv != nil {
		return nil, fmt.Errorf("cannot add network connector to a started engine")
	}

	nc := &networkConnector{raw: rawURL, urls: urls}
	e.remotes = append(e.remotes, nc)

	e.logger.Debug("network connector added", "url", rawURL, "remotes", len(urls))
	return nc, nil
}

// Start builds the server from the collected settings and waits until it is
// ready for connections, reports a fatal error, or ctx ends. A server that
// does not become ready is shut down again.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.srv != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}

	opts, err := e.buildOptions()
	if err != nil {
		e.mu.Unlock()
		return err
	}

	srv, err := server.NewServer(opts)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to create NATS server: %w", err)
	}

	srvLog := newServerLogger(e.logger)
	srv.SetLoggerV2(srvLog, e.cfg.Debug, e.cfg.Trace, false)

	e.srv = srv
	e.srvLog = srvLog
	e.mu.Unlock()

	e.logger.Info("starting NATS server", "storeDir", opts.StoreDir)
	go srv.Start()

	for !srv.ReadyForConnections(readyPollInterval) {
		if fatal := srvLog.Fatal(); fatal != "" {
			srv.Shutdown()
			srv.WaitForShutdown()
			return fmt.Errorf("server failed to start: %s", fatal)
		}
		select {
		case <-ctx.Done():
			srv.Shutdown()
			srv.WaitForShutdown()
			if last := srvLog.LastError(); last != "" {
				return fmt.Errorf("server not ready: %s: %w", last, ctx.Err())
			}
			return fmt.Errorf("server not ready: %w", ctx.Err())
		default:
		}
	}

	e.logger.Info("NATS server ready", "clientUrl", srv.ClientURL())
	return nil
}

// buildOptions must be called with e.mu held
func (e *Engine) buildOptions() (*server.Options, error) {
	if e.dataDir == "" {
		return nil, fmt.Errorf("data directory is not set")
	}
	if err := os.MkdirAll(e.dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := &server.Options{
		ServerName: e.cfg.ServerName,
		JetStream:  true,
		StoreDir:   e.dataDir,
		NoSigs:     true,
	}

	if ep, ok := e.listeners["client"]; ok {
		opts.Host = ep.Host
		opts.Port = ep.Port
	} else {
		opts.DontListen = true
	}
	if ep, ok := e.listeners["mqtt"]; ok {
		opts.MQTT.Host = ep.Host
		opts.MQTT.Port = ep.Port
	}
	if ep, ok := e.listeners["websocket"]; ok {
		opts.Websocket.Host = ep.Host
		opts.Websocket.Port = ep.Port
		opts.Websocket.NoTLS = true
	}
	if ep, ok := e.listeners["leafnode"]; ok {
		opts.LeafNode.Host = ep.Host
		opts.LeafNode.Port = ep.Port
	}

	for _, nc := range e.remotes {
		opts.LeafNode.Remotes = append(opts.LeafNode.Remotes, nc.remoteOpts())
	}

	return opts, nil
}

// Stop shuts the server down and waits until it is gone or ctx ends
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	srv := e.srv
	e.mu.RUnlock()

	if srv == nil {
		return nil
	}

	e.logger.Info("shutting down NATS server")

	done := make(chan struct{})
	go func() {
		srv.Shutdown()
		srv.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for NATS server shutdown: %w", ctx.Err())
	}
}

// IsStarted reports whether the server is running
func (e *Engine) IsStarted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.srv != nil && e.srv.Running()
}

// FederationLinks returns the number of live leafnode connections
func (e *Engine) FederationLinks() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.srv == nil {
		return 0
	}
	return e.srv.NumLeafNodes()
}

// ClientURL returns the URL clients connect to, empty before start
func (e *Engine) ClientURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.srv == nil {
		return ""
	}
	return e.srv.ClientURL()
}
