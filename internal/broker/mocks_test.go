package broker

import (
	"context"
	"sync"
	"time"
)

// mockNetworkConnector records the duplex flag set by the supervisor
type mockNetworkConnector struct {
	url    string
	duplex bool
}

func (c *mockNetworkConnector) SetDuplex(duplex bool) { c.duplex = duplex }
func (c *mockNetworkConnector) URL() string           { return c.url }

// mockEngine implements Engine and records every call for assertions
type mockEngine struct {
	mu sync.Mutex

	dataDirectory     string
	connectors        []string
	networkConnectors []*mockNetworkConnector
	started           bool
	startCalls        int
	stopCalls         int
	links             int

	connectorErr error
	networkErr   error
	startErr     error
	stopErr      error

	// blockStart makes Start wait for ctx to expire
	blockStart bool
	// startedOnFailure leaves the engine marked started when Start fails
	startedOnFailure bool
}

func (e *mockEngine) SetDataDirectory(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataDirectory = path
}

func (e *mockEngine) AddConnector(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.connectorErr != nil {
		return e.connectorErr
	}
	e.connectors = append(e.connectors, url)
	return nil
}

func (e *mockEngine) AddNetworkConnector(url string) (NetworkConnector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.networkErr != nil {
		return nil, e.networkErr
	}
	nc := &mockNetworkConnector{url: url}
	e.networkConnectors = append(e.networkConnectors, nc)
	return nc, nil
}

func (e *mockEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.startCalls++
	block := e.blockStart
	e.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		e.started = e.startedOnFailure
		return e.startErr
	}
	e.started = true
	return nil
}

func (e *mockEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopCalls++
	if e.stopErr != nil {
		return e.stopErr
	}
	e.started = false
	return nil
}

func (e *mockEngine) IsStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

func (e *mockEngine) FederationLinks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.links
}

// engineRecorder is an EngineFactory that hands out prepared mock engines
type engineRecorder struct {
	mu         sync.Mutex
	engines    []*mockEngine
	prepare    func(*mockEngine)
	factoryErr error
}

func (r *engineRecorder) factory() (Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factoryErr != nil {
		return nil, r.factoryErr
	}
	e := &mockEngine{}
	if r.prepare != nil {
		r.prepare(e)
	}
	r.engines = append(r.engines, e)
	return e, nil
}

func (r *engineRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

func (r *engineRecorder) last() *mockEngine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.engines) == 0 {
		return nil
	}
	return r.engines[len(r.engines)-1]
}

// mockProbe records probed URLs and returns err
type mockProbe struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (p *mockProbe) Probe(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
	return p.err
}

// recordingReporter captures reported errors
type recordingReporter struct {
	mu     sync.Mutex
	errors []error
	ops    []string
}

func (r *recordingReporter) Report(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	r.ops = append(r.ops, tags["op"])
}

func (r *recordingReporter) Flush(time.Duration) {}
