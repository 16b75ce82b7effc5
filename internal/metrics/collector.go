package metrics

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the supervised broker
type Snapshot struct {
	State           string
	Connectors      int
	FederationLinks int
	RunningSince    time.Time
}

// SnapshotSource is anything that can describe the broker it supervises
type SnapshotSource interface {
	MetricsSnapshot() Snapshot
}

// MetricsCollector periodically copies a Snapshot into the gauges
type MetricsCollector struct {
	metrics  *Metrics
	source   SnapshotSource
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

func NewMetricsCollector(m *Metrics, source SnapshotSource, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		metrics:  m,
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start collects once immediately and then on every tick
func (c *MetricsCollector) Start() {
	c.Collect()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop ends the collection loop and waits for it to exit. Safe to call twice.
func (c *MetricsCollector) Stop() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// Collect takes one snapshot and updates the gauges
func (c *MetricsCollector) Collect() {
	snap := c.source.MetricsSnapshot()

	c.metrics.SetSupervisorState(snap.State)
	c.metrics.SetConnectorsActive(float64(snap.Connectors))
	c.metrics.SetFederationLinks(float64(snap.FederationLinks))

	if snap.RunningSince.IsZero() {
		c.metrics.SetUptime(0)
	} else {
		c.metrics.SetUptime(time.Since(snap.RunningSince).Seconds())
	}
}
