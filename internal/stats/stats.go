package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// StatsCollector keeps process-wide lifecycle statistics of the supervisor
type StatsCollector struct {
	StartTime          time.Time
	Activations        uint64
	ActivationFailures uint64
	Deactivations      uint64
	StopFailures       uint64
	FederationFailures uint64

	mu            sync.RWMutex
	lastActivated time.Time
	lastError     string
}

// NewStatsCollector creates a new stats collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		StartTime: time.Now(),
	}
}

// RecordActivation counts a successful activation
func (s *StatsCollector) RecordActivation() {
	atomic.AddUint64(&s.Activations, 1)
	s.mu.Lock()
	s.lastActivated = time.Now()
	s.mu.Unlock()
}

// RecordActivationFailure counts a failed activation and remembers its cause
func (s *StatsCollector) RecordActivationFailure(err error) {
	atomic.AddUint64(&s.ActivationFailures, 1)
	s.setLastError(err)
}

// RecordDeactivation counts a deactivation; err is the stop failure, if any
func (s *StatsCollector) RecordDeactivation(err error) {
	atomic.AddUint64(&s.Deactivations, 1)
	if err != nil {
		atomic.AddUint64(&s.StopFailures, 1)
		s.setLastError(err)
	}
}

// RecordFederationFailure counts a federation connector that could not be set up
func (s *StatsCollector) RecordFederationFailure(err error) {
	atomic.AddUint64(&s.FederationFailures, 1)
	s.setLastError(err)
}

func (s *StatsCollector) setLastError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// GetStats returns current statistics
func (s *StatsCollector) GetStats() map[string]interface{} {
	s.mu.RLock()
	lastActivated := s.lastActivated
	lastError := s.lastError
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"uptime":              time.Since(s.StartTime).String(),
		"activations":         atomic.LoadUint64(&s.Activations),
		"activation_failures": atomic.LoadUint64(&s.ActivationFailures),
		"deactivations":       atomic.LoadUint64(&s.Deactivations),
		"stop_failures":       atomic.LoadUint64(&s.StopFailures),
		"federation_failures": atomic.LoadUint64(&s.FederationFailures),
		"last_error":          lastError,
	}
	if !lastActivated.IsZero() {
		stats["last_activated"] = lastActivated
	}
	return stats
}

// FailureRate returns the share of activations that failed
func (s *StatsCollector) FailureRate() float64 {
	ok := atomic.LoadUint64(&s.Activations)
	failed := atomic.LoadUint64(&s.ActivationFailures)
	if ok+failed == 0 {
		return 0
	}
	return float64(failed) / float64(ok+failed)
}
