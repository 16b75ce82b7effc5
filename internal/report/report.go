// Package report forwards supervisor failures to an external error tracker
package report

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"brokerd/config"
)

// Reporter receives failures worth surfacing outside the process logs
type Reporter interface {
	Report(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// New returns a Sentry-backed reporter when a DSN is configured and a no-op one otherwise
func New(cfg config.ReportConfig, release string) (Reporter, error) {
	if cfg.SentryDSN == "" {
		return Nop{}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     release,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}

	return &sentryReporter{hub: sentry.CurrentHub()}, nil
}

type sentryReporter struct {
	hub *sentry.Hub
}

func (r *sentryReporter) Report(err error, tags map[string]string) {
	if err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

func (r *sentryReporter) Flush(timeout time.Duration) {
	r.hub.Flush(timeout)
}

// Nop discards every report
type Nop struct{}

func (Nop) Report(error, map[string]string) {}

func (Nop) Flush(time.Duration) {}
