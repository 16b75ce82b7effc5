package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"brokerd/internal/logger"
)

const defaultProbeTimeout = 5 * time.Second

// Probe verifies a client connector by connecting and flushing a PING
type Probe struct {
	logger  *logger.Logger
	name    string
	timeout time.Duration
}

// NewProbe creates a probe; timeout bounds the dial when ctx has no deadline
func NewProbe(log *logger.Logger, timeout time.Duration) *Probe {
	if log == nil {
		log = logger.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Probe{
		logger:  log.Named("nats-probe"),
		name:    "brokerd-probe",
		timeout: timeout,
	}
}

// Probe connects to rawURL once, without reconnects
func (p *Probe) Probe(ctx context.Context, rawURL string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	clientURL := ToClientURL(rawURL)
	p.logger.Debug("probing connector", "url", clientURL)

	conn, err := nats.Connect(clientURL,
		nats.Name(p.name),
		nats.Timeout(p.timeout),
		nats.NoReconnect(),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", clientURL, err)
	}
	defer conn.Close()

	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("connector %s did not answer: %w", clientURL, err)
	}
	return nil
}
