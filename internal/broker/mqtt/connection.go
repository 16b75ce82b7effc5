package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"brokerd/internal/logger"
)

const (
	defaultProbeTimeout = 5 * time.Second
	disconnectQuiesce   = 250
)

// ClientFactory builds a paho client from options
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// Probe verifies an MQTT connector by completing a CONNECT handshake
type Probe struct {
	logger    *logger.Logger
	timeout   time.Duration
	newClient ClientFactory
}

// NewProbe creates a probe; timeout bounds the handshake when ctx has no deadline
func NewProbe(log *logger.Logger, timeout time.Duration) *Probe {
	return NewProbeWithClient(log, timeout, mqtt.NewClient)
}

// NewProbeWithClient creates a probe with a custom client constructor (for testing)
func NewProbeWithClient(log *logger.Logger, timeout time.Duration, factory ClientFactory) *Probe {
	if log == nil {
		log = logger.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Probe{
		logger:    log.Named("mqtt-probe"),
		timeout:   timeout,
		newClient: factory,
	}
}

// Probe connects to rawURL once and disconnects again
func (p *Probe) Probe(ctx context.Context, rawURL string) error {
	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return fmt.Errorf("probe of %s: %w", rawURL, context.DeadlineExceeded)
		}
	}

	brokerURL := toBrokerURL(rawURL)
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("brokerd-probe-" + uuid.NewString()).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(timeout)

	p.logger.Debug("probing connector", "url", brokerURL)

	client := p.newClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return fmt.Errorf("probe of %s: %w", brokerURL, ctx.Err())
	case <-time.After(timeout):
		client.Disconnect(0)
		return fmt.Errorf("probe of %s timed out after %s", brokerURL, timeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", brokerURL, err)
	}

	client.Disconnect(disconnectQuiesce)
	return nil
}

// toBrokerURL rewrites mqtt:// to the tcp:// form paho dials
func toBrokerURL(raw string) string {
	if strings.HasPrefix(raw, "mqtt://") {
		return "tcp://" + strings.TrimPrefix(raw, "mqtt://")
	}
	return raw
}
