package nats

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/nats-io/nats-server/v2/server"

	"brokerd/internal/logger"
)

// networkConnector is a leafnode remote to a peer broker
type networkConnector struct {
	raw  string
	urls []*url.URL

	mu     sync.Mutex
	duplex bool
}

// SetDuplex controls whether messages published on the peer flow back here.
// A non-duplex link only exports local traffic.
func (c *networkConnector) SetDuplex(duplex bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duplex = duplex
}

func (c *networkConnector) Duplex() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duplex
}

func (c *networkConnector) URL() string {
	return c.raw
}

func (c *networkConnector) remoteOpts() *server.RemoteLeafOpts {
	remote := &server.RemoteLeafOpts{
		URLs: c.urls,
	}
	if !c.Duplex() {
		remote.DenyImports = []string{">"}
	}
	return remote
}

// serverLogger routes nats-server log output into the structured logger and
// remembers the last error so a failed start can explain itself.
type serverLogger struct {
	log *logger.Logger

	mu      sync.Mutex
	lastErr string
	fatal   string
}

func newServerLogger(log *logger.Logger) *serverLogger {
	return &serverLogger{log: log}
}

func (l *serverLogger) Noticef(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

func (l *serverLogger) Warnf(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// Fatalf is logged as an error; an embedded server must never exit the process
func (l *serverLogger) Fatalf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l.mu.Lock()
	l.lastErr = msg
	l.fatal = msg
	l.mu.Unlock()
	l.log.Error(msg)
}

func (l *serverLogger) Errorf(format string, v ...interface{}) {
	l.record(format, v...)
	l.log.Errorf(format, v...)
}

func (l *serverLogger) Debugf(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

func (l *serverLogger) Tracef(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

func (l *serverLogger) record(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastErr = fmt.Sprintf(format, v...)
}

// LastError returns the most recent error or fatal message
func (l *serverLogger) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Fatal returns the first fatal message, empty while the server is healthy
func (l *serverLogger) Fatal() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fatal
}
