package mqtt

import (
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MockToken implements mqtt.Token for testing
type MockToken struct {
	err  error
	done chan struct{}
}

func NewMockToken(err error) *MockToken {
	t := &MockToken{
		err:  err,
		done: make(chan struct{}),
	}
	close(t.done)
	return t
}

// NewPendingToken returns a token that never completes
func NewPendingToken() *MockToken {
	return &MockToken{done: make(chan struct{})}
}

func (t *MockToken) Wait() bool                       { <-t.done; return true }
func (t *MockToken) WaitTimeout(d time.Duration) bool { return true }
func (t *MockToken) Error() error                     { return t.err }
func (t *MockToken) Done() <-chan struct{}            { return t.done }

// MockClient implements mqtt.Client for testing
type MockClient struct {
	connectToken mqtt.Token
	connected    atomic.Bool
	disconnects  atomic.Int32
	mu           sync.Mutex
	receivedOpts *mqtt.ClientOptions
}

func NewMockClient(connectToken mqtt.Token) *MockClient {
	return &MockClient{connectToken: connectToken}
}

// factory returns a ClientFactory that hands out this client
func (m *MockClient) factory() ClientFactory {
	return func(opts *mqtt.ClientOptions) mqtt.Client {
		m.mu.Lock()
		m.receivedOpts = opts
		m.mu.Unlock()
		return m
	}
}

func (m *MockClient) options() *mqtt.ClientOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receivedOpts
}

func (m *MockClient) Connect() mqtt.Token {
	m.connected.Store(true)
	return m.connectToken
}
func (m *MockClient) Disconnect(quiesce uint) {
	m.disconnects.Add(1)
	m.connected.Store(false)
}
func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return NewMockToken(nil)
}
func (m *MockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return NewMockToken(nil)
}
func (m *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return NewMockToken(nil)
}
func (m *MockClient) Unsubscribe(topics ...string) mqtt.Token          { return NewMockToken(nil) }
func (m *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (m *MockClient) IsConnected() bool                                 { return m.connected.Load() }
func (m *MockClient) IsConnectionOpen() bool                            { return m.connected.Load() }
func (m *MockClient) OptionsReader() mqtt.ClientOptionsReader           { return mqtt.ClientOptionsReader{} }
