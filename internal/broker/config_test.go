package broker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerd/config"
)

type stubPaths string

func (p stubPaths) BaseDir() string { return string(p) }

func TestNewBrokerConfig(t *testing.T) {
	tests := []struct {
		name    string
		props   config.Properties
		base    string
		want    BrokerConfig
		wantErr bool
	}{
		{
			name:  "defaults",
			props: config.Properties{},
			base:  "/var/data",
			want: BrokerConfig{
				LocalConnectorURL: "tcp://localhost:61616",
				DataDirectory:     "/var/data/activemq-data",
			},
		},
		{
			name: "explicit urls",
			props: config.Properties{
				config.PropBrokerURL:          "tcp://0.0.0.0:61618",
				config.PropFederatedBrokerURL: "tcp://peer:61617",
			},
			base: "/var/data",
			want: BrokerConfig{
				LocalConnectorURL:  "tcp://0.0.0.0:61618",
				FederatedBrokerURL: "tcp://peer:61617",
				DataDirectory:      "/var/data/activemq-data",
			},
		},
		{
			name:  "empty broker url falls back to default",
			props: config.Properties{config.PropBrokerURL: ""},
			base:  "/srv/",
			want: BrokerConfig{
				LocalConnectorURL: "tcp://localhost:61616",
				DataDirectory:     "/srv/activemq-data",
			},
		},
		{
			name:    "missing base path",
			props:   config.Properties{},
			base:    "",
			wantErr: true,
		},
		{
			name:    "malformed broker url",
			props:   config.Properties{config.PropBrokerURL: "localhost"},
			base:    "/var/data",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBrokerConfig(tt.props, stubPaths(tt.base))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBrokerConfigRelativeBase(t *testing.T) {
	cfg, err := NewBrokerConfig(config.Properties{}, stubPaths("sling"))
	require.NoError(t, err)
	assert.True(t, len(cfg.DataDirectory) > 0 && cfg.DataDirectory[0] == '/', "data directory is resolved to an absolute path")
	assert.Contains(t, cfg.DataDirectory, "sling/activemq-data")
}

func TestNewBrokerConfigNilSources(t *testing.T) {
	_, err := NewBrokerConfig(nil, stubPaths("/var/data"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewBrokerConfigFromRuntimeConfig(t *testing.T) {
	cfg, err := NewBrokerConfig(config.Properties{}, config.RuntimeConfig{Home: "/opt/sling"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/sling/activemq-data", cfg.DataDirectory)
	assert.False(t, cfg.Federated())
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw     string
		want    Endpoint
		wantErr bool
	}{
		{raw: "tcp://localhost:61616", want: Endpoint{Scheme: "tcp", Host: "localhost", Port: 61616}},
		{raw: "mqtt://0.0.0.0:1883", want: Endpoint{Scheme: "mqtt", Host: "0.0.0.0", Port: 1883}},
		{raw: "ws://[::1]:8080", want: Endpoint{Scheme: "ws", Host: "::1", Port: 8080}},
		{raw: "", wantErr: true},
		{raw: "localhost:61616", wantErr: true},
		{raw: "tcp://:61616", wantErr: true},
		{raw: "tcp://localhost", wantErr: true},
		{raw: "tcp://localhost:99999", wantErr: true},
		{raw: "://nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseEndpoint(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndpointDialURL(t *testing.T) {
	tests := []struct {
		endpoint Endpoint
		want     string
	}{
		{Endpoint{Scheme: "tcp", Host: "0.0.0.0", Port: 4222}, "tcp://127.0.0.1:4222"},
		{Endpoint{Scheme: "tcp", Host: "::", Port: 4222}, "tcp://127.0.0.1:4222"},
		{Endpoint{Scheme: "mqtt", Host: "broker.local", Port: 1883}, "mqtt://broker.local:1883"},
		{Endpoint{Scheme: "tcp", Host: "::1", Port: 4222}, "tcp://[::1]:4222"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.endpoint.DialURL())
	}
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("bind: address already in use")
	err := newError("activate", ErrEngineStart, cause)
	assert.Equal(t, "broker activate: engine start failed: bind: address already in use", err.Error())
	assert.ErrorIs(t, err, ErrEngineStart)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrEngineStop)

	bare := newError("deactivate", ErrInvalidState, nil)
	assert.Equal(t, "broker deactivate: invalid supervisor state", bare.Error())
	assert.ErrorIs(t, bare, ErrInvalidState)
}
