package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	tests := []struct {
		name            string
		token           *MockToken
		wantErr         bool
		wantDisconnects int32
	}{
		{
			name:            "handshake succeeds",
			token:           NewMockToken(nil),
			wantDisconnects: 1,
		},
		{
			name:    "handshake refused",
			token:   NewMockToken(errors.New("connection refused")),
			wantErr: true,
		},
		{
			name:            "no answer",
			token:           NewPendingToken(),
			wantErr:         true,
			wantDisconnects: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockClient(tt.token)
			probe := NewProbeWithClient(nil, 100*time.Millisecond, client.factory())

			err := probe.Probe(context.Background(), "mqtt://127.0.0.1:1883")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantDisconnects, client.disconnects.Load())

			opts := client.options()
			require.NotNil(t, opts)
			require.Len(t, opts.Servers, 1)
			assert.Equal(t, "tcp://127.0.0.1:1883", opts.Servers[0].String())
			assert.Contains(t, opts.ClientID, "brokerd-probe-")
			assert.False(t, opts.AutoReconnect)
		})
	}
}

func TestProbeContextCancelled(t *testing.T) {
	client := NewMockClient(NewPendingToken())
	probe := NewProbeWithClient(nil, time.Minute, client.factory())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := probe.Probe(ctx, "mqtt://127.0.0.1:1883")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), client.disconnects.Load(), "an abandoned handshake is torn down")
	assert.False(t, client.IsConnected())
}

func TestProbeExpiredDeadline(t *testing.T) {
	client := NewMockClient(NewMockToken(nil))
	probe := NewProbeWithClient(nil, time.Second, client.factory())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := probe.Probe(ctx, "mqtt://127.0.0.1:1883")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, client.options(), "no client is built once the deadline has passed")
}

func TestToBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://localhost:1883", toBrokerURL("mqtt://localhost:1883"))
	assert.Equal(t, "ssl://localhost:8883", toBrokerURL("ssl://localhost:8883"))
}
