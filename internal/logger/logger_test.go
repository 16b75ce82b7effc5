package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerd/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LogConfig
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &config.LogConfig{
				Level:      "info",
				OutputPath: "stdout",
				Encoding:   "json",
			},
			wantErr: false,
		},
		{
			name: "console encoding",
			cfg: &config.LogConfig{
				Level:      "warn",
				OutputPath: "stderr",
				Encoding:   "console",
			},
			wantErr: false,
		},
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: true,
		},
		{
			name: "invalid level",
			cfg: &config.LogConfig{
				Level:      "invalid",
				OutputPath: "stdout",
				Encoding:   "json",
			},
			wantErr: false, // defaults to info level
		},
		{
			name: "unwritable output path",
			cfg: &config.LogConfig{
				Level:      "info",
				OutputPath: "/nonexistent-dir/sub/brokerd.log",
				Encoding:   "json",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, logger)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	cfg := &config.LogConfig{
		Level:      "debug",
		OutputPath: "stdout",
		Encoding:   "json",
	}

	logger, err := NewLogger(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, logger)

	// Test each log level
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	child := logger.Named("supervisor").With("component", "test")
	child.Info("child message")
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brokerd.log")

	logger, err := NewLogger(&config.LogConfig{
		Level:      "info",
		OutputPath: path,
		Encoding:   "json",
	})
	require.NoError(t, err)

	logger.Debug("filtered out")
	logger.Info("activation started", "url", "tcp://localhost:61616")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "activation started")
	assert.Contains(t, string(data), "tcp://localhost:61616")
	assert.NotContains(t, string(data), "filtered out")
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	require.NotNil(t, logger)
	logger.Info("discarded", "key", "value")
}

func TestLoggerRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "brokerd.log")

	logger, err := NewLogger(&config.LogConfig{
		Level:      "debug",
		OutputPath: path,
		Encoding:   "console",
		MaxSize:    1,
		MaxBackups: 2,
	})
	require.NoError(t, err)

	logger.Debug("engine configured", "connectors", 1)
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "engine configured")
}
