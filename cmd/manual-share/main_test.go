package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/manual-share/config"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		obs     config.ObservabilityConfig
		wantErr bool
	}{
		{name: "json", obs: config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"}},
		{name: "console", obs: config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"}},
		{name: "defaults", obs: config.ObservabilityConfig{}},
		{name: "invalid level", obs: config.ObservabilityConfig{LogLevel: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := initLogger(tt.obs)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, logger)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			_ = logger.Sync()
		})
	}
}

func TestRootCommand(t *testing.T) {
	t.Run("registers subcommands", func(t *testing.T) {
		root := newRootCmd()
		names := make([]string, 0)
		for _, sub := range root.Commands() {
			names = append(names, sub.Name())
		}
		assert.Contains(t, names, "serve")
		assert.Contains(t, names, "migrate")
	})

	t.Run("invalid log level aborts before running", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "loud")

		root := newRootCmd()
		root.SetArgs([]string{"migrate"})
		root.SetOut(new(bytes.Buffer))
		root.SetErr(new(bytes.Buffer))

		err := root.ExecuteContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("migrate reports an unreachable database", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("DB_HOST", "127.0.0.1")
		t.Setenv("DB_PORT", "1")
		t.Setenv("LOG_LEVEL", "error")

		root := newRootCmd()
		root.SetArgs([]string{"migrate"})
		root.SetOut(new(bytes.Buffer))
		root.SetErr(new(bytes.Buffer))

		err := root.ExecuteContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ping database")
	})
}
