package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		enabled  slog.Level
		disabled *slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug, nil},
		{"warn level", "WARN", slog.LevelWarn, levelPtr(slog.LevelInfo)},
		{"default info", "", slog.LevelInfo, levelPtr(slog.LevelDebug)},
		{"unknown falls back to info", "verbose", slog.LevelInfo, levelPtr(slog.LevelDebug)},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			assert.True(t, logger.Enabled(ctx, tt.enabled))
			if tt.disabled != nil {
				assert.False(t, logger.Enabled(ctx, *tt.disabled))
			}
		})
	}
}

func TestWithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).With("component", "booking")

	logger.Info("slot claimed", "provider_id", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "booking", entry["component"])
	assert.Equal(t, "slot claimed", entry["msg"])
	assert.EqualValues(t, 1, entry["provider_id"])
}

func TestDefaultAndDiscard(t *testing.T) {
	ctx := context.Background()
	logger := Default()
	require.NotNil(t, logger.Logger)
	assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.False(t, logger.Enabled(ctx, slog.LevelDebug))

	Discard().Error("dropped")
}

func levelPtr(l slog.Level) *slog.Level { return &l }
