package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestCtxHandler_AddsContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&ctxHandler{slog.NewJSONHandler(&buf, nil)})

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithChatID(ctx, -100123)
	ctx = context.WithValue(ctx, RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, AdminIDKey, "ops")

	logger.With("component", "test").InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "corr-1", rec["correlation_id"])
	assert.Equal(t, float64(-100123), rec["chat_id"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "ops", rec["admin_id"])
	assert.Equal(t, "test", rec["component"])
}

func TestCorrelationID(t *testing.T) {
	id := NewCorrelationID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, NewCorrelationID())

	assert.Empty(t, ExtractCorrelationID(context.Background()))
	assert.Equal(t, id, ExtractCorrelationID(WithCorrelationID(context.Background(), id)))
}

func TestSetup_WritesLogFile(t *testing.T) {
	prev := Logger
	prevDefault := slog.Default()
	t.Cleanup(func() {
		Logger = prev
		slog.SetDefault(prevDefault)
	})

	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	closer, err := Setup(LogConfig{Level: "debug", JSON: true, File: path})
	require.NoError(t, err)

	Logger.Debug("written to file")
	NewRepoLogger("moderation_events").LogError(context.Background(), errors.New("boom"), "create")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, string(data), `"table":"moderation_events"`)
}
