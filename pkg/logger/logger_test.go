package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextAddsKnownKeys(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetDefault(nil) })

	ctx := WithContext(context.Background(), RequestIDKey, "req-1")
	ctx = WithContext(ctx, WorkflowIDKey, "wf-9")
	Info(ctx, "hello", "phase", "design")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "wf-9", line["workflow_id"])
	assert.Equal(t, "design", line["phase"])
	assert.NotContains(t, line, "trace_id")
}

func TestErrorAppendsErrorField(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetDefault(nil) })

	Error(context.Background(), "failed", assert.AnError)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, assert.AnError.Error(), line["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(slog.New(NewHandler(&buf, "debug", "json")))
	t.Cleanup(func() { SetDefault(nil) })

	Info(context.Background(), "calling upstream", "api_key", "sk-or-secret", "Authorization", "Bearer sk-or-secret", "model", "openai/gpt-4o")

	assert.NotContains(t, buf.String(), "sk-or-secret")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "[REDACTED]", line["api_key"])
	assert.Equal(t, "[REDACTED]", line["Authorization"])
	assert.Equal(t, "openai/gpt-4o", line["model"])
}

func TestNewHandlerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, "warn", "text"))
	l.Info("dropped")
	l.Warn("kept", "workflow_id", "wf-1")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "msg=kept")
	assert.Contains(t, buf.String(), "workflow_id=wf-1")
}
