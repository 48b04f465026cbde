package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	original := DefaultLogger
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		DefaultLogger = original
	})
	return buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestSetVerbose(t *testing.T) {
	buf := captureOutput(t)

	SetVerbose(true)
	Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	SetVerbose(false)
	Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestContextFieldsAreLogged(t *testing.T) {
	buf := captureOutput(t)
	require.NoError(t, Configure(&LoggingConfigSpec{
		DefaultLevel: "info",
		Format:       FormatJSON,
		CommonFields: map[string]string{"service": "interviewd"},
	}))

	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithState(ctx, "listening")
	ctx = WithComponent(ctx, "session")
	InfoContext(ctx, "hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "sess-1", rec["session_id"])
	assert.Equal(t, "listening", rec["state"])
	assert.Equal(t, "session", rec["component"])
	assert.Equal(t, "interviewd", rec["service"])
	assert.Equal(t, "v", rec["k"])
}

func TestExtractLoggingFields(t *testing.T) {
	ctx := WithRequestID(WithSessionID(context.Background(), "s"), "r")
	fields := ExtractLoggingFields(ctx)
	assert.Equal(t, "s", fields.SessionID)
	assert.Equal(t, "r", fields.RequestID)
	assert.Empty(t, fields.State)
}

func TestRedactSensitiveData(t *testing.T) {
	in := "key=sk-abcdefghijklmnopqrstuvwxyz0123456789 auth=Bearer abc.def-123"
	out := RedactSensitiveData(in)
	assert.NotContains(t, out, "abcdefghijklmnopqrstuvwxyz0123456789")
	assert.Contains(t, out, "sk-a...[REDACTED]")
	assert.Contains(t, out, "Bearer [REDACTED]")
}

func TestAPIResponseErrorIsLoggedAtErrorLevel(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(slog.LevelError)

	APIResponse("dialogue", 500, "", errors.New("boom Bearer secret"))
	assert.Contains(t, buf.String(), "API response error")
	assert.NotContains(t, buf.String(), "secret")
}

func TestStateChange(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(slog.LevelInfo)

	StateChange(context.Background(), "listening", "processing", "voice_activity")
	assert.Contains(t, buf.String(), "from=listening")
	assert.Contains(t, buf.String(), "to=processing")
}
