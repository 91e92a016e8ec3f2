package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: "debug", Format: "json", Writer: buf, Component: "test"})
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf)

	ctx := context.WithValue(context.Background(), TraceIDKey, "trace-1")
	ctx = context.WithValue(ctx, ProfileIDKey, "artisan-1")
	l.WithContext(ctx).Info("hello")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "artisan-1", entry["profile_id"])
	assert.NotContains(t, entry, "user_id")
}

func TestLogger_VerificationLog(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf)

	l.VerificationLog("auto_verified", "artisan-1", "user-1", "", "pending_since", "2026-01-01T00:00:00Z")
	entry := lastEntry(t, &buf)
	assert.Equal(t, "Verification event", entry["msg"])
	assert.Equal(t, "system", entry["actor"])
	assert.Equal(t, "auto_verified", entry["event"])
	assert.Equal(t, "2026-01-01T00:00:00Z", entry["pending_since"])

	l.VerificationLog("verified", "artisan-1", "user-1", "admin-1")
	assert.Equal(t, "admin-1", lastEntry(t, &buf)["actor"])
}

func TestLogger_WithErrorAndDuration(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf)

	assert.Same(t, l, l.WithError(nil))
	l.WithError(errors.New("boom")).WithDuration(1500 * time.Millisecond).Warn("slow")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, float64(1500), entry["duration_ms"])
	assert.Equal(t, "WARN", entry["level"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json", Writer: &buf})
	l.Info("dropped")
	assert.Zero(t, buf.Len())
	l.Error("kept")
	assert.NotZero(t, buf.Len())
}
