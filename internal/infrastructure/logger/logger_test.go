package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLogrusLogger_JSONWithFields(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	log := NewLogrusLogger(cfg)

	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithField("component", "registry").Info("connection registered")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "connection registered", line["message"])
	assert.Equal(t, "registry", line["component"])
	assert.Equal(t, "notification-hub", line["service"])
}

func TestLogrusLogger_DerivedSetLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "text"
	log := NewLogrusLogger(cfg)

	var buf bytes.Buffer
	log.SetOutput(&buf)

	derived := log.WithFields(Fields{"connection_id": "alice_1000"})
	derived.SetLevel(LevelError)
	derived.Info("dropped")
	assert.Empty(t, buf.String())

	derived.Error("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "connection_id=alice_1000")
}

func TestLogrusLogger_WithContextFields(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	log := NewLogrusLogger(cfg)

	var buf bytes.Buffer
	log.SetOutput(&buf)

	ctx := ContextWithFields(context.Background(), Fields{"user_key": "alice"})
	ctx = ContextWithFields(ctx, Fields{"transport": "sse"})
	log.WithContext(ctx).Info("subscribed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "alice", line["user_key"])
	assert.Equal(t, "sse", line["transport"])
}

func TestNewDefaultConfig_StaticFields(t *testing.T) {
	t.Setenv("APP_VERSION", "1.2.3")

	cfg := NewDefaultConfig()
	assert.Equal(t, "notification-hub", cfg.Fields["service"])
	assert.Equal(t, "1.2.3", cfg.Fields["app_version"])
	assert.NotEmpty(t, cfg.Fields["pid"])
}
