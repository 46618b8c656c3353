package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framepace/pkg/ports"
)

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleWriter(ports.LevelWarn, &buf)

	log.Debug("debug line")
	log.Info("info line")
	log.Warn("warn line")
	log.Error("error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")
}

func TestConsoleLogger_ComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleWriter(ports.LevelDebug, &buf).
		WithComponent("pacer").
		WithField("pts", 1.5)

	log.Info("Presented frame %d", 3)

	assert.Equal(t, "[pacer] Presented frame 3 pts=1.5\n", buf.String())
}

func TestConsoleLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewConsoleWriter(ports.LevelDebug, &buf)
	_ = parent.WithField("a", 1)

	parent.Info("plain")

	assert.Equal(t, "plain\n", buf.String())
}

func TestStructuredLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewStructured(ports.LevelDebug, FormatJSON, &buf).
		WithComponent("decoder").
		WithField("path", "clip.mp4")

	log.Debug("Seeking to %d", 42)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "debug", rec["level"])
	assert.Equal(t, "Seeking to 42", rec["msg"])
	assert.Equal(t, "decoder", rec["component"])
	assert.Equal(t, "clip.mp4", rec["path"])
}

func TestStructuredLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	log := NewStructured(ports.LevelInfo, FormatText, &buf)

	log.Debug("hidden")
	log.Info("visible")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, "msg=visible")
}

func TestStructuredLogger_Quiet(t *testing.T) {
	var buf bytes.Buffer
	log := NewStructured(ports.LevelQuiet, FormatText, &buf)

	log.Error("nothing")

	assert.Empty(t, buf.String())
}
