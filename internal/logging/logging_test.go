package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, Config{Level: "info", Format: FormatJSON})
	require.NoError(t, err)

	logger := slog.New(h)
	logger.Debug("hidden")
	logger.Info("schema changed", "topic", "orders")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "schema changed", entry["msg"])
	assert.Equal(t, "orders", entry["topic"])
}

func TestNewHandlerText(t *testing.T) {
	for _, format := range []string{"", FormatText, FormatHuman} {
		var buf bytes.Buffer
		h, err := NewHandler(&buf, Config{Format: format})
		require.NoError(t, err)
		slog.New(h).Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	}
}

func TestNewHandlerUnknownFormat(t *testing.T) {
	_, err := NewHandler(&bytes.Buffer{}, Config{Format: "xml"})
	assert.Error(t, err)
}

func TestSetupWithFile(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	cfg := DefaultConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "harvester.log")

	cleanup, err := Setup(cfg)
	require.NoError(t, err)
	slog.Info("written to file")
	assert.NoError(t, cleanup())
	assert.FileExists(t, cfg.FilePath)
}
