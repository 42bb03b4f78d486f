package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/centraunit/rebind/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := logging.New("info", "json", &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Watcher subscribed.", zap.String("scope", "app"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "expected exactly one JSON line, got %q", buf.String())
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Watcher subscribed.", entry["msg"])
	assert.Equal(t, "app", entry["scope"])
}

func TestNew_Console(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := logging.New("DEBUG", "console", &buf)
	require.NoError(t, err)

	logger.Debug("Resolved request.", zap.Int("candidates", 2))
	require.NoError(t, logger.Sync())
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "Resolved request.")
	assert.Contains(t, buf.String(), `"candidates": 2`)
}

func TestNew_InvalidSettings(t *testing.T) {
	t.Parallel()

	_, err := logging.New("loud", "json", &bytes.Buffer{})
	require.Error(t, err)

	_, err = logging.New("info", "xml", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}
