package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refprice.log")

	logger, err := New(Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	logger.Named("engine").Info("resolved", Request("abc"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"abc"`)
	assert.Contains(t, string(data), `"logger":"engine"`)
}

func TestNewLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refprice.log")

	logger, err := New(Config{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNewBadOutput(t *testing.T) {
	_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
