package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("scanning", "file", "a.db")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=scanning")
	assert.Contains(t, out, "file=a.db")
}

func TestDebugJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Console: &buf, Debug: true, Format: "json"})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("query", "sql", "SELECT 1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "SELECT 1", rec["sql"])
}

func TestTeeToRotatingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger, closer, err := New(Options{Console: &buf, ToFile: true, Dir: dir})
	require.NoError(t, err)

	logger.Info("done", "tables", 3)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "tables=3"))
	assert.Equal(t, buf.String(), string(data))
}

func TestUnknownFormat(t *testing.T) {
	_, _, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}
