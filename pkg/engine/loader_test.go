package engine

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandboxws/extract-union/pkg/config"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}
}

func TestTempPath(t *testing.T) {
	assert.Equal(t, "/out/union_temp.duckdb", TempPath("/out/union.duckdb"))
	assert.Equal(t, "merged_temp", TempPath("merged"))
}

func TestLoadWorklistFreshRun(t *testing.T) {
	dir := t.TempDir()
	touch(t,
		filepath.Join(dir, "b.db"),
		filepath.Join(dir, "a.db"),
		filepath.Join(dir, "union.db"),
		filepath.Join(dir, "union_temp.db"),
		filepath.Join(dir, "notes.txt"),
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.db"), 0o755))

	cfg := config.Default()
	cfg.InputDir = dir
	cfg.OutputFile = filepath.Join(dir, "union.db")
	cfg.InputFiles = []string{filepath.Join(dir, "a.db")}

	w, err := LoadWorklist(cfg, ".db", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, w.Inputs)
	assert.Equal(t, filepath.Join(dir, "union.db"), w.Target)
	assert.Empty(t, w.Previous)
	assert.False(t, w.Preserving())
	require.NoError(t, ValidateWorklist(w))
}

func TestLoadWorklistPreserve(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "union.db")
	touch(t, filepath.Join(dir, "a.db"), out)

	cfg := config.Default()
	cfg.InputDir = dir
	cfg.OutputFile = out
	cfg.PreserveOutputFile = true

	w, err := LoadWorklist(cfg, ".db", nil)
	require.NoError(t, err)

	assert.True(t, w.Preserving())
	assert.Equal(t, out, w.Previous)
	assert.Equal(t, filepath.Join(dir, "union_temp.db"), w.Target)
	assert.Equal(t, []string{filepath.Join(dir, "a.db")}, w.Inputs)
}

func TestLoadWorklistPreserveWithoutOutput(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.db"))

	cfg := config.Default()
	cfg.InputDir = dir
	cfg.OutputFile = filepath.Join(dir, "union.db")
	cfg.PreserveOutputFile = true

	w, err := LoadWorklist(cfg, ".db", nil)
	require.NoError(t, err)
	assert.False(t, w.Preserving())
	assert.Empty(t, w.Previous)
}

func TestLoadWorklistCustomPattern(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "q1.db"), filepath.Join(dir, "q2.db"), filepath.Join(dir, "other.db"))

	cfg := config.Default()
	cfg.InputDir = dir
	cfg.Pattern = "q*.db"
	cfg.OutputFile = filepath.Join(dir, "union.db")

	w, err := LoadWorklist(cfg, ".db", nil)
	require.NoError(t, err)
	assert.Len(t, w.Inputs, 2)
}

func TestLoadWorklistWarnsOnSharedBaseNames(t *testing.T) {
	dir := t.TempDir()
	east := filepath.Join(dir, "east")
	west := filepath.Join(dir, "west")
	require.NoError(t, os.Mkdir(east, 0o755))
	require.NoError(t, os.Mkdir(west, 0o755))
	touch(t, filepath.Join(east, "sales.db"), filepath.Join(west, "sales.db"), filepath.Join(west, "stock.db"))

	cfg := config.Default()
	cfg.InputDir = east
	cfg.OutputFile = filepath.Join(dir, "union.db")
	cfg.InputFiles = []string{filepath.Join(west, "sales.db"), filepath.Join(west, "stock.db")}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	w, err := LoadWorklist(cfg, ".db", logger)
	require.NoError(t, err)
	require.Len(t, w.Inputs, 3)

	assert.Equal(t, map[string][]string{
		"sales.db": {filepath.Join(east, "sales.db"), filepath.Join(west, "sales.db")},
	}, w.NameCollisions())
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "name=sales.db")
	assert.NotContains(t, buf.String(), "stock.db")
}
