package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandboxws/extract-union/pkg/duckdb"
	"github.com/sandboxws/extract-union/pkg/engine"
	"github.com/sandboxws/extract-union/pkg/extract"
)

func TestExitCode(t *testing.T) {
	cause := errors.New("cause")
	partial := &engine.Summary{Errors: []error{cause}}

	assert.Equal(t, exitOK, exitCode(nil, &engine.Summary{}))
	assert.Equal(t, exitPartial, exitCode(nil, partial))
	assert.Equal(t, exitInterrupted, exitCode(fmt.Errorf("scan: %w", context.Canceled), nil))
	assert.Equal(t, exitInterrupted, exitCode(engine.ErrShutdownTimeout, nil))
	assert.Equal(t, exitOutput, exitCode(&engine.OutputAccessError{Path: "u.db", Op: "create", Err: cause}, nil))
	assert.Equal(t, exitEngineStart, exitCode(&engine.EngineStartError{Engine: "duckdb", Err: cause}, nil))
	assert.Equal(t, exitInternal, exitCode(cause, nil))
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("engine: duckdb\ninput_dir: /from/file\nsource_file_column_name: origin\n"), 0o644))

	f := &flags{}
	cmd := newRootCmd(f)
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath, "--input-dir", dir, "-c", ""}))

	cfg, err := loadConfig(cmd, f, []string{"extra.duckdb"})
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.Engine, "file value kept when flag unset")
	assert.Equal(t, dir, cfg.InputDir)
	assert.Equal(t, "", cfg.SourceFileColumn)
	assert.Equal(t, []string{"extra.duckdb"}, cfg.InputFiles)
}

func TestInvalidEngineIsUsageError(t *testing.T) {
	cmd := newRootCmd(&flags{})
	cmd.SetArgs([]string{"--engine", "hyper"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, exitUsage, ee.code)
}

func TestRunSQLiteUnion(t *testing.T) {
	dir := t.TempDir()
	for name, rows := range map[string]string{"a.db": "(1), (2)", "b.db": "(3)"} {
		db, err := sql.Open("sqlite", filepath.Join(dir, name))
		require.NoError(t, err)
		_, err = db.Exec(`CREATE TABLE t (id INTEGER)`)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO t VALUES ` + rows)
		require.NoError(t, err)
		require.NoError(t, db.Close())
	}
	metricsPath := filepath.Join(dir, "run.prom")

	var out, logs bytes.Buffer
	cmd := newRootCmd(&flags{})
	cmd.SetArgs([]string{"--engine", "sqlite", "--input-dir", dir, "-o", filepath.Join(dir, "merged.db"), "--metrics-file", metricsPath})
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Tables: 1 created")
	assert.Contains(t, logs.String(), "union complete")
	_, err := os.Stat(metricsPath)
	assert.NoError(t, err)

	db, err := sql.Open("sqlite", filepath.Join(dir, "merged.db"))
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM t`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestDuckDBWithoutTagIsEngineStartError(t *testing.T) {
	if _, err := duckdb.New(context.Background(), extract.Options{}); err == nil {
		t.Skip("built with DuckDB support")
	}

	cmd := newRootCmd(&flags{})
	cmd.SetArgs([]string{"--engine", "duckdb", "--input-dir", t.TempDir(), "-o", filepath.Join(t.TempDir(), "u.duckdb")})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, exitEngineStart, ee.code)
	assert.True(t, errors.Is(err, duckdb.ErrDuckDBNotAvailable))
}
