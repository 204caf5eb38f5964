//go:build !duckdb

// Package duckdb runs the union on DuckDB database files.
// When compiled without the "duckdb" build tag, New returns an error
// directing users to rebuild with -tags duckdb.
package duckdb

import (
	"context"
	"errors"

	"github.com/sandboxws/extract-union/pkg/extract"
)

// ErrDuckDBNotAvailable is returned when DuckDB is requested
// without the duckdb build tag.
var ErrDuckDBNotAvailable = errors.New("DuckDB engine requires building with -tags duckdb")

// Engine is a stub for the DuckDB engine.
type Engine struct{}

// New returns an error when DuckDB is not compiled in.
func New(_ context.Context, _ extract.Options) (*Engine, error) {
	return nil, ErrDuckDBNotAvailable
}

func (e *Engine) Name() string             { return "duckdb" }
func (e *Engine) Extension() string        { return Extension }
func (e *Engine) Dialect() extract.Dialect { return Dialect{} }

// Connect is a stub.
func (e *Engine) Connect(_ context.Context) (extract.Conn, error) {
	return nil, ErrDuckDBNotAvailable
}

// Close is a no-op stub.
func (e *Engine) Close() error { return nil }
