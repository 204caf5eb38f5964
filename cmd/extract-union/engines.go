package main

import (
	"context"
	"fmt"

	"github.com/sandboxws/extract-union/pkg/config"
	"github.com/sandboxws/extract-union/pkg/duckdb"
	"github.com/sandboxws/extract-union/pkg/engine"
	"github.com/sandboxws/extract-union/pkg/extract"
	"github.com/sandboxws/extract-union/pkg/sqlite"
)

// engineFactory returns the starter and file extension of a backend.
func engineFactory(name string) (engine.EngineFactory, string, error) {
	switch name {
	case config.EngineDuckDB:
		return func(ctx context.Context, opts extract.Options) (extract.Engine, error) {
			eng, err := duckdb.New(ctx, opts)
			if err != nil {
				return nil, err
			}
			return eng, nil
		}, duckdb.Extension, nil
	case config.EngineSQLite:
		return func(ctx context.Context, opts extract.Options) (extract.Engine, error) {
			eng, err := sqlite.New(ctx, opts)
			if err != nil {
				return nil, err
			}
			return eng, nil
		}, sqlite.Extension, nil
	default:
		return nil, "", fmt.Errorf("unknown engine %q", name)
	}
}
