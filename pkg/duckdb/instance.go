//go:build duckdb

package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/sandboxws/extract-union/pkg/catalog"
	"github.com/sandboxws/extract-union/pkg/extract"
)

// Engine opens isolated DuckDB instances, one per session, so that closing a
// session releases every file lock it holds.
type Engine struct {
	opts extract.Options
}

// New verifies DuckDB can start with the given options.
func New(ctx context.Context, opts extract.Options) (*Engine, error) {
	e := &Engine{opts: opts}
	inst, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := inst.Close(); err != nil {
		return nil, fmt.Errorf("duckdb: close probe instance: %w", err)
	}
	return e, nil
}

func (e *Engine) Name() string             { return "duckdb" }
func (e *Engine) Extension() string        { return Extension }
func (e *Engine) Dialect() extract.Dialect { return Dialect{} }

// Connect starts a fresh in-memory instance with a pinned connection.
func (e *Engine) Connect(ctx context.Context) (extract.Conn, error) {
	return e.open(ctx)
}

// Close is a no-op: instances are owned by their sessions.
func (e *Engine) Close() error { return nil }

func (e *Engine) open(ctx context.Context) (*Instance, error) {
	connector, err := goduckdb.NewConnector("", nil)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create connector: %w", err)
	}

	db := sql.OpenDB(connector)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: get connection: %w", err)
	}

	memoryLimit := e.opts.MemoryLimit
	if memoryLimit == 0 {
		memoryLimit = defaultMemoryLimit
	}
	limitMB := memoryLimit / (1024 * 1024)
	if limitMB < 1 {
		limitMB = 1
	}
	settings := []string{fmt.Sprintf("SET memory_limit='%dMB'", limitMB)}
	if e.opts.WorkDir != "" {
		settings = append(settings, "SET temp_directory="+quoteLiteral(e.opts.WorkDir))
	}
	for _, s := range settings {
		if _, err := conn.ExecContext(ctx, s); err != nil {
			conn.Close()
			db.Close()
			return nil, fmt.Errorf("duckdb: %s: %w", s, err)
		}
	}

	return &Instance{db: db, conn: conn}, nil
}

// Instance is one DuckDB session.
type Instance struct {
	db       *sql.DB
	conn     *sql.Conn
	attached []string
}

// Attach runs ATTACH, read-only for inputs.
func (inst *Instance) Attach(ctx context.Context, path, alias string, readOnly bool) error {
	q := fmt.Sprintf("ATTACH %s AS %s", quoteLiteral(path), quoteIdent(alias))
	if readOnly {
		q += " (READ_ONLY)"
	}
	if _, err := inst.conn.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("duckdb: attach %s: %w", path, err)
	}
	inst.attached = append(inst.attached, alias)
	return nil
}

// CreateDatabase creates a new database file; DuckDB creates it on attach.
func (inst *Instance) CreateDatabase(ctx context.Context, path string) error {
	const alias = "__create"
	if _, err := inst.conn.ExecContext(ctx, fmt.Sprintf("ATTACH %s AS %s", quoteLiteral(path), quoteIdent(alias))); err != nil {
		return fmt.Errorf("duckdb: create %s: %w", path, err)
	}
	if _, err := inst.conn.ExecContext(ctx, "DETACH "+quoteIdent(alias)); err != nil {
		return fmt.Errorf("duckdb: detach %s: %w", path, err)
	}
	return nil
}

func (inst *Instance) CreateSchemaIfNotExists(ctx context.Context, database, schema string) error {
	q := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", quoteIdent(database), quoteIdent(schema))
	if _, err := inst.conn.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("duckdb: create schema %s.%s: %w", database, schema, err)
	}
	return nil
}

// SchemaNames lists user schemas of an attached database.
func (inst *Instance) SchemaNames(ctx context.Context, database string) ([]string, error) {
	return inst.queryStrings(ctx, `
		SELECT schema_name
		FROM duckdb_schemas()
		WHERE database_name = ?
		  AND schema_name NOT IN ('information_schema', 'pg_catalog')
		ORDER BY schema_name
	`, database)
}

// TableNames lists base tables of a schema.
func (inst *Instance) TableNames(ctx context.Context, database, schema string) ([]string, error) {
	return inst.queryStrings(ctx, `
		SELECT table_name
		FROM duckdb_tables()
		WHERE database_name = ? AND schema_name = ? AND NOT temporary
		ORDER BY table_name
	`, database, schema)
}

// TableDefinition reads columns in ordinal order.
func (inst *Instance) TableDefinition(ctx context.Context, database, schema, table string) ([]catalog.ColumnDef, error) {
	rows, err := inst.conn.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, collation_name
		FROM information_schema.columns
		WHERE table_catalog = ? AND table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`, database, schema, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: describe %s.%s.%s: %w", database, schema, table, err)
	}
	defer rows.Close()

	var cols []catalog.ColumnDef
	for rows.Next() {
		var name, dataType, nullable string
		var collation sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &collation); err != nil {
			return nil, err
		}
		cols = append(cols, catalog.ColumnDef{
			Name:      name,
			Type:      catalog.TypeTag(dataType),
			Nullable:  nullable == "YES",
			Collation: collation.String,
		})
	}
	return cols, rows.Err()
}

func (inst *Instance) Exec(ctx context.Context, query string) error {
	_, err := inst.conn.ExecContext(ctx, query)
	return err
}

func (inst *Instance) CountRows(ctx context.Context, tableRef string) (int64, error) {
	var n int64
	err := inst.conn.QueryRowContext(ctx, "SELECT count(*) FROM "+tableRef).Scan(&n)
	return n, err
}

// Close detaches every database and destroys the instance.
func (inst *Instance) Close() error {
	if inst.conn != nil {
		ctx := context.Background()
		for _, alias := range inst.attached {
			inst.conn.ExecContext(ctx, "DETACH DATABASE IF EXISTS "+quoteIdent(alias))
		}
		inst.attached = nil
		inst.conn.Close()
		inst.conn = nil
	}
	if inst.db != nil {
		err := inst.db.Close()
		inst.db = nil
		return err
	}
	return nil
}

func (inst *Instance) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := inst.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("duckdb: catalog query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
