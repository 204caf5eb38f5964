// Package extract defines the embedded database engine the union runs against.
// A backend must be able to attach many database files to one session and run
// cross-database CREATE TABLE ... AS SELECT statements.
package extract

import (
	"context"

	"github.com/sandboxws/extract-union/pkg/catalog"
)

// Options configures engine startup.
type Options struct {
	// WorkDir is a writable directory for engine logs and spill files.
	WorkDir string

	// MemoryLimit in bytes. Zero uses the backend default.
	MemoryLimit int64
}

// Engine is a started database engine. Close stops it.
type Engine interface {
	// Name identifies the backend ("duckdb", "sqlite").
	Name() string

	// Extension is the file extension of extract files, including the dot.
	Extension() string

	// Dialect returns the quoting rules of the backend.
	Dialect() Dialect

	// Connect opens a session with no database attached.
	Connect(ctx context.Context) (Conn, error)

	Close() error
}

// Conn is one engine session. It is not safe for concurrent use.
type Conn interface {
	catalog.Source

	// Attach makes the database at path addressable under alias.
	Attach(ctx context.Context, path, alias string, readOnly bool) error

	// CreateDatabase creates an empty database file at path.
	CreateDatabase(ctx context.Context, path string) error

	// CreateSchemaIfNotExists creates schema inside the attached database.
	CreateSchemaIfNotExists(ctx context.Context, database, schema string) error

	// Exec runs one statement.
	Exec(ctx context.Context, sql string) error

	// CountRows counts the rows of a table reference built by Dialect.TableRef.
	CountRows(ctx context.Context, tableRef string) (int64, error)

	Close() error
}

// Dialect quotes and qualifies names for one backend.
type Dialect interface {
	// QuoteIdent escapes an identifier.
	QuoteIdent(name string) string

	// QuoteLiteral escapes a string literal.
	QuoteLiteral(value string) string

	// TableRef builds a fully qualified, quoted table reference.
	TableRef(database, schema, table string) string

	// TypedNull returns a NULL expression of the given column type.
	TypedNull(typ catalog.TypeTag) string
}
