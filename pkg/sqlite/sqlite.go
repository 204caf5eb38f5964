// Package sqlite runs the union on SQLite database files through the pure-Go
// modernc.org/sqlite driver. Every file has a single schema, "main"; attached
// databases are addressed as "<alias>"."<table>".
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sandboxws/extract-union/pkg/catalog"
	"github.com/sandboxws/extract-union/pkg/extract"
)

// Extension of SQLite extract files.
const Extension = ".db"

// MainSchema is the only schema of a SQLite database.
const MainSchema = "main"

// Engine hands out SQLite sessions. Each session has its own in-memory main
// database, so attachments never leak between sessions.
type Engine struct {
	db          *sql.DB
	memoryLimit int64
}

// New starts the engine and verifies the driver is usable. Only
// opts.MemoryLimit applies: SQLite keeps temporary data in the system temp
// location and has no working directory of its own.
func New(ctx context.Context, opts extract.Options) (*Engine, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Engine{db: db, memoryLimit: opts.MemoryLimit}, nil
}

func (e *Engine) Name() string             { return "sqlite" }
func (e *Engine) Extension() string        { return Extension }
func (e *Engine) Dialect() extract.Dialect { return Dialect{} }

// Connect pins one pooled connection for the session.
func (e *Engine) Connect(ctx context.Context) (extract.Conn, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get connection: %w", err)
	}
	if e.memoryLimit > 0 {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA soft_heap_limit = %d", e.memoryLimit)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: set soft_heap_limit: %w", err)
		}
	}
	return &Conn{conn: conn}, nil
}

// Close releases all pooled connections.
func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Conn is one SQLite session.
type Conn struct {
	conn     *sql.Conn
	attached []string
}

// Attach runs ATTACH DATABASE. Read-only attachments go through a mode=ro URI
// filename, which also refuses to create a missing file.
func (c *Conn) Attach(ctx context.Context, path, alias string, readOnly bool) error {
	name := path
	if readOnly {
		name = readOnlyURI(path)
	}
	q := fmt.Sprintf("ATTACH DATABASE %s AS %s", quoteLiteral(name), quoteIdent(alias))
	if _, err := c.conn.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: attach %s: %w", path, err)
	}
	c.attached = append(c.attached, alias)
	return nil
}

// CreateDatabase creates the file by attaching and detaching it.
func (c *Conn) CreateDatabase(ctx context.Context, path string) error {
	const alias = "__create"
	if _, err := c.conn.ExecContext(ctx, fmt.Sprintf("ATTACH DATABASE %s AS %s", quoteLiteral(path), quoteIdent(alias))); err != nil {
		return fmt.Errorf("sqlite: create %s: %w", path, err)
	}
	if _, err := c.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA %s.user_version = 0", quoteIdent(alias))); err != nil {
		return fmt.Errorf("sqlite: initialise %s: %w", path, err)
	}
	if _, err := c.conn.ExecContext(ctx, "DETACH DATABASE "+quoteIdent(alias)); err != nil {
		return fmt.Errorf("sqlite: detach %s: %w", path, err)
	}
	return nil
}

// CreateSchemaIfNotExists accepts only the main schema; SQLite has no others.
func (c *Conn) CreateSchemaIfNotExists(_ context.Context, _, schema string) error {
	if catalog.Key(schema) != MainSchema {
		return fmt.Errorf("sqlite: schema %q not supported", schema)
	}
	return nil
}

// SchemaNames returns the single main schema of an attached database.
func (c *Conn) SchemaNames(ctx context.Context, database string) ([]string, error) {
	var seq int
	var name, file string
	rows, err := c.conn.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("sqlite: database_list: %w", err)
	}
	defer rows.Close()
	found := false
	for rows.Next() {
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, err
		}
		if catalog.Key(name) == catalog.Key(database) {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("sqlite: database %q is not attached", database)
	}
	return []string{MainSchema}, nil
}

// TableNames lists user tables, skipping sqlite_ internals.
func (c *Conn) TableNames(ctx context.Context, database, _ string) ([]string, error) {
	q := fmt.Sprintf(
		`SELECT name FROM %s.sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%%' ESCAPE '\' ORDER BY name`,
		quoteIdent(database))
	rows, err := c.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// TableDefinition reads PRAGMA table_info. SQLite does not report column
// collations there, so Collation stays empty.
func (c *Conn) TableDefinition(ctx context.Context, database, _, table string) ([]catalog.ColumnDef, error) {
	q := fmt.Sprintf("PRAGMA %s.table_info(%s)", quoteIdent(database), quoteIdent(table))
	rows, err := c.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []catalog.ColumnDef
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, catalog.ColumnDef{
			Name:     name,
			Type:     catalog.TypeTag(typ),
			Nullable: notNull == 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: table %s.%s not found", database, table)
	}
	return cols, nil
}

func (c *Conn) Exec(ctx context.Context, query string) error {
	_, err := c.conn.ExecContext(ctx, query)
	return err
}

// CountRows returns the number of rows of a quoted table reference.
func (c *Conn) CountRows(ctx context.Context, tableRef string) (int64, error) {
	var n int64
	err := c.conn.QueryRowContext(ctx, "SELECT count(*) FROM "+tableRef).Scan(&n)
	return n, err
}

// Close detaches every database and returns the connection to the pool.
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	ctx := context.Background()
	for _, alias := range c.attached {
		c.conn.ExecContext(ctx, "DETACH DATABASE "+quoteIdent(alias))
	}
	c.attached = nil
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Dialect implements SQLite quoting.
type Dialect struct{}

func (Dialect) QuoteIdent(name string) string    { return quoteIdent(name) }
func (Dialect) QuoteLiteral(value string) string { return quoteLiteral(value) }

// TableRef ignores schema: the database alias is SQLite's schema qualifier.
func (Dialect) TableRef(database, _, table string) string {
	return quoteIdent(database) + "." + quoteIdent(table)
}

func (Dialect) TypedNull(typ catalog.TypeTag) string {
	if strings.TrimSpace(string(typ)) == "" {
		return "NULL"
	}
	return "CAST(NULL AS " + string(typ) + ")"
}

// readOnlyURI turns a file path into "file:<escaped path>?mode=ro".
func readOnlyURI(path string) string {
	u := url.URL{Path: filepath.ToSlash(path)}
	return "file:" + u.EscapedPath() + "?mode=ro"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
