package duckdb

import (
	"strings"

	"github.com/sandboxws/extract-union/pkg/catalog"
)

// Extension of DuckDB extract files.
const Extension = ".duckdb"

const defaultMemoryLimit = 256 * 1024 * 1024 // 256MB

// Dialect implements DuckDB quoting. Tables are addressed by three-part names.
type Dialect struct{}

func (Dialect) QuoteIdent(name string) string    { return quoteIdent(name) }
func (Dialect) QuoteLiteral(value string) string { return quoteLiteral(value) }

func (Dialect) TableRef(database, schema, table string) string {
	return quoteIdent(database) + "." + quoteIdent(schema) + "." + quoteIdent(table)
}

func (Dialect) TypedNull(typ catalog.TypeTag) string {
	if strings.TrimSpace(string(typ)) == "" {
		return "NULL"
	}
	return "CAST(NULL AS " + string(typ) + ")"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
