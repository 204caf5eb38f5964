// Package catalog describes the schema/table/column catalog of one extract file
// and reads it from an attached database.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// TypeTag is the engine's textual column type, e.g. "BIGINT" or "DECIMAL(18,3)".
type TypeTag string

// ColumnDef describes one column as reported by the engine catalog.
type ColumnDef struct {
	Name      string
	Type      TypeTag
	Nullable  bool
	Collation string // empty when the engine reports none
}

// Equal reports whether two definitions agree on type, nullability and collation.
// Names are not compared; callers match columns by Key first.
func (c ColumnDef) Equal(other ColumnDef) bool {
	return strings.EqualFold(string(c.Type), string(other.Type)) &&
		c.Nullable == other.Nullable &&
		c.Collation == other.Collation
}

func (c ColumnDef) String() string {
	null := "NOT NULL"
	if c.Nullable {
		null = "NULL"
	}
	if c.Collation != "" {
		return fmt.Sprintf("%s %s %s COLLATE %s", c.Name, c.Type, null, c.Collation)
	}
	return fmt.Sprintf("%s %s %s", c.Name, c.Type, null)
}

// TableDef is an ordered column list for one schema-qualified table.
type TableDef struct {
	Schema  string
	Name    string
	Columns []ColumnDef
}

// Column returns the column whose key matches name, or nil.
func (t *TableDef) Column(name string) *ColumnDef {
	key := Key(name)
	for i := range t.Columns {
		if Key(t.Columns[i].Name) == key {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the table has a column matching name.
func (t *TableDef) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// ColumnNames returns the column names in order.
func (t *TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// SchemaDef is one schema and its tables.
type SchemaDef struct {
	Name   string
	Tables []TableDef
}

// Snapshot is the catalog of a single extract file.
type Snapshot struct {
	Schemas []SchemaDef
}

// Table looks up a table by schema and table name. Matching is case-insensitive,
// like identifier resolution in the supported engines.
func (s *Snapshot) Table(schema, table string) *TableDef {
	if s == nil {
		return nil
	}
	sk, tk := Key(schema), Key(table)
	for i := range s.Schemas {
		if Key(s.Schemas[i].Name) != sk {
			continue
		}
		for j := range s.Schemas[i].Tables {
			if Key(s.Schemas[i].Tables[j].Name) == tk {
				return &s.Schemas[i].Tables[j]
			}
		}
	}
	return nil
}

// TableCount returns the number of tables across all schemas.
func (s *Snapshot) TableCount() int {
	n := 0
	for _, sc := range s.Schemas {
		n += len(sc.Tables)
	}
	return n
}

// Key normalizes an identifier for identity comparison.
func Key(name string) string {
	return cases.Fold().String(name)
}

// Source is the read-only slice of an engine connection the reader needs.
// database is the alias the file is attached under.
type Source interface {
	SchemaNames(ctx context.Context, database string) ([]string, error)
	TableNames(ctx context.Context, database, schema string) ([]string, error)
	TableDefinition(ctx context.Context, database, schema, table string) ([]ColumnDef, error)
}

// Read collects the full catalog of the database attached under the given alias.
func Read(ctx context.Context, src Source, database string) (*Snapshot, error) {
	schemas, err := src.SchemaNames(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("list schemas of %s: %w", database, err)
	}

	snap := &Snapshot{Schemas: make([]SchemaDef, 0, len(schemas))}
	for _, schema := range schemas {
		tables, err := src.TableNames(ctx, database, schema)
		if err != nil {
			return nil, fmt.Errorf("list tables of %s.%s: %w", database, schema, err)
		}

		sd := SchemaDef{Name: schema, Tables: make([]TableDef, 0, len(tables))}
		for _, table := range tables {
			cols, err := src.TableDefinition(ctx, database, schema, table)
			if err != nil {
				return nil, fmt.Errorf("describe %s.%s.%s: %w", database, schema, table, err)
			}
			sd.Tables = append(sd.Tables, TableDef{Schema: schema, Name: table, Columns: cols})
		}
		snap.Schemas = append(snap.Schemas, sd)
	}
	return snap, nil
}
