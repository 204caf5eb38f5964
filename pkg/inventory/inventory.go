// Package inventory folds the catalogs of many extract files into one unified
// schema -> table -> column structure. The first definition seen for a column
// is canonical; later divergent definitions are recorded as conflicts.
package inventory

import (
	"github.com/sandboxws/extract-union/pkg/catalog"
)

// Conflict records a column whose incoming definition diverges from the
// canonical one. It never changes the inventory.
type Conflict struct {
	Schema   string
	Table    string
	Column   string
	Existing catalog.ColumnDef
	Incoming catalog.ColumnDef
	FromFile string
}

type tableEntry struct {
	def  catalog.TableDef
	cols map[string]int
}

type schemaEntry struct {
	name   string
	tables []*tableEntry
	index  map[string]int
}

// Inventory is the unified catalog across all scanned files.
// Enumeration order is insertion order.
type Inventory struct {
	schemas []*schemaEntry
	index   map[string]int
}

// New returns an empty inventory.
func New() *Inventory {
	return &Inventory{index: make(map[string]int)}
}

// Merge folds one file's catalog into the inventory and returns the conflicts
// it found. Schemas and tables not yet present are added; new columns are
// appended; matching columns are no-ops; divergent columns keep the existing
// definition.
func (inv *Inventory) Merge(file string, snap *catalog.Snapshot) []Conflict {
	if snap == nil {
		return nil
	}

	var conflicts []Conflict
	for _, sd := range snap.Schemas {
		se := inv.schema(sd.Name)
		for _, td := range sd.Tables {
			te := se.table(td.Schema, td.Name)
			for _, col := range td.Columns {
				key := catalog.Key(col.Name)
				idx, ok := te.cols[key]
				if !ok {
					te.cols[key] = len(te.def.Columns)
					te.def.Columns = append(te.def.Columns, col)
					continue
				}
				existing := te.def.Columns[idx]
				if existing.Equal(col) {
					continue
				}
				conflicts = append(conflicts, Conflict{
					Schema:   se.name,
					Table:    te.def.Name,
					Column:   existing.Name,
					Existing: existing,
					Incoming: col,
					FromFile: file,
				})
			}
		}
	}
	return conflicts
}

func (inv *Inventory) schema(name string) *schemaEntry {
	key := catalog.Key(name)
	if i, ok := inv.index[key]; ok {
		return inv.schemas[i]
	}
	se := &schemaEntry{name: name, index: make(map[string]int)}
	inv.index[key] = len(inv.schemas)
	inv.schemas = append(inv.schemas, se)
	return se
}

func (se *schemaEntry) table(schema, name string) *tableEntry {
	key := catalog.Key(name)
	if i, ok := se.index[key]; ok {
		return se.tables[i]
	}
	te := &tableEntry{
		def:  catalog.TableDef{Schema: se.name, Name: name},
		cols: make(map[string]int),
	}
	se.index[key] = len(se.tables)
	se.tables = append(se.tables, te)
	return te
}

// Schemas returns the schema names in first-seen order.
func (inv *Inventory) Schemas() []string {
	names := make([]string, len(inv.schemas))
	for i, se := range inv.schemas {
		names[i] = se.name
	}
	return names
}

// Tables returns copies of the unified table definitions of a schema in
// first-seen order.
func (inv *Inventory) Tables(schema string) []catalog.TableDef {
	i, ok := inv.index[catalog.Key(schema)]
	if !ok {
		return nil
	}
	se := inv.schemas[i]
	out := make([]catalog.TableDef, len(se.tables))
	for j, te := range se.tables {
		out[j] = copyTable(te.def)
	}
	return out
}

// Table returns a copy of one unified table definition.
func (inv *Inventory) Table(schema, table string) (catalog.TableDef, bool) {
	i, ok := inv.index[catalog.Key(schema)]
	if !ok {
		return catalog.TableDef{}, false
	}
	se := inv.schemas[i]
	j, ok := se.index[catalog.Key(table)]
	if !ok {
		return catalog.TableDef{}, false
	}
	return copyTable(se.tables[j].def), true
}

// TableCount returns the number of unified tables.
func (inv *Inventory) TableCount() int {
	n := 0
	for _, se := range inv.schemas {
		n += len(se.tables)
	}
	return n
}

func copyTable(td catalog.TableDef) catalog.TableDef {
	cols := make([]catalog.ColumnDef, len(td.Columns))
	copy(cols, td.Columns)
	td.Columns = cols
	return td
}
