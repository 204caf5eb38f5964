// Package synth builds the CREATE TABLE ... AS SELECT ... UNION ALL statement
// that materializes one unified table from every input file containing it.
package synth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sandboxws/extract-union/pkg/catalog"
	"github.com/sandboxws/extract-union/pkg/extract"
)

// ErrNoCandidates is returned when no candidate file contains the table.
var ErrNoCandidates = errors.New("no candidate file contains the table")

// Options controls statement generation.
type Options struct {
	Dialect extract.Dialect

	// OutputDatabase is the alias of the attached output database.
	OutputDatabase string

	// ProvenanceColumn names the origin-file column. Empty disables it.
	ProvenanceColumn string
}

// Projection is one select-list item.
type Projection struct {
	Expr  string
	Alias string // quoted; empty when Expr already carries the right name
}

func (p Projection) String() string {
	if p.Alias == "" {
		return p.Expr
	}
	return p.Expr + " AS " + p.Alias
}

// Branch is the SELECT reading one file's copy of the table.
type Branch struct {
	File    string
	From    string
	Columns []Projection
}

func (b Branch) String() string {
	items := make([]string, len(b.Columns))
	for i, p := range b.Columns {
		items[i] = p.String()
	}
	return "SELECT " + strings.Join(items, ", ") + " FROM " + b.From
}

// Divergence notes a column read by name from a file whose definition differs
// from the canonical one.
type Divergence struct {
	File      string
	Column    string
	Canonical catalog.ColumnDef
	Actual    catalog.ColumnDef
}

// Statement is a synthesized union for one table.
type Statement struct {
	Schema   string
	Table    string
	Target   string
	Branches []Branch

	// Omitted lists candidate files that do not contain the table.
	Omitted []string

	Divergences []Divergence
}

// SQL renders the statement.
func (s *Statement) SQL() string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(s.Target)
	sb.WriteString(" AS\n")
	for i, b := range s.Branches {
		if i > 0 {
			sb.WriteString("\nUNION ALL\n")
		}
		sb.WriteString(b.String())
	}
	return sb.String()
}

// Synthesize aligns every candidate file's copy of table to the unified column
// list. Missing columns become typed NULLs; files without the table are skipped
// and listed in Omitted. The result depends only on its arguments.
func Synthesize(table catalog.TableDef, candidates []extract.SourceFile, opts Options) (*Statement, error) {
	if opts.Dialect == nil {
		return nil, errors.New("synth: dialect is required")
	}
	if err := checkIdents(opts.OutputDatabase, table.Schema, table.Name); err != nil {
		return nil, err
	}

	d := opts.Dialect
	provKey := ""
	if opts.ProvenanceColumn != "" {
		provKey = catalog.Key(opts.ProvenanceColumn)
	}

	columns := make([]catalog.ColumnDef, 0, len(table.Columns))
	for _, c := range table.Columns {
		if c.Name == "" {
			return nil, fmt.Errorf("synth: %s.%s has a column with an empty name", table.Schema, table.Name)
		}
		if provKey != "" && catalog.Key(c.Name) == provKey {
			continue
		}
		columns = append(columns, c)
	}
	if len(columns) == 0 && provKey == "" {
		return nil, fmt.Errorf("synth: %s.%s has no columns to select", table.Schema, table.Name)
	}

	stmt := &Statement{
		Schema: table.Schema,
		Table:  table.Name,
		Target: d.TableRef(opts.OutputDatabase, table.Schema, table.Name),
	}

	for _, file := range candidates {
		src := file.Catalog.Table(table.Schema, table.Name)
		if src == nil {
			stmt.Omitted = append(stmt.Omitted, file.Path)
			continue
		}
		if err := checkIdents(file.Alias, src.Schema, src.Name); err != nil {
			return nil, fmt.Errorf("%s: %w", file.Path, err)
		}

		branch := Branch{
			File:    file.Path,
			From:    d.TableRef(file.Alias, src.Schema, src.Name),
			Columns: make([]Projection, 0, len(columns)+1),
		}
		for _, c := range columns {
			actual := src.Column(c.Name)
			if actual == nil {
				branch.Columns = append(branch.Columns, Projection{
					Expr:  d.TypedNull(c.Type),
					Alias: d.QuoteIdent(c.Name),
				})
				continue
			}
			p := Projection{Expr: d.QuoteIdent(actual.Name)}
			if actual.Name != c.Name {
				p.Alias = d.QuoteIdent(c.Name)
			}
			branch.Columns = append(branch.Columns, p)
			if !actual.Equal(c) {
				stmt.Divergences = append(stmt.Divergences, Divergence{
					File: file.Path, Column: c.Name, Canonical: c, Actual: *actual,
				})
			}
		}

		if provKey != "" {
			branch.Columns = append(branch.Columns, provenance(d, file, src, opts.ProvenanceColumn))
		}
		stmt.Branches = append(stmt.Branches, branch)
	}

	if len(stmt.Branches) == 0 {
		return stmt, ErrNoCandidates
	}
	return stmt, nil
}

// provenance selects the file name for genuine sources. The previous output
// keeps the origin it already recorded.
func provenance(d extract.Dialect, file extract.SourceFile, src *catalog.TableDef, column string) Projection {
	alias := d.QuoteIdent(column)
	if file.IsOutputAlias {
		if existing := src.Column(column); existing != nil {
			return Projection{Expr: d.QuoteIdent(existing.Name), Alias: alias}
		}
	}
	return Projection{Expr: d.QuoteLiteral(file.Name()), Alias: alias}
}

func checkIdents(names ...string) error {
	for _, n := range names {
		if n == "" {
			return errors.New("synth: empty identifier")
		}
	}
	return nil
}
