package inventory

import (
	"fmt"

	"github.com/sandboxws/extract-union/pkg/catalog"
)

// Severities for conflict warnings.
//   - WARN: the union may fail or coerce data for this column
//   - INFO: cosmetic divergence the engine tolerates
const (
	SeverityInfo = "INFO"
	SeverityWarn = "WARN"
)

// Change kinds between a canonical and an incoming column definition.
const (
	ChangeType        = "type_changed"
	ChangeNullability = "nullability_changed"
	ChangeCollation   = "collation_changed"
)

// Warning is a human-facing report line for one conflict.
type Warning struct {
	Severity string
	Kinds    []string
	Schema   string
	Table    string
	Column   string
	File     string
	Message  string
}

// Diff lists the ways incoming diverges from the existing definition.
func Diff(c Conflict) []string {
	var kinds []string
	if !sameType(c.Existing, c.Incoming) {
		kinds = append(kinds, ChangeType)
	}
	if c.Existing.Nullable != c.Incoming.Nullable {
		kinds = append(kinds, ChangeNullability)
	}
	if c.Existing.Collation != c.Incoming.Collation {
		kinds = append(kinds, ChangeCollation)
	}
	return kinds
}

func sameType(a, b catalog.ColumnDef) bool {
	a.Nullable, a.Collation = b.Nullable, b.Collation
	return a.Equal(b)
}

// SeverityForChange maps a change kind to its severity. Type changes may break
// UNION ALL; a non-null column receiving padded NULLs may fail too.
func SeverityForChange(kind string) string {
	switch kind {
	case ChangeType, ChangeNullability:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// Warnings renders conflicts into report lines in input order.
// It reads the conflicts only.
func Warnings(conflicts []Conflict) []Warning {
	out := make([]Warning, 0, len(conflicts))
	for _, c := range conflicts {
		kinds := Diff(c)
		sev := SeverityInfo
		for _, k := range kinds {
			if SeverityForChange(k) == SeverityWarn {
				sev = SeverityWarn
			}
		}
		out = append(out, Warning{
			Severity: sev,
			Kinds:    kinds,
			Schema:   c.Schema,
			Table:    c.Table,
			Column:   c.Column,
			File:     c.FromFile,
			Message: fmt.Sprintf(
				"column %s.%s.%s in %s diverges from the first definition seen (existing: %s, incoming: %s); keeping the existing definition",
				c.Schema, c.Table, c.Column, c.FromFile, describe(c.Existing), describe(c.Incoming)),
		})
	}
	return out
}

func describe(col catalog.ColumnDef) string {
	collation := col.Collation
	if collation == "" {
		collation = "-"
	}
	return fmt.Sprintf("%s/%s/%s", col.Type, nullability(col.Nullable), collation)
}

func nullability(nullable bool) string {
	if nullable {
		return "nullable"
	}
	return "not-null"
}
