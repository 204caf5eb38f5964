package extract

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/sandboxws/extract-union/pkg/catalog"
)

// OutputAlias is the alias the output database is attached under.
const OutputAlias = "union_output"

// SourceFile is one input of the union.
type SourceFile struct {
	Path string

	// Alias is the database name the file is attached under.
	Alias string

	// IsOutputAlias marks the previous output re-absorbed in preserve mode.
	IsOutputAlias bool

	// Catalog is filled during scanning; nil if the file could not be read.
	Catalog *catalog.Snapshot
}

// Name is the file name recorded in the provenance column.
func (f SourceFile) Name() string {
	return filepath.Base(f.Path)
}

// Aliases assigns distinct database aliases derived from file stems. Reserved
// names (such as OutputAlias) are never handed out. Output order follows input.
func Aliases(paths []string, reserved ...string) []string {
	taken := make(map[string]bool, len(paths)+len(reserved))
	for _, r := range reserved {
		taken[catalog.Key(r)] = true
	}

	out := make([]string, len(paths))
	for i, p := range paths {
		base := sanitize(strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)))
		alias := base
		for n := 2; taken[catalog.Key(alias)]; n++ {
			alias = base + "_" + strconv.Itoa(n)
		}
		taken[catalog.Key(alias)] = true
		out[i] = alias
	}
	return out
}

func sanitize(stem string) string {
	var sb strings.Builder
	for _, r := range stem {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	s := sb.String()
	if s == "" || unicode.IsDigit([]rune(s)[0]) {
		s = "f_" + s
	}
	return s
}
