package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandboxws/extract-union/pkg/catalog"
	"github.com/sandboxws/extract-union/pkg/extract"
)

// ValidateWorklist checks a worklist before any engine work starts.
func ValidateWorklist(w *Worklist) error {
	if w.Output == "" || w.Target == "" {
		return errors.New("output path is required")
	}
	if w.Previous != "" && w.Previous == w.Target {
		return fmt.Errorf("previous output %s cannot also be the write target", w.Previous)
	}

	seen := make(map[string]bool, len(w.Inputs))
	for _, in := range w.Inputs {
		if in == w.Output || in == w.Target {
			return fmt.Errorf("input %s is also the output", in)
		}
		if seen[in] {
			return fmt.Errorf("duplicate input %s", in)
		}
		seen[in] = true
	}

	dir := filepath.Dir(w.Target)
	info, err := os.Stat(dir)
	if err != nil {
		return &OutputAccessError{Path: w.Target, Op: "stat output directory", Err: err}
	}
	if !info.IsDir() {
		return &OutputAccessError{Path: w.Target, Op: "stat output directory", Err: fmt.Errorf("%s is not a directory", dir)}
	}
	return nil
}

// ValidateSources checks the attach plan of pass 2: aliases must be non-empty,
// distinct from each other and from the output alias.
func ValidateSources(sources []extract.SourceFile) error {
	aliases := map[string]string{catalog.Key(extract.OutputAlias): "output"}
	previous := 0
	for _, s := range sources {
		if strings.TrimSpace(s.Alias) == "" {
			return fmt.Errorf("source %s has an empty alias", s.Path)
		}
		key := catalog.Key(s.Alias)
		if other, ok := aliases[key]; ok {
			return fmt.Errorf("alias %q of %s collides with %s", s.Alias, s.Path, other)
		}
		aliases[key] = s.Path
		if s.IsOutputAlias {
			previous++
		}
	}
	if previous > 1 {
		return fmt.Errorf("%d sources are flagged as the previous output", previous)
	}
	return nil
}
