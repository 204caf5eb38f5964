package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sandboxws/extract-union/pkg/config"
)

// Worklist is the resolved set of files for one run.
type Worklist struct {
	// Inputs are the genuine source files, in scan order.
	Inputs []string

	// Output is the path the caller asked for.
	Output string

	// Target is the file written during the run. It differs from Output in
	// preserve mode, where the existing output is read while the new one is built.
	Target string

	// Previous is the existing output re-absorbed in preserve mode, or empty.
	Previous string
}

// Preserving reports whether the run writes to a temporary file.
func (w *Worklist) Preserving() bool {
	return w.Target != w.Output
}

// TempPath returns "<stem>_temp<ext>" next to output.
func TempPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_temp" + ext
}

// LoadWorklist enumerates inputs matching the configured pattern in the input
// directory plus any explicit input files, sorted and de-duplicated. The output
// and its temporary file are never inputs; in preserve mode an existing output
// is returned as Previous. Inputs sharing a base name are logged, since the
// provenance column records only the base name. A nil logger discards output.
func LoadWorklist(cfg *config.Config, ext string, logger *slog.Logger) (*Worklist, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	output, err := filepath.Abs(cfg.ResolveOutput(ext))
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	w := &Worklist{Output: output, Target: output}
	temp := TempPath(output)

	if cfg.PreserveOutputFile {
		info, err := os.Stat(output)
		switch {
		case err == nil && info.IsDir():
			return nil, &OutputAccessError{Path: output, Op: "stat", Err: errors.New("is a directory")}
		case err == nil:
			w.Previous = output
			w.Target = temp
		case !errors.Is(err, fs.ErrNotExist):
			return nil, &OutputAccessError{Path: output, Op: "stat", Err: err}
		}
	}

	matches, err := filepath.Glob(filepath.Join(cfg.InputDir, cfg.ResolvePattern(ext)))
	if err != nil {
		return nil, fmt.Errorf("match inputs: %w", err)
	}
	sort.Strings(matches)

	seen := map[string]bool{output: true, temp: true}
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve input %s: %w", path, err)
		}
		if seen[abs] {
			return nil
		}
		seen[abs] = true
		w.Inputs = append(w.Inputs, abs)
		return nil
	}
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			continue
		}
		if err := add(m); err != nil {
			return nil, err
		}
	}
	for _, f := range cfg.InputFiles {
		if err := add(f); err != nil {
			return nil, err
		}
	}

	for name, paths := range w.NameCollisions() {
		logger.Warn("input files share a base name; their rows get the same provenance value",
			"name", name, "files", paths)
	}
	return w, nil
}

// NameCollisions groups inputs whose base names are equal, keyed by that name.
func (w *Worklist) NameCollisions() map[string][]string {
	byName := make(map[string][]string, len(w.Inputs))
	for _, p := range w.Inputs {
		name := filepath.Base(p)
		byName[name] = append(byName[name], p)
	}
	for name, paths := range byName {
		if len(paths) < 2 {
			delete(byName, name)
		}
	}
	return byName
}
