package engine

import (
	"time"

	"github.com/sandboxws/extract-union/pkg/metrics"
)

// FileResult is the scan outcome of one input.
type FileResult struct {
	Path     string
	Alias    string
	Previous bool // the re-absorbed previous output
	Tables   int
	Err      error
}

// TableResult is the outcome of one unified table. Status is one of the
// metrics.Table* values.
type TableResult struct {
	Schema   string
	Table    string
	Status   string
	Rows     int64
	Branches int
	Omitted  int
	Duration time.Duration
	Err      error
}

// Summary reports a finished or aborted run.
type Summary struct {
	RunID     string
	Engine    string
	Output    string
	Preserved bool
	State     State

	Files     []FileResult
	Tables    []TableResult
	Conflicts int

	// Errors holds every isolated per-file and per-table error.
	Errors []error

	Elapsed time.Duration
}

// FilesScanned counts inputs whose catalog was read.
func (s *Summary) FilesScanned() int {
	n := 0
	for _, f := range s.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// FilesSkipped counts inputs skipped because they could not be read or attached.
func (s *Summary) FilesSkipped() int {
	return len(s.Files) - s.FilesScanned()
}

// TableCount counts tables with the given status.
func (s *Summary) TableCount(status string) int {
	n := 0
	for _, t := range s.Tables {
		if t.Status == status {
			n++
		}
	}
	return n
}

// RowsWritten sums the rows of every created table.
func (s *Summary) RowsWritten() int64 {
	var n int64
	for _, t := range s.Tables {
		n += t.Rows
	}
	return n
}

// HasErrors reports whether any file or table was skipped because of an error.
func (s *Summary) HasErrors() bool {
	return len(s.Errors) > 0
}

func (s *Summary) tablesCreated() int {
	return s.TableCount(metrics.TableCreated) + s.TableCount(metrics.TableEmpty)
}
