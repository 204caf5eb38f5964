package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/sandboxws/extract-union/pkg/engine"
	"github.com/sandboxws/extract-union/pkg/metrics"
)

func sampleSummary() *engine.Summary {
	readErr := &engine.FileReadError{Path: "/in/c.db", Err: errors.New("file is not a database")}
	execErr := &engine.TableError{Kind: engine.ErrEngineExecution, Schema: "main", Table: "bad", Err: errors.New("type mismatch")}
	return &engine.Summary{
		RunID:  "run-1",
		Engine: "sqlite",
		Output: "/out/union.db",
		State:  engine.StateDone,
		Files: []engine.FileResult{
			{Path: "/in/a.db", Alias: "a", Tables: 2},
			{Path: "/in/b.db", Alias: "b", Tables: 1},
			{Path: "/in/c.db", Alias: "c", Err: readErr},
		},
		Tables: []engine.TableResult{
			{Schema: "main", Table: "orders", Status: metrics.TableCreated, Rows: 12345, Branches: 2, Duration: 20 * time.Millisecond},
			{Schema: "main", Table: "bad", Status: metrics.TableFailed, Branches: 1, Err: execErr},
			{Schema: "main", Table: "gone", Status: metrics.TableSkipped, Omitted: 2},
		},
		Conflicts: 1,
		Errors:    []error{readErr, execErr},
		Elapsed:   1500 * time.Millisecond,
	}
}

func TestTablesRecord(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	rec := TablesRecord(alloc, sampleSummary().Tables)
	defer rec.Release()

	if rec.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", rec.NumRows())
	}
	rows := rec.Column(3).(*array.Int64)
	if rows.Value(0) != 12345 {
		t.Errorf("expected 12345 rows, got %d", rows.Value(0))
	}
	errs := rec.Column(7).(*array.String)
	if !errs.IsNull(0) || errs.IsNull(1) {
		t.Errorf("error column nulls wrong: %v", errs)
	}
}

func TestWriteSummary(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	var buf bytes.Buffer
	if err := Write(context.Background(), &buf, sampleSummary(), Options{Alloc: alloc}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"Run run-1 (sqlite) done in 1.5s",
		"Files: 2 scanned, 1 skipped",
		"Tables: 1 created, 0 empty, 1 skipped, 1 failed; 12,345 rows written",
		"Schema conflicts: 1; errors: 2",
		"| schema | table  | status  | rows   |",
		"Table errors",
		"type mismatch",
		"Skipped files",
		"file is not a database",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "| sources") {
		t.Errorf("compact output should not print every column:\n%s", out)
	}
}

func TestWriteVerbose(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	var buf bytes.Buffer
	if err := Write(context.Background(), &buf, sampleSummary(), Options{Alloc: alloc, Verbose: true, MaxRows: 2}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "| sources") || !strings.Contains(out, "previous_output") {
		t.Errorf("verbose output should print every column:\n%s", out)
	}
	if !strings.Contains(out, "... (1 more rows)") {
		t.Errorf("expected truncation marker:\n%s", out)
	}
}

func TestWriteEmptyRun(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	var buf bytes.Buffer
	sum := &engine.Summary{RunID: "r", Engine: "duckdb", State: engine.StateDone}
	if err := Write(context.Background(), &buf, sum, Options{Alloc: alloc}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Tables\n") {
		t.Errorf("no table section expected:\n%s", buf.String())
	}
}
