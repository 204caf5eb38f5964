// Package report renders the end-of-run summary. Per-table and per-file
// outcomes are collected into Arrow records and printed as console tables.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"

	"github.com/sandboxws/extract-union/pkg/engine"
	"github.com/sandboxws/extract-union/pkg/metrics"
)

var tableSchema = arrow.NewSchema([]arrow.Field{
	{Name: "schema", Type: arrow.BinaryTypes.String},
	{Name: "table", Type: arrow.BinaryTypes.String},
	{Name: "status", Type: arrow.BinaryTypes.String},
	{Name: "rows", Type: arrow.PrimitiveTypes.Int64},
	{Name: "sources", Type: arrow.PrimitiveTypes.Int64},
	{Name: "omitted", Type: arrow.PrimitiveTypes.Int64},
	{Name: "seconds", Type: arrow.PrimitiveTypes.Float64},
	{Name: "error", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

var fileSchema = arrow.NewSchema([]arrow.Field{
	{Name: "file", Type: arrow.BinaryTypes.String},
	{Name: "alias", Type: arrow.BinaryTypes.String},
	{Name: "previous_output", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "tables", Type: arrow.PrimitiveTypes.Int64},
	{Name: "error", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// TablesRecord builds one row per table outcome. The caller releases it.
func TablesRecord(alloc memory.Allocator, tables []engine.TableResult) arrow.Record {
	b := array.NewRecordBuilder(alloc, tableSchema)
	defer b.Release()

	for _, t := range tables {
		b.Field(0).(*array.StringBuilder).Append(t.Schema)
		b.Field(1).(*array.StringBuilder).Append(t.Table)
		b.Field(2).(*array.StringBuilder).Append(t.Status)
		b.Field(3).(*array.Int64Builder).Append(t.Rows)
		b.Field(4).(*array.Int64Builder).Append(int64(t.Branches))
		b.Field(5).(*array.Int64Builder).Append(int64(t.Omitted))
		b.Field(6).(*array.Float64Builder).Append(t.Duration.Seconds())
		appendError(b.Field(7).(*array.StringBuilder), t.Err)
	}
	return b.NewRecord()
}

// FilesRecord builds one row per input file. The caller releases it.
func FilesRecord(alloc memory.Allocator, files []engine.FileResult) arrow.Record {
	b := array.NewRecordBuilder(alloc, fileSchema)
	defer b.Release()

	for _, f := range files {
		b.Field(0).(*array.StringBuilder).Append(f.Path)
		b.Field(1).(*array.StringBuilder).Append(f.Alias)
		b.Field(2).(*array.BooleanBuilder).Append(f.Previous)
		b.Field(3).(*array.Int64Builder).Append(int64(f.Tables))
		appendError(b.Field(4).(*array.StringBuilder), f.Err)
	}
	return b.NewRecord()
}

func appendError(b *array.StringBuilder, err error) {
	if err == nil {
		b.AppendNull()
		return
	}
	b.Append(err.Error())
}

// Options controls Write.
type Options struct {
	// Alloc defaults to memory.DefaultAllocator.
	Alloc memory.Allocator

	// MaxRows caps each printed table; zero prints all rows.
	MaxRows int

	// Verbose prints every column and the per-file table.
	Verbose bool
}

// Write prints the run summary: headline counts, the table outcomes, and any
// files or tables that were skipped because of errors.
func Write(ctx context.Context, w io.Writer, sum *engine.Summary, opts Options) error {
	alloc := opts.Alloc
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	p := NewPrinter(w, opts.MaxRows)

	writeHeadline(w, sum)

	tables := TablesRecord(alloc, sum.Tables)
	defer tables.Release()

	if tables.NumRows() > 0 {
		if opts.Verbose {
			p.Print("Tables", tables)
		} else {
			compact, err := project(tables, "schema", "table", "status", "rows")
			if err != nil {
				return err
			}
			p.Print("Tables", compact)
			compact.Release()
		}
	}

	failed, err := filterNotNull(ctx, alloc, tables, "error")
	if err != nil {
		return err
	}
	defer failed.Release()
	if failed.NumRows() > 0 {
		errs, err := project(failed, "schema", "table", "status", "error")
		if err != nil {
			return err
		}
		p.Print("Table errors", errs)
		errs.Release()
	}

	files := FilesRecord(alloc, sum.Files)
	defer files.Release()
	if opts.Verbose && files.NumRows() > 0 {
		p.Print("Files", files)
	}

	skipped, err := filterNotNull(ctx, alloc, files, "error")
	if err != nil {
		return err
	}
	defer skipped.Release()
	if skipped.NumRows() > 0 {
		errs, err := project(skipped, "file", "error")
		if err != nil {
			return err
		}
		p.Print("Skipped files", errs)
		errs.Release()
	}
	return nil
}

func writeHeadline(w io.Writer, sum *engine.Summary) {
	fmt.Fprintf(w, "Run %s (%s) %s in %s\n", sum.RunID, sum.Engine, sum.State, sum.Elapsed.Round(time.Millisecond))
	if sum.Preserved {
		fmt.Fprintf(w, "Output: %s (previous contents preserved)\n", sum.Output)
	} else {
		fmt.Fprintf(w, "Output: %s\n", sum.Output)
	}
	fmt.Fprintf(w, "Files: %d scanned, %d skipped\n", sum.FilesScanned(), sum.FilesSkipped())
	fmt.Fprintf(w, "Tables: %d created, %d empty, %d skipped, %d failed; %s rows written\n",
		sum.TableCount(metrics.TableCreated), sum.TableCount(metrics.TableEmpty),
		sum.TableCount(metrics.TableSkipped), sum.TableCount(metrics.TableFailed),
		humanize.Comma(sum.RowsWritten()))
	fmt.Fprintf(w, "Schema conflicts: %d; errors: %d\n\n", sum.Conflicts, len(sum.Errors))
}

// columnIndex returns the index of a named column, or -1 if not found.
func columnIndex(rec arrow.Record, name string) int {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return -1
	}
	return indices[0]
}

// project returns a record with only the named columns. The caller releases it.
func project(rec arrow.Record, cols ...string) (arrow.Record, error) {
	fields := make([]arrow.Field, 0, len(cols))
	arrays := make([]arrow.Array, 0, len(cols))
	for _, name := range cols {
		idx := columnIndex(rec, name)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found for projection", name)
		}
		fields = append(fields, rec.Schema().Field(idx))
		arrays = append(arrays, rec.Column(idx))
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), arrays, rec.NumRows()), nil
}

// filterNotNull keeps the rows whose named column is set. The caller releases
// the result.
func filterNotNull(ctx context.Context, alloc memory.Allocator, rec arrow.Record, name string) (arrow.Record, error) {
	idx := columnIndex(rec, name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found for filter", name)
	}
	col := rec.Column(idx)

	mb := array.NewBooleanBuilder(alloc)
	defer mb.Release()
	for i := 0; i < col.Len(); i++ {
		mb.Append(col.IsValid(i))
	}
	mask := mb.NewArray()
	defer mask.Release()

	out, err := compute.FilterRecordBatch(compute.WithAllocator(ctx, alloc), rec, mask, compute.DefaultFilterOptions())
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", name, err)
	}
	return out, nil
}
