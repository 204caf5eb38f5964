// Package engine drives a union run: it scans every input catalog into one
// inventory, then attaches all inputs and a fresh output database to a single
// session and materializes each unified table with one CREATE TABLE AS SELECT.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/sandboxws/extract-union/pkg/catalog"
	"github.com/sandboxws/extract-union/pkg/extract"
	"github.com/sandboxws/extract-union/pkg/inventory"
	"github.com/sandboxws/extract-union/pkg/metrics"
	"github.com/sandboxws/extract-union/pkg/synth"
)

// State is a step of the run lifecycle.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateInventoried
	StatePreparing
	StateExecuting
	StateFinalizing
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateInventoried:
		return "inventoried"
	case StatePreparing:
		return "preparing"
	case StateExecuting:
		return "executing"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EngineFactory starts the database engine for a run.
type EngineFactory func(ctx context.Context, opts extract.Options) (extract.Engine, error)

// Orchestrator runs one union. It is single use and not safe for concurrent use.
type Orchestrator struct {
	rc      *RunContext
	work    *Worklist
	factory EngineFactory
	logger  *slog.Logger

	state State
	inv   *inventory.Inventory
}

// New creates an orchestrator for the given worklist.
func New(rc *RunContext, work *Worklist, factory EngineFactory) *Orchestrator {
	return &Orchestrator{
		rc:      rc,
		work:    work,
		factory: factory,
		logger:  rc.Logger,
		inv:     inventory.New(),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// Inventory returns the unified catalog built while scanning.
func (o *Orchestrator) Inventory() *inventory.Inventory { return o.inv }

// Run executes the whole union. Per-file and per-table errors are collected in
// the summary; the returned error is non-nil only when the run aborted.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	if o.state != StateIdle {
		return nil, fmt.Errorf("orchestrator already ran (state %s)", o.state)
	}

	start := time.Now()
	sum := &Summary{
		RunID:     o.rc.RunID,
		Output:    o.work.Output,
		Preserved: o.work.Preserving(),
	}
	defer func() {
		sum.State = o.state
		sum.Elapsed = time.Since(start)
		o.rc.Metrics.RunDuration.Set(sum.Elapsed.Seconds())
	}()

	if err := ValidateWorklist(o.work); err != nil {
		return sum, o.abort(err)
	}
	if err := ctx.Err(); err != nil {
		return sum, o.abort(err)
	}
	if o.rc.Config.PreserveOutputFile && !o.work.Preserving() {
		o.logger.Info("preserve mode requested but no output exists yet; writing a fresh output", "output", o.work.Output)
	}

	eng, err := o.factory(ctx, o.engineOptions())
	if err != nil {
		return sum, o.abort(&EngineStartError{Engine: o.rc.Config.Engine, Err: err})
	}
	defer eng.Close()
	sum.Engine = eng.Name()
	o.logger = o.logger.With("engine", eng.Name())

	o.transition(StateScanning)
	sources, err := o.scan(ctx, eng, sum)
	if err != nil {
		return sum, o.abort(err)
	}

	o.transition(StateInventoried)
	o.reportConflicts(ctx, sum)
	o.logger.Info("assimilated input files",
		"scanned", sum.FilesScanned(), "skipped", sum.FilesSkipped(),
		"schemas", len(o.inv.Schemas()), "tables", o.inv.TableCount())

	o.transition(StatePreparing)
	conn, sources, err := o.prepare(ctx, eng, sources, sum)
	if err != nil {
		if ctx.Err() != nil {
			o.discardTarget()
		}
		return sum, o.abort(err)
	}

	o.transition(StateExecuting)
	execErr := o.execute(ctx, eng.Dialect(), conn, sources, sum)
	closeErr := conn.Close()
	if execErr != nil {
		o.discardTarget()
		return sum, o.abort(execErr)
	}

	o.transition(StateFinalizing)
	if err := o.finalize(closeErr); err != nil {
		return sum, o.abort(err)
	}

	o.transition(StateDone)
	o.logger.Info("union complete",
		"output", o.work.Output,
		"tables_created", sum.tablesCreated(),
		"rows", sum.RowsWritten(),
		"conflicts", sum.Conflicts,
		"errors", len(sum.Errors),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return sum, nil
}

func (o *Orchestrator) engineOptions() extract.Options {
	opts := extract.Options{WorkDir: os.TempDir()}
	if o.rc.Config.Log.ToFile {
		opts.WorkDir = o.rc.Config.Log.Dir
	}
	if n, err := o.rc.Config.MemoryLimitBytes(); err == nil {
		opts.MemoryLimit = n
	}
	return opts
}

func (o *Orchestrator) transition(next State) {
	o.logger.Debug("state transition", "from", o.state, "to", next)
	o.state = next
}

func (o *Orchestrator) abort(err error) error {
	o.logger.Error("run aborted", "state", o.state, "error", err)
	o.state = StateAborted
	return err
}

// scan reads every input catalog into the inventory, one short-lived session
// per file. The previous output, if any, is scanned first so its column order
// stays canonical across preserve runs. An unreadable previous output aborts
// the run.
func (o *Orchestrator) scan(ctx context.Context, eng extract.Engine, sum *Summary) ([]extract.SourceFile, error) {
	paths := o.work.Inputs
	if o.work.Previous != "" {
		paths = append([]string{o.work.Previous}, paths...)
	}
	aliases := extract.Aliases(paths, extract.OutputAlias)
	o.logger.Info("assimilated files to be processed", "count", len(paths))

	sources := make([]extract.SourceFile, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src := extract.SourceFile{
			Path:          path,
			Alias:         aliases[i],
			IsOutputAlias: path == o.work.Previous,
		}
		res := FileResult{Path: path, Alias: src.Alias, Previous: src.IsOutputAlias}

		snap, err := o.readCatalog(ctx, eng, src)
		if err != nil {
			var startErr *EngineStartError
			if errors.As(err, &startErr) {
				return nil, err
			}
			if src.IsOutputAlias {
				res.Err = err
				sum.Files = append(sum.Files, res)
				return nil, &OutputAccessError{Path: path, Op: "read previous output", Err: err}
			}
			o.logger.Error("could not read file; skipping it", "file", path, "error", err)
			o.rc.Metrics.FilesScanned.WithLabelValues(metrics.FileSkipped).Inc()
			res.Err = err
			sum.Files = append(sum.Files, res)
			sum.Errors = append(sum.Errors, err)
			continue
		}

		src.Catalog = snap
		res.Tables = snap.TableCount()
		o.logCatalog(src)
		conflicts := o.inv.Merge(src.Name(), snap)
		o.rc.Conflicts = append(o.rc.Conflicts, conflicts...)
		o.rc.Metrics.FilesScanned.WithLabelValues(metrics.FileScanned).Inc()

		sources = append(sources, src)
		sum.Files = append(sum.Files, res)
	}
	return sources, nil
}

func (o *Orchestrator) readCatalog(ctx context.Context, eng extract.Engine, src extract.SourceFile) (*catalog.Snapshot, error) {
	// Some engines create a missing file on attach.
	if _, err := os.Stat(src.Path); err != nil {
		return nil, &FileReadError{Path: src.Path, Err: err}
	}

	conn, err := eng.Connect(ctx)
	if err != nil {
		return nil, &EngineStartError{Engine: eng.Name(), Err: err}
	}
	defer conn.Close()

	if err := conn.Attach(ctx, src.Path, src.Alias, true); err != nil {
		return nil, &FileReadError{Path: src.Path, Err: err}
	}
	snap, err := catalog.Read(ctx, conn, src.Alias)
	if err != nil {
		return nil, &FileReadError{Path: src.Path, Err: err}
	}
	return snap, nil
}

func (o *Orchestrator) logCatalog(src extract.SourceFile) {
	log := o.logger.With("file", src.Name())
	log.Info("assimilating file", "alias", src.Alias, "previous_output", src.IsOutputAlias)
	for _, sc := range src.Catalog.Schemas {
		log.Info("schema", "schema", sc.Name, "tables", len(sc.Tables))
		for _, t := range sc.Tables {
			log.Info("table", "schema", sc.Name, "table", t.Name, "columns", len(t.Columns))
			for _, c := range t.Columns {
				log.Debug("column", "table", t.Name, "column", c.Name,
					"type", c.Type, "nullable", c.Nullable, "collation", c.Collation)
			}
		}
	}
}

func (o *Orchestrator) reportConflicts(ctx context.Context, sum *Summary) {
	sum.Conflicts = len(o.rc.Conflicts)
	o.rc.Metrics.Conflicts.Add(float64(sum.Conflicts))
	for _, w := range inventory.Warnings(o.rc.Conflicts) {
		level := slog.LevelInfo
		if w.Severity == inventory.SeverityWarn {
			level = slog.LevelWarn
		}
		o.logger.Log(ctx, level, w.Message,
			"schema", w.Schema, "table", w.Table, "column", w.Column,
			"file", w.File, "changes", w.Kinds)
	}
}

// prepare creates the output database and attaches it with every scanned
// source to one session. Sources that fail to attach are dropped, except the
// previous output: losing it would replace its rows on finalize.
func (o *Orchestrator) prepare(ctx context.Context, eng extract.Engine, sources []extract.SourceFile, sum *Summary) (extract.Conn, []extract.SourceFile, error) {
	if err := ValidateSources(sources); err != nil {
		return nil, nil, err
	}
	if err := removeIfExists(o.work.Target); err != nil {
		return nil, nil, &OutputAccessError{Path: o.work.Target, Op: "remove stale file", Err: err}
	}

	conn, err := eng.Connect(ctx)
	if err != nil {
		return nil, nil, &EngineStartError{Engine: eng.Name(), Err: err}
	}
	if err := conn.CreateDatabase(ctx, o.work.Target); err != nil {
		conn.Close()
		return nil, nil, &OutputAccessError{Path: o.work.Target, Op: "create", Err: err}
	}
	if err := conn.Attach(ctx, o.work.Target, extract.OutputAlias, false); err != nil {
		conn.Close()
		return nil, nil, &OutputAccessError{Path: o.work.Target, Op: "attach", Err: err}
	}

	attached := make([]extract.SourceFile, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			conn.Close()
			return nil, nil, err
		}
		if err := conn.Attach(ctx, src.Path, src.Alias, true); err != nil {
			if src.IsOutputAlias {
				conn.Close()
				o.discardTarget()
				return nil, nil, &OutputAccessError{Path: src.Path, Op: "read previous output", Err: err}
			}
			ferr := &FileReadError{Path: src.Path, Err: err}
			o.logger.Error("could not attach file; skipping it", "file", src.Path, "error", err)
			o.rc.Metrics.FilesScanned.WithLabelValues(metrics.FileSkipped).Inc()
			markFileFailed(sum, src.Path, ferr)
			continue
		}
		attached = append(attached, src)
	}
	o.logger.Info("attached output and inputs", "target", o.work.Target, "inputs", len(attached))
	return conn, attached, nil
}

func markFileFailed(sum *Summary, path string, err error) {
	for i := range sum.Files {
		if sum.Files[i].Path == path {
			sum.Files[i].Err = err
		}
	}
	sum.Errors = append(sum.Errors, err)
}

// execute materializes every inventory table. A failing table is recorded and
// skipped; only cancellation stops the loop.
func (o *Orchestrator) execute(ctx context.Context, d extract.Dialect, conn extract.Conn, sources []extract.SourceFile, sum *Summary) error {
	opts := synth.Options{
		Dialect:          d,
		OutputDatabase:   extract.OutputAlias,
		ProvenanceColumn: o.rc.Config.SourceFileColumn,
	}

	for _, schema := range o.inv.Schemas() {
		tables := o.inv.Tables(schema)
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := conn.CreateSchemaIfNotExists(ctx, extract.OutputAlias, schema); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for _, t := range tables {
				o.recordTable(sum, TableResult{Schema: t.Schema, Table: t.Name, Status: metrics.TableFailed,
					Err: &TableError{Kind: ErrEngineExecution, Schema: t.Schema, Table: t.Name, Err: err}})
			}
			continue
		}

		for _, t := range tables {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.recordTable(sum, o.unionTable(ctx, conn, t, sources, opts))
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) unionTable(ctx context.Context, conn extract.Conn, t catalog.TableDef, sources []extract.SourceFile, opts synth.Options) TableResult {
	res := TableResult{Schema: t.Schema, Table: t.Name}
	log := o.logger.With("schema", t.Schema, "table", t.Name)

	stmt, err := synth.Synthesize(t, sources, opts)
	if stmt != nil {
		res.Branches = len(stmt.Branches)
		res.Omitted = len(stmt.Omitted)
		for _, f := range stmt.Omitted {
			log.Info("table is not present in file; omitting it from the union", "file", f)
		}
	}
	switch {
	case errors.Is(err, synth.ErrNoCandidates):
		log.Warn("no attached file contains the table; not creating it")
		res.Status = metrics.TableSkipped
		return res
	case err != nil:
		res.Status = metrics.TableFailed
		res.Err = &TableError{Kind: ErrQuerySynthesis, Schema: t.Schema, Table: t.Name, Err: err}
		return res
	}

	for _, dv := range stmt.Divergences {
		log.Warn("reading divergent column by name",
			"file", dv.File, "column", dv.Column,
			"canonical", dv.Canonical.String(), "actual", dv.Actual.String())
	}

	query := stmt.SQL()
	log.Debug("resulting query", "sql", query)
	log.Info("performing union", "branches", res.Branches)

	start := time.Now()
	err = conn.Exec(ctx, query)
	res.Duration = time.Since(start)
	o.rc.Metrics.StatementLatency.Observe(res.Duration.Seconds())
	if err != nil {
		res.Status = metrics.TableFailed
		res.Err = &TableError{Kind: ErrEngineExecution, Schema: t.Schema, Table: t.Name, Err: err}
		return res
	}

	rows, err := conn.CountRows(ctx, stmt.Target)
	if err != nil {
		log.Warn("could not count rows of created table", "error", err)
	}
	res.Rows = rows
	res.Status = metrics.TableCreated
	if rows == 0 && err == nil {
		res.Status = metrics.TableEmpty
	}
	o.rc.Metrics.RowsWritten.Add(float64(rows))
	return res
}

func (o *Orchestrator) recordTable(sum *Summary, res TableResult) {
	if res.Err != nil {
		o.logger.Error("skipping table", "schema", res.Schema, "table", res.Table, "error", res.Err)
		sum.Errors = append(sum.Errors, res.Err)
	}
	o.rc.Metrics.Tables.WithLabelValues(res.Status).Inc()
	sum.Tables = append(sum.Tables, res)
}

// finalize swaps the temporary output into place in preserve mode. The session
// must already be closed so the engine holds no lock on either file.
func (o *Orchestrator) finalize(closeErr error) error {
	if closeErr != nil {
		o.logger.Warn("closing the union session failed", "error", closeErr)
	}
	if !o.work.Preserving() {
		return nil
	}

	o.logger.Info("wrote to a temporary file to also assimilate the previous output; replacing it",
		"temp", o.work.Target, "output", o.work.Output)
	if err := removeIfExists(o.work.Output); err != nil {
		return &OutputAccessError{Path: o.work.Output, Op: "remove previous output", Err: err}
	}
	if err := os.Rename(o.work.Target, o.work.Output); err != nil {
		return &OutputAccessError{Path: o.work.Output, Op: "rename temporary output", Err: err}
	}
	return nil
}

// discardTarget removes a partially written output after cancellation. The
// previous output of a preserve run is left untouched.
func (o *Orchestrator) discardTarget() {
	if err := removeIfExists(o.work.Target); err != nil {
		o.logger.Warn("could not remove partial output", "path", o.work.Target, "error", err)
	}
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
