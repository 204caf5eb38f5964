// Command extract-union merges many extract files into one: every table is the
// UNION ALL of its copies across the inputs, aligned to a unified column list.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandboxws/extract-union/pkg/config"
	"github.com/sandboxws/extract-union/pkg/engine"
	"github.com/sandboxws/extract-union/pkg/logging"
	"github.com/sandboxws/extract-union/pkg/report"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitOK          = 0
	exitInternal    = 1
	exitUsage       = 2
	exitPartial     = 3
	exitOutput      = 4
	exitEngineStart = 5
	exitInterrupted = 130
)

const shutdownTimeout = 30 * time.Second

// exitError carries the process exit code out of RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type flags struct {
	configPath  string
	engine      string
	inputDir    string
	pattern     string
	output      string
	preserve    bool
	sourceCol   string
	memoryLimit string
	logToFile   bool
	logDir      string
	logFormat   string
	debug       bool
	metricsFile string
}

func newRootCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract-union [input files...]",
		Short: "Union every table of many extract files into a single extract",
		Long: `extract-union reads the catalog of every extract file in the input directory
(and any files given as arguments), builds one unified column list per table,
and writes an output extract where each table is the UNION ALL of all its
copies. Missing columns are filled with NULLs and, unless disabled, a column
records the file each row came from.

With --preserve-output-file the existing output is kept: it is read as one more
input and replaced once the new output is complete.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "YAML config file; flags override its values")
	fl.StringVar(&f.engine, "engine", config.EngineSQLite, "database engine: duckdb or sqlite")
	fl.StringVar(&f.inputDir, "input-dir", ".", "directory to read extract files from")
	fl.StringVar(&f.pattern, "pattern", "", `input file glob (default "*" plus the engine extension)`)
	fl.StringVarP(&f.output, "output-file", "o", "", `output file (default "union" plus the engine extension)`)
	fl.BoolVarP(&f.preserve, "preserve-output-file", "p", false, "append to the existing output instead of replacing it")
	fl.StringVarP(&f.sourceCol, "source-file-column-name", "c", "source_file", `provenance column name; "" disables it`)
	fl.StringVar(&f.memoryLimit, "memory-limit", "", `engine memory limit, e.g. "2GB"`)
	fl.BoolVar(&f.logToFile, "log-to-file", false, "also log to a rotating file in --log-dir")
	fl.StringVar(&f.logDir, "log-dir", "logs", "directory for log files and engine logs")
	fl.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fl.BoolVar(&f.debug, "debug", false, "log at DEBUG level, including every generated query")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	return cmd
}

// loadConfig starts from the config file, or defaults, and applies every flag
// set on the command line.
func loadConfig(cmd *cobra.Command, f *flags, args []string) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("engine") {
		cfg.Engine = f.engine
	}
	if changed("input-dir") {
		cfg.InputDir = f.inputDir
	}
	if changed("pattern") {
		cfg.Pattern = f.pattern
	}
	if changed("output-file") {
		cfg.OutputFile = f.output
	}
	if changed("preserve-output-file") {
		cfg.PreserveOutputFile = f.preserve
	}
	if changed("source-file-column-name") {
		cfg.SourceFileColumn = f.sourceCol
	}
	if changed("memory-limit") {
		cfg.MemoryLimit = f.memoryLimit
	}
	if changed("log-to-file") {
		cfg.Log.ToFile = f.logToFile
	}
	if changed("log-dir") {
		cfg.Log.Dir = f.logDir
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if changed("debug") {
		cfg.Log.Debug = f.debug
	}
	if changed("metrics-file") {
		cfg.Metrics.File = f.metricsFile
	}
	cfg.InputFiles = append(cfg.InputFiles, args...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, f *flags, args []string) error {
	cfg, err := loadConfig(cmd, f, args)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	logger, closer, err := logging.New(logging.Options{
		Debug:   cfg.Log.Debug,
		Format:  cfg.Log.Format,
		ToFile:  cfg.Log.ToFile,
		Dir:     cfg.Log.Dir,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	defer closer.Close()

	rc := engine.NewRunContext(cfg, logger)
	rc.Logger.Info("extract-union", "version", version)
	rc.Logger.Info("launched", "command", strings.Join(os.Args, " "))

	factory, ext, err := engineFactory(cfg.Engine)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	work, err := engine.LoadWorklist(cfg, ext, rc.Logger)
	if err != nil {
		return &exitError{code: exitCode(err, nil), err: err}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	o := engine.New(rc, work, factory)
	sum, runErr := engine.RunWithGracefulShutdown(ctx, o, shutdownTimeout)

	if sum != nil {
		if err := report.Write(ctx, cmd.OutOrStdout(), sum, report.Options{Verbose: cfg.Log.Debug}); err != nil {
			rc.Logger.Warn("could not print summary", "error", err)
		}
	}
	if cfg.Metrics.File != "" {
		if err := rc.Metrics.WriteTextfile(cfg.Metrics.File); err != nil {
			rc.Logger.Warn("could not write metrics file", "path", cfg.Metrics.File, "error", err)
		}
	}

	if code := exitCode(runErr, sum); code != exitOK {
		if runErr == nil {
			runErr = fmt.Errorf("completed with %d errors", len(sum.Errors))
		}
		return &exitError{code: code, err: runErr}
	}
	return nil
}

// exitCode maps a run result to the process exit code.
func exitCode(err error, sum *engine.Summary) int {
	switch {
	case err == nil && sum != nil && sum.HasErrors():
		return exitPartial
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled), errors.Is(err, engine.ErrShutdownTimeout):
		return exitInterrupted
	case errors.Is(err, engine.ErrOutputAccess):
		return exitOutput
	case errors.Is(err, engine.ErrEngineStart):
		return exitEngineStart
	default:
		return exitInternal
	}
}

func main() {
	err := newRootCmd(&flags{}).Execute()
	if err == nil {
		os.Exit(exitOK)
	}

	fmt.Fprintln(os.Stderr, "extract-union:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	// Errors cobra returns itself are flag and argument errors.
	os.Exit(exitUsage)
}
