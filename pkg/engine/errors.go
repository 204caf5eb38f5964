package engine

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	// ErrFileRead marks an input that could not be opened or read. The file is skipped.
	ErrFileRead = errors.New("file read failed")

	// ErrQuerySynthesis marks a table whose statement could not be built. The table is skipped.
	ErrQuerySynthesis = errors.New("query synthesis failed")

	// ErrEngineExecution marks a table whose statement failed in the engine. The table is skipped.
	ErrEngineExecution = errors.New("engine execution failed")

	// ErrOutputAccess aborts the run: the output cannot be created, attached or replaced.
	ErrOutputAccess = errors.New("output access failed")

	// ErrEngineStart aborts the run: the engine could not be started.
	ErrEngineStart = errors.New("engine start failed")
)

// FileReadError reports an unreadable input file.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

func (e *FileReadError) Is(target error) bool { return target == ErrFileRead }

// TableError reports a table that was skipped. Kind is ErrQuerySynthesis or
// ErrEngineExecution.
type TableError struct {
	Kind   error
	Schema string
	Table  string
	Err    error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%v for %s.%s: %v", e.Kind, e.Schema, e.Table, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

func (e *TableError) Is(target error) bool { return target == e.Kind }

// OutputAccessError reports a fatal problem with the output file.
type OutputAccessError struct {
	Path string
	Op   string
	Err  error
}

func (e *OutputAccessError) Error() string {
	return fmt.Sprintf("output %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *OutputAccessError) Unwrap() error { return e.Err }

func (e *OutputAccessError) Is(target error) bool { return target == ErrOutputAccess }

// EngineStartError reports an engine that could not be started or connected.
type EngineStartError struct {
	Engine string
	Err    error
}

func (e *EngineStartError) Error() string {
	return fmt.Sprintf("start %s engine: %v", e.Engine, e.Err)
}

func (e *EngineStartError) Unwrap() error { return e.Err }

func (e *EngineStartError) Is(target error) bool { return target == ErrEngineStart }
