package engine

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/sandboxws/extract-union/pkg/config"
	"github.com/sandboxws/extract-union/pkg/inventory"
	"github.com/sandboxws/extract-union/pkg/metrics"
)

// RunContext carries everything one run shares across its steps.
type RunContext struct {
	// RunID correlates log lines and metrics of one run.
	RunID string

	// Logger scoped to this run.
	Logger *slog.Logger

	// Metrics for this run.
	Metrics *metrics.Metrics

	Config *config.Config

	// Conflicts collects every divergent column definition seen while scanning.
	Conflicts []inventory.Conflict
}

// NewRunContext creates a run context with a fresh run id and metrics registry.
// A nil logger discards output.
func NewRunContext(cfg *config.Config, logger *slog.Logger) *RunContext {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	id := uuid.NewString()
	return &RunContext{
		RunID:   id,
		Logger:  logger.With("run_id", id),
		Metrics: metrics.New(),
		Config:  cfg,
	}
}
