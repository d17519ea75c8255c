package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"custetl/internal/config"
	"custetl/internal/extract"
	"custetl/internal/logger"
	"custetl/internal/storage"
)

// Runner executes pipeline stages sequentially.
type Runner struct {
	cfg    *config.Config
	reg    Registry
	log    *logger.Logger
	source extract.PurchaseSource
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSource replaces the HTTP purchase-history client.
func WithSource(source extract.PurchaseSource) Option {
	return func(r *Runner) { r.source = source }
}

// WithRegistry replaces the stage implementations.
func WithRegistry(reg Registry) Option {
	return func(r *Runner) { r.reg = reg }
}

// NewRunner constructs a runner for cfg.
func NewRunner(cfg *config.Config, log *logger.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logger.Discard()
	}

	r := &Runner{cfg: cfg, reg: BuildRegistry(), log: log}
	for _, opt := range opts {
		opt(r)
	}

	if r.source == nil {
		r.source = extract.NewPurchaseClient(cfg.Extract.PurchaseAPIURL, &cfg.Extract.Retry, log)
	}

	return r
}

// Run executes every stage.
func (r *Runner) Run(ctx context.Context) (*RunState, error) {
	return r.RunStages(ctx, AllStages...)
}

// RunStages executes stages in the given order and stops at the first
// failure. When a storage driver is configured the run is recorded in the
// pipeline_runs history whatever its outcome.
func (r *Runner) RunStages(ctx context.Context, stages ...Stage) (*RunState, error) {
	state := &RunState{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := r.log.With("run_id", state.RunID)

	var store *storage.Store

	if d := r.cfg.Storage.Driver; d != "" && d != config.DriverNone {
		s, err := storage.Open(ctx, r.cfg.Storage.Driver, r.cfg.Storage.DSN)
		if err != nil {
			return state, err
		}
		defer s.Close()

		store = s
	}

	exec := &ExecutionContext{
		Cfg:    r.cfg,
		Store:  store,
		Source: r.source,
		Log:    log,
		State:  state,
	}

	log.Info("run started", "stages", len(stages), "config", r.cfg.String())

	var runErr error

	for _, stage := range stages {
		state.LastStage = stage

		if err := ctx.Err(); err != nil {
			runErr = stageError(stage, err)
			break
		}

		fn, ok := r.reg[stage]
		if !ok {
			runErr = stageError(stage, ErrUnknownStage)
			break
		}

		started := time.Now()
		stageLog := log.With("stage", string(stage))
		exec.Log = stageLog

		if err := fn(ctx, exec); err != nil {
			stageLog.Error("stage failed", "error", err, "elapsed", time.Since(started))
			runErr = stageError(stage, err)

			break
		}

		stageLog.Info("stage complete", "elapsed", time.Since(started))
	}

	r.record(store, state, runErr, log)

	if runErr != nil {
		return state, runErr
	}

	log.Info("run complete", "customers", state.Customers, "segments", state.Segments)

	return state, nil
}

func (r *Runner) record(store *storage.Store, state *RunState, runErr error, log *logger.Logger) {
	if store == nil {
		return
	}

	run := storage.Run{
		ID:         state.RunID,
		StartedAt:  state.StartedAt,
		FinishedAt: time.Now().UTC(),
		Status:     storage.StatusSucceeded,
		LastStage:  string(state.LastStage),
		Customers:  state.Customers,
		Segments:   state.Segments,
	}

	if runErr != nil {
		run.Status = storage.StatusFailed
		run.LastError = runErr.Error()
	}

	// A cancelled run context must not prevent recording the failure.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.RecordRun(ctx, run); err != nil {
		log.Warn("failed to record run", "error", err)
	}
}
