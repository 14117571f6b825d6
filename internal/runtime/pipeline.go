// Package runtime provides the job execution engine.
// It runs the stages of a job in order: resolve, load, filter, project, write.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/factory"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/modules/filter"
	"github.com/rowsift/runtime/internal/modules/input"
	"github.com/rowsift/runtime/internal/modules/output"
	"github.com/rowsift/runtime/internal/persistence"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// Error codes for job execution errors
const (
	ErrCodeInvalidJob    = "INVALID_JOB"
	ErrCodeResolveFailed = "RESOLVE_FAILED"
	ErrCodeLoadFailed    = "LOAD_FAILED"
	ErrCodeFilterFailed  = "FILTER_FAILED"
	ErrCodeProjectFailed = "PROJECT_FAILED"
	ErrCodeOutputFailed  = "OUTPUT_FAILED"
)

// Stage names used in logs and execution errors.
const (
	StageConfigure = "configure"
	StageResolve   = "resolve"
	StageLoad      = "load"
	StageFilter    = "filter"
	StageProject   = "project"
	StageWrite     = "write"
)

// ErrNilJob is returned when the job is nil.
var ErrNilJob = errors.New("job is nil")

// Options configures an Executor.
type Options struct {
	// DryRun runs every stage except the sinks.
	DryRun bool

	// SkipUnchanged returns StatusUnchanged without loading when the source
	// and outputs match the last successful run recorded in State.
	SkipUnchanged bool

	// State records successful runs. Nil disables run state.
	State *persistence.StateStore

	// Resolver maps the configured source path to a file.
	Resolver input.Resolver

	// Inspect, when set, receives the projected table before it is written.
	Inspect func(table *record.Table)
}

// Executor runs jobs. It only talks to modules through their interfaces
// and builds them through the factory.
type Executor struct {
	opts Options
}

// NewExecutor creates an executor with default options.
func NewExecutor(dryRun bool) *Executor {
	return &Executor{opts: Options{DryRun: dryRun}}
}

// NewExecutorWithOptions creates an executor with the given options.
func NewExecutorWithOptions(opts Options) *Executor {
	return &Executor{opts: opts}
}

// run carries the state of one execution.
type run struct {
	job       *sift.Job
	jobID     string
	result    *sift.ExecutionResult
	execCtx   logger.ExecutionContext
	startedAt time.Time
	digest    string
	jobDigest string
	sinks     []output.Module
}

// Execute runs job and returns its result.
//
// A non-nil error is returned only for fatal failures; result.Status is then
// StatusError and result.Error describes the failure. An empty sheet or an
// empty match set completes with StatusEmpty and a nil error.
//
// The input module is closed as soon as loading finishes, on every path.
func (e *Executor) Execute(ctx context.Context, job *sift.Job) (*sift.ExecutionResult, error) {
	startedAt := time.Now()
	runID := uuid.NewString()
	if job == nil {
		logger.Error("job execution failed: nil job", slog.String("run_id", runID))
		return &sift.ExecutionResult{
			RunID:       runID,
			Status:      sift.StatusError,
			StartedAt:   startedAt,
			CompletedAt: time.Now(),
			Error:       buildExecutionError(ErrCodeInvalidJob, StageConfigure, ErrNilJob),
		}, ErrNilJob
	}

	r := &run{
		job:       job,
		jobID:     JobID(job),
		startedAt: startedAt,
		result: &sift.ExecutionResult{
			RunID:     runID,
			JobName:   job.Name,
			Status:    sift.StatusError,
			DryRun:    e.opts.DryRun,
			StartedAt: startedAt,
		},
		execCtx: logger.ExecutionContext{RunID: runID, JobName: job.Name, DryRun: e.opts.DryRun},
	}
	logger.LogExecutionStart(r.execCtx)

	err := e.execute(ctx, r)
	e.finish(r, err)
	if err != nil {
		return r.result, err
	}
	return r.result, nil
}

func (e *Executor) execute(ctx context.Context, r *run) error {
	filters, err := e.configure(r)
	if err != nil {
		return err
	}

	path, err := e.resolve(r)
	if err != nil {
		return err
	}

	unchanged, err := e.checkUnchanged(r, path)
	if err != nil {
		return err
	}
	if unchanged {
		r.result.Status = sift.StatusUnchanged
		return nil
	}

	table, err := e.load(ctx, r, path)
	if err != nil {
		return err
	}
	if table == nil {
		r.result.Status = sift.StatusEmpty
		return nil
	}

	matched, err := e.filter(ctx, r, filters, table)
	if err != nil {
		return err
	}

	projected, err := e.project(ctx, r, matched)
	if err != nil {
		return err
	}
	if e.opts.Inspect != nil {
		e.opts.Inspect(projected)
	}

	if projected.Len() == 0 {
		r.result.Status = sift.StatusEmpty
		for _, s := range r.sinks {
			addDiagnostic(r.result, errhandling.Diagnostic{
				Kind:    errhandling.KindNothingToWrite,
				Path:    s.Target(),
				Message: "no records matched; nothing written",
			})
		}
		logger.WithExecution(r.execCtx).Warn("no records matched; skipping sinks",
			slog.Int("rows_loaded", r.result.RowsLoaded))
		return nil
	}

	if err := e.write(ctx, r, projected); err != nil {
		return err
	}
	r.result.Status = sift.StatusSuccess
	e.saveState(r)
	return nil
}

// configure builds the filter and sink modules before any file is read, so
// configuration errors surface without touching the source.
func (e *Executor) configure(r *run) ([]filter.Module, error) {
	if r.job.Source.Path == "" {
		err := errhandling.NewInvalidConfig("source path is required", nil)
		return nil, e.fail(r, ErrCodeInvalidJob, StageConfigure, err)
	}
	filters, err := factory.CreateFilterModules(r.job)
	if err != nil {
		return nil, e.fail(r, ErrCodeInvalidJob, StageConfigure, err)
	}
	sinks, err := factory.CreateOutputModules(r.job.Outputs)
	if err != nil {
		return nil, e.fail(r, ErrCodeInvalidJob, StageConfigure, err)
	}
	r.sinks = sinks
	return filters, nil
}

func (e *Executor) resolve(r *run) (string, error) {
	stageCtx := r.stage(StageResolve)
	logger.LogStageStart(stageCtx)
	start := time.Now()

	path, err := e.opts.Resolver.Resolve(r.job.Source)
	if err != nil {
		logger.LogStageEnd(stageCtx, 0, time.Since(start), stageError(err))
		return "", e.fail(r, ErrCodeResolveFailed, StageResolve, err)
	}
	r.result.SourcePath = path
	logger.LogStageEnd(stageCtx, 1, time.Since(start), nil)
	return path, nil
}

// checkUnchanged hashes the source when run state is enabled and reports
// whether the last successful run already covered it.
func (e *Executor) checkUnchanged(r *run, path string) (bool, error) {
	if e.opts.State == nil || e.opts.DryRun {
		return false, nil
	}
	digest, err := persistence.FileDigest(path)
	if err != nil {
		return false, e.fail(r, ErrCodeResolveFailed, StageResolve,
			errhandling.NewSourceUnreadable(path, "cannot hash source", err))
	}
	r.digest = digest
	r.jobDigest, err = JobDigest(r.job)
	if err != nil {
		logger.WithExecution(r.execCtx).Warn("cannot digest job settings; run state disabled", slog.String("error", err.Error()))
		r.digest = ""
		return false, nil
	}
	if !e.opts.SkipUnchanged {
		return false, nil
	}

	prev, err := e.opts.State.Load(r.jobID)
	if err != nil {
		logger.WithExecution(r.execCtx).Warn("ignoring unreadable run state", slog.String("error", err.Error()))
		return false, nil
	}
	if prev.Matches(path, digest, r.jobDigest, targets(r.sinks)) && prev.OutputsExist() {
		logger.WithExecution(r.execCtx).Info("source unchanged since last run; skipping",
			slog.String("source", path),
			slog.Time("last_run_at", prev.LastRunAt),
		)
		return true, nil
	}
	return false, nil
}

// load reads the source. It returns a nil table, and no error, for an empty sheet.
func (e *Executor) load(ctx context.Context, r *run, path string) (*record.Table, error) {
	stageCtx := r.stage(StageLoad)
	logger.LogStageStart(stageCtx)
	start := time.Now()

	module, err := factory.CreateInputModule(path, r.job.Source)
	if err != nil {
		logger.LogStageEnd(stageCtx, 0, time.Since(start), stageError(err))
		return nil, e.fail(r, ErrCodeLoadFailed, StageLoad, err)
	}
	table, err := module.Load(ctx)
	closeModule(stageCtx, module)

	if errors.Is(err, errhandling.ErrEmptySheet) {
		if d, ok := errhandling.AsDiagnostic(err); ok {
			addDiagnostic(r.result, d)
		}
		logger.WithExecution(stageCtx).Warn("source has a header but no data rows", slog.String("source", path))
		logger.LogStageEnd(stageCtx, 0, time.Since(start), nil)
		return nil, nil
	}
	if err != nil {
		logger.LogStageEnd(stageCtx, 0, time.Since(start), stageError(err))
		return nil, e.fail(r, ErrCodeLoadFailed, StageLoad, err)
	}

	r.result.RowsLoaded = table.Len()
	logger.LogStageEnd(stageCtx, table.Len(), time.Since(start), nil)
	return table, nil
}

func (e *Executor) filter(ctx context.Context, r *run, modules []filter.Module, table *record.Table) (*record.Table, error) {
	stageCtx := r.stage(StageFilter)
	logger.LogStageStart(stageCtx)
	start := time.Now()

	current := table
	for i, m := range modules {
		next, err := m.Process(ctx, current)
		if err != nil {
			logger.LogStageEnd(stageCtx, current.Len(), time.Since(start), stageError(err))
			ferr := e.fail(r, ErrCodeFilterFailed, StageFilter, err)
			r.result.Error.Details = map[string]interface{}{"filterIndex": i}
			return nil, ferr
		}
		collectDiagnostics(r.result, m)

		switch fm := m.(type) {
		case *filter.MatchModule:
			r.result.AppliedFilters = fm.Applied().Columns()
			r.result.DroppedFilterColumns = fm.Dropped()
		case *filter.ExpressionModule:
			if n := fm.Skipped(); n > 0 {
				logger.WithExecution(stageCtx).Warn("rows skipped after expression errors", slog.Int("skipped", n))
			}
		}
		current = next
	}

	r.result.RowsMatched = current.Len()
	logger.LogStageEnd(stageCtx, current.Len(), time.Since(start), nil)
	return current, nil
}

func (e *Executor) project(ctx context.Context, r *run, table *record.Table) (*record.Table, error) {
	stageCtx := r.stage(StageProject)
	logger.LogStageStart(stageCtx)
	start := time.Now()

	projector := factory.CreateProjectModule(r.job)
	projected, err := projector.Process(ctx, table)
	collectDiagnostics(r.result, projector)
	r.result.DroppedOutputColumns = projector.Projection().Dropped
	if err != nil {
		logger.LogStageEnd(stageCtx, table.Len(), time.Since(start), stageError(err))
		return nil, e.fail(r, ErrCodeProjectFailed, StageProject, err)
	}

	r.result.OutputColumns = projector.Projection().Columns
	logger.LogStageEnd(stageCtx, projected.Len(), time.Since(start), nil)
	return projected, nil
}

// write runs every sink in order and stops at the first failure.
func (e *Executor) write(ctx context.Context, r *run, table *record.Table) error {
	stageCtx := r.stage(StageWrite)
	if e.opts.DryRun {
		logger.WithExecution(stageCtx).Info("dry-run mode: skipping sinks",
			slog.Int("records_would_write", table.Len()),
			slog.Int("sinks", len(r.sinks)),
		)
		return nil
	}

	logger.LogStageStart(stageCtx)
	start := time.Now()
	for i, s := range r.sinks {
		artifact, err := s.Write(ctx, table)
		if err != nil {
			if d, ok := errhandling.AsDiagnostic(err); ok {
				addDiagnostic(r.result, d)
				continue
			}
			logger.LogStageEnd(stageCtx, r.result.RowsWritten(), time.Since(start), stageError(err))
			ferr := e.fail(r, ErrCodeOutputFailed, StageWrite, err)
			r.result.Error.Details = map[string]interface{}{"outputIndex": i, "path": s.Target()}
			return ferr
		}
		r.result.Artifacts = append(r.result.Artifacts, artifact)
		logger.WithExecution(stageCtx).Debug("artifact written",
			slog.String("format", artifact.Format),
			slog.String("path", artifact.Path),
			slog.Int("records", artifact.Records),
			slog.Int64("bytes", artifact.Bytes),
		)
	}
	logger.LogStageEnd(stageCtx, r.result.RowsWritten(), time.Since(start), nil)
	return nil
}

// saveState records a successful write. Failures are logged, not returned.
func (e *Executor) saveState(r *run) {
	if e.opts.State == nil || e.opts.DryRun || r.digest == "" {
		return
	}
	state := &persistence.State{
		SourcePath:     r.result.SourcePath,
		SourceDigest:   r.digest,
		JobDigest:      r.jobDigest,
		Outputs:        targets(r.sinks),
		RecordsWritten: r.result.RowsWritten(),
		LastRunAt:      r.startedAt,
	}
	if err := e.opts.State.Save(r.jobID, state); err != nil {
		logger.WithExecution(r.execCtx).Warn("failed to save run state", slog.String("error", err.Error()))
	}
}

// fail records err on the result and returns it wrapped with the stage.
func (e *Executor) fail(r *run, code, stage string, err error) error {
	r.result.Status = sift.StatusError
	r.result.Error = buildExecutionError(code, stage, err)
	return fmt.Errorf("%s stage: %w", stage, err)
}

// finish stamps completion and emits the summary and end-of-run log lines.
func (e *Executor) finish(r *run, err error) {
	r.result.CompletedAt = time.Now()
	if err == nil && r.result.Status == sift.StatusError {
		r.result.Status = sift.StatusSuccess
	}

	logger.LogSummary(r.execCtx, logger.Summary{
		Status:         r.result.Status,
		RowsLoaded:     r.result.RowsLoaded,
		RowsMatched:    r.result.RowsMatched,
		RowsWritten:    r.result.RowsWritten(),
		FiltersApplied: r.result.AppliedFilters,
		DroppedFilters: r.result.DroppedFilterColumns,
		DroppedColumns: r.result.DroppedOutputColumns,
		OutputColumns:  r.result.OutputColumns,
		Outputs:        targets(r.sinks),
		TotalDuration:  r.result.Duration(),
	})
	logger.LogExecutionEnd(r.execCtx, r.result.Status, r.result.Duration())
}

func (r *run) stage(name string) logger.ExecutionContext {
	ctx := r.execCtx
	ctx.Stage = name
	return ctx
}

// JobID returns the identifier used for run state: the job ID, else its name.
func JobID(job *sift.Job) string {
	switch {
	case job.ID != "":
		return job.ID
	case job.Name != "":
		return job.Name
	default:
		return "default"
	}
}

// JobDigest fingerprints the settings of job that shape its output: source
// options, filters, where, onExpressionError, columns and sinks. Identity
// fields (ID, Name, Description) are left out.
func JobDigest(job *sift.Job) (string, error) {
	settings := *job
	settings.ID, settings.Name, settings.Description = "", "", ""
	return persistence.ValueDigest(settings)
}

func buildExecutionError(code, stage string, err error) *sift.ExecutionError {
	return &sift.ExecutionError{
		Code:    code,
		Kind:    string(errhandling.KindOf(err)),
		Message: err.Error(),
		Stage:   stage,
	}
}

func stageError(err error) *logger.StageError {
	return &logger.StageError{Kind: string(errhandling.KindOf(err)), Message: err.Error()}
}

func closeModule(ctx logger.ExecutionContext, m input.Module) {
	if err := m.Close(); err != nil {
		logger.WithExecution(ctx).Warn("failed to close input module", slog.String("error", err.Error()))
	}
}

func collectDiagnostics(result *sift.ExecutionResult, m any) {
	rep, ok := m.(filter.Reporter)
	if !ok {
		return
	}
	for _, d := range rep.Diagnostics() {
		addDiagnostic(result, d)
	}
}

func addDiagnostic(result *sift.ExecutionResult, d errhandling.Diagnostic) {
	result.Diagnostics = append(result.Diagnostics, sift.Diagnostic{
		Kind:    string(d.Kind),
		Column:  d.Column,
		Path:    d.Path,
		Message: d.Message,
	})
}

func targets(sinks []output.Module) []string {
	out := make([]string, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, s.Target())
	}
	return out
}
