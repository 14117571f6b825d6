// Package main provides the CLI entry point for the rowsift runtime.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rowsift/runtime/internal/cli"
	"github.com/rowsift/runtime/internal/config"
	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/factory"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/modules/input"
	"github.com/rowsift/runtime/internal/persistence"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/internal/runtime"
	"github.com/rowsift/runtime/internal/watch"
	"github.com/rowsift/runtime/pkg/sift"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitValidationError = 1
	ExitParseError      = 2
	ExitRuntimeError    = 3
)

var (
	// Build information (set via ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// exitError carries the process exit code of a failed command. The message
// has already been printed when printed is set.
type exitError struct {
	code    int
	err     error
	printed bool
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err, printed: true}
}

// app holds the flag values of one CLI invocation.
type app struct {
	verbose   bool
	quiet     bool
	logFormat string
	logFile   string
	envFile   string

	dryRun        bool
	skipUnchanged bool
	resetState    bool
	stateDir      string

	adhoc adhocFlags
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI with args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(&app{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer logger.CloseLogFile()

	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.printed {
			fmt.Fprintf(stderr, "✗ %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitRuntimeError
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "rowsift",
		Short: "rowsift - filter and project tabular extracts",
		Long: `rowsift loads a spreadsheet, CSV or JSON extract, keeps the rows that
match column filters, projects an ordered subset of columns and writes the
result to xlsx, JSON, CSV or SQLite.

Examples:
  # Validate a job file
  rowsift validate job.yaml

  # Run a job
  rowsift run job.yaml

  # Ad-hoc filter with a preview only
  rowsift filter extract.xlsx --where Dept=IT,Eng --columns Number,Dept --dry-run

  # Show the columns of a source
  rowsift columns extract.xlsx`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Suppress non-error output")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "json", "Log format: json or human")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also write JSON logs to this file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Load environment variables from this file (default .env when present)")

	root.AddCommand(
		a.newRunCmd(),
		a.newFilterCmd(),
		a.newValidateCmd(),
		a.newColumnsCmd(),
		a.newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

// setup configures logging and the environment before any command runs.
func (a *app) setup() error {
	level := slog.LevelInfo
	switch {
	case a.verbose:
		level = slog.LevelDebug
	case a.quiet:
		level = slog.LevelError
	}
	format := logger.ParseFormat(a.logFormat)
	logger.SetLevelAndFormat(level, format)

	if a.logFile != "" {
		if err := logger.SetLogFile(a.logFile, level, format); err != nil {
			return &exitError{code: ExitRuntimeError, err: err}
		}
	}
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return &exitError{code: ExitRuntimeError, err: err}
	}
	return nil
}

func (a *app) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <job-file>",
		Short: "Validate a job file",
		Long: `Validate a job file against the job schema.

Supports both JSON and YAML formats. The format is auto-detected
based on file extension (.json, .yaml, .yml) or content.

Exit codes:
  0 - Job file is valid
  1 - Validation errors (schema violations)
  2 - Parse errors (invalid JSON/YAML syntax)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, result, err := a.loadJob(cmd, args[0])
			if err != nil {
				return err
			}
			if !a.quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Job file is valid (format: %s)\n", result.Format)
				if a.verbose {
					cli.PrintJobSummary(cmd.OutOrStdout(), job)
				}
			}
			return nil
		},
	}
}

func (a *app) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <job-file>",
		Short: "Run a job from a job file",
		Long: `Run the job defined in a YAML or JSON job file.

The job file is validated against the schema first. If validation fails,
the job is not executed.

Exit codes:
  0 - Job succeeded, had nothing to write, or was skipped as unchanged
  1 - Validation errors
  2 - Parse errors
  3 - Runtime errors`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, _, err := a.loadJob(cmd, args[0])
			if err != nil {
				return err
			}
			if err := a.resetJobState(job); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runJob(ctx, cmd, job, a.executorOptions())
		},
	}
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Run every stage except writing outputs")
	cmd.Flags().BoolVar(&a.skipUnchanged, "skip-unchanged", false, "Skip the run when the source and outputs are unchanged since the last success")
	cmd.Flags().BoolVar(&a.resetState, "reset-state", false, "Forget the job's last successful run before running")
	cmd.Flags().StringVar(&a.stateDir, "state-dir", persistence.DefaultStatePath, "Directory for run state")
	return cmd
}

func (a *app) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <job-file>",
		Short: "Re-run a job whenever its source changes",
		Long: `Watch the directory of the job's source and re-run the job when the
source file (or, for {date} paths, any dated variant) is created or written.
Unchanged sources are skipped using the run state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, _, err := a.loadJob(cmd, args[0])
			if err != nil {
				return err
			}
			if err := a.resetJobState(job); err != nil {
				return err
			}
			a.skipUnchanged = true
			opts := a.executorOptions()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := watch.New(job.Source.Path, func(ctx context.Context) error {
				return a.runJob(ctx, cmd, job, opts)
			}, watch.WithInitialRun())
			if err != nil {
				return &exitError{code: ExitRuntimeError, err: err}
			}
			if err := w.Run(ctx); err != nil {
				return &exitError{code: ExitRuntimeError, err: err}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.resetState, "reset-state", false, "Forget the job's last successful run before the initial run")
	cmd.Flags().StringVar(&a.stateDir, "state-dir", persistence.DefaultStatePath, "Directory for run state")
	return cmd
}

func (a *app) newFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter <source>",
		Short: "Filter a source with flags instead of a job file",
		Long: `Build a job from flags and run it.

--where may be repeated; Col=a,b keeps rows whose Col is a or b.
Without any output flag the run is a dry run that prints a preview.

Examples:
  rowsift filter extract.xlsx --where Dept=IT,Eng --where Status=Active \
    --columns Number,Dept,Status --xlsx out.xlsx --json out.json
  rowsift filter 'dl/Snow_{date}.xlsx' --expr 'Priority <= 2' --columns Number`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.adhoc.job(args[0])
			if err != nil {
				return &exitError{code: ExitValidationError, err: err}
			}
			opts := a.executorOptions()
			opts.State = nil
			if len(job.Outputs) == 0 {
				opts.DryRun = true
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runJob(ctx, cmd, job, opts)
		},
	}
	a.adhoc.register(cmd)
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Run every stage except writing outputs")
	return cmd
}

func (a *app) newColumnsCmd() *cobra.Command {
	var src sift.SourceConfig
	cmd := &cobra.Command{
		Use:   "columns <source>",
		Short: "Print the columns and row count of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src.Path = args[0]
			table, err := loadSource(cmd.Context(), src)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
				return exitWith(ExitRuntimeError, err)
			}
			cli.PrintColumns(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().StringVar(&src.Sheet, "sheet", "", "Worksheet name (default first sheet)")
	cmd.Flags().StringVar(&src.Format, "format", "", "Source format: xlsx, csv, tsv or json (default from extension)")
	cmd.Flags().StringVar(&src.Delimiter, "delimiter", "", "CSV field separator")
	cmd.Flags().StringVar(&src.DateFormat, "date-format", "", "Go time layout for {date} (default 2006_01_02)")
	cmd.Flags().IntVar(&src.LookbackDays, "lookback-days", 0, "Days to look back for {date} sources (default 7)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version, commit hash, and build date information.",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", buildDate)
		},
	}
}

// loadJob parses, validates and converts a job file, printing any errors.
func (a *app) loadJob(cmd *cobra.Command, path string) (*sift.Job, *config.Result, error) {
	job, result, err := config.Load(path)
	if err == nil {
		return job, result, nil
	}
	stderr := cmd.ErrOrStderr()
	switch {
	case errors.Is(err, config.ErrParseFailed):
		cli.PrintParseErrors(stderr, result.ParseErrors, a.verbose)
		return nil, result, exitWith(ExitParseError, err)
	case len(result.ValidationErrors) > 0:
		cli.PrintValidationErrors(stderr, result.ValidationErrors, a.verbose, a.quiet)
		return nil, result, exitWith(ExitValidationError, err)
	default:
		fmt.Fprintf(stderr, "✗ %v\n", err)
		return nil, result, exitWith(ExitValidationError, err)
	}
}

func (a *app) executorOptions() runtime.Options {
	opts := runtime.Options{
		DryRun:        a.dryRun,
		SkipUnchanged: a.skipUnchanged,
		State:         persistence.NewStateStore(a.stateDir),
	}
	if a.stateDir == "" {
		opts.State = nil
	}
	return opts
}

// resetJobState deletes the stored run state of job when --reset-state is
// set, so the next run writes its outputs even if nothing changed.
func (a *app) resetJobState(job *sift.Job) error {
	if !a.resetState || a.stateDir == "" {
		return nil
	}
	store := persistence.NewStateStore(a.stateDir)
	id := runtime.JobID(job)
	found, err := store.Exists(id)
	if err != nil {
		return &exitError{code: ExitRuntimeError, err: err}
	}
	if !found {
		logger.Debug("no run state to reset", slog.String("job_id", id))
		return nil
	}
	if err := store.Delete(id); err != nil {
		return &exitError{code: ExitRuntimeError, err: err}
	}
	logger.Info("run state reset", slog.String("job_id", id), slog.String("state_dir", a.stateDir))
	return nil
}

func (a *app) runJob(ctx context.Context, cmd *cobra.Command, job *sift.Job, opts runtime.Options) error {
	if opts.DryRun && !a.quiet {
		out := cmd.OutOrStdout()
		opts.Inspect = func(table *record.Table) {
			cli.PrintPreview(out, table, cli.DefaultPreviewRows)
		}
	}
	result, err := runtime.NewExecutorWithOptions(opts).Execute(ctx, job)

	w := cmd.OutOrStdout()
	if err != nil {
		w = cmd.ErrOrStderr()
	}
	cli.PrintExecutionResult(w, result, err, cli.OutputOptions{
		Verbose: a.verbose,
		Quiet:   a.quiet,
		DryRun:  opts.DryRun,
	})
	if err != nil {
		return exitWith(ExitRuntimeError, err)
	}
	return nil
}

// loadSource resolves and loads src for inspection. An empty sheet still
// returns its header.
func loadSource(ctx context.Context, src sift.SourceConfig) (*record.Table, error) {
	path, err := input.Resolver{}.Resolve(src)
	if err != nil {
		return nil, err
	}
	module, err := factory.CreateInputModule(path, src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = module.Close() }()

	table, err := module.Load(ctx)
	if err != nil && !(errors.Is(err, errhandling.ErrEmptySheet) && table != nil) {
		return nil, err
	}
	return table, nil
}
