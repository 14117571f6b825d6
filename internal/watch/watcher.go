// Package watch re-runs a job when its source file changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/modules/input"
)

// DefaultDebounce is how long the watcher waits after the last matching
// event before running.
const DefaultDebounce = 500 * time.Millisecond

// ErrNilRunFunc is returned when no run callback is given.
var ErrNilRunFunc = errors.New("run callback is nil")

// RunFunc executes one job run. Errors are logged and watching continues.
type RunFunc func(ctx context.Context) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithInitialRun runs the job once before waiting for changes.
func WithInitialRun() Option {
	return func(w *Watcher) {
		w.initialRun = true
	}
}

// Watcher watches the directory of a source path and invokes a RunFunc when
// a matching file is created, written or renamed.
type Watcher struct {
	dir        string
	exact      string
	pattern    string
	debounce   time.Duration
	initialRun bool
	run        RunFunc
	fsw        *fsnotify.Watcher

	mu   sync.Mutex
	runs int
}

// New creates a Watcher for sourcePath. A path containing {date} matches
// every dated variant of itself.
func New(sourcePath string, run RunFunc, opts ...Option) (*Watcher, error) {
	if run == nil {
		return nil, ErrNilRunFunc
	}
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("resolving source path: %w", err)
	}

	w := &Watcher{
		dir:      filepath.Dir(abs),
		debounce: DefaultDebounce,
		run:      run,
	}
	if input.IsDated(abs) {
		w.pattern = filepath.Base(input.Pattern(abs))
	} else {
		w.exact = filepath.Base(abs)
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.fsw = fsw
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Runs returns how many times the run callback has been invoked.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Matches reports whether name refers to the watched source.
func (w *Watcher) Matches(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil || filepath.Dir(abs) != w.dir {
		return false
	}
	base := filepath.Base(abs)
	if w.pattern == "" {
		return base == w.exact
	}
	ok, err := filepath.Match(w.pattern, base)
	return err == nil && ok
}

// Run blocks until ctx is cancelled. Runs happen one at a time on the
// calling goroutine; events arriving during a run start a new debounce.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.fsw.Close(); err != nil {
			logger.Warn("error closing file watcher", "error", err.Error())
		}
	}()

	logger.Info("watching source", "dir", w.dir, "file", w.target(), "debounce", w.debounce)

	if w.initialRun {
		w.invoke(ctx, "initial")
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	var trigger string

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped", "dir", w.dir)
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("file watcher event channel closed")
			}
			if !relevant(event) || !w.Matches(event.Name) {
				continue
			}
			logger.Debug("source event", "path", event.Name, "op", event.Op.String())
			trigger = event.Name
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("file watcher error channel closed")
			}
			logger.Warn("file watcher error", "error", err.Error())

		case <-timer.C:
			w.invoke(ctx, trigger)
		}
	}
}

func (w *Watcher) invoke(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	w.mu.Lock()
	w.runs++
	n := w.runs
	w.mu.Unlock()

	logger.Info("source changed, running job", "trigger", trigger, "run", n)
	if err := w.run(ctx); err != nil {
		logger.Error("watched run failed", "trigger", trigger, "error", err.Error())
	}
}

func (w *Watcher) target() string {
	if w.pattern != "" {
		return w.pattern
	}
	return w.exact
}

func relevant(event fsnotify.Event) bool {
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}
