// Package task composes named build operations into pipelines.
//
// A [Task] is a name plus a function. [Series] runs tasks one after
// another and stops at the first failure; [Parallel] runs independent
// tasks concurrently, waits for all of them, and reports every failure.
// A [Registry] exposes tasks by name for the command line.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sitepipe/internal/logging"
)

// Func is the body of a task.
type Func func(ctx context.Context) error

// Task is a named, independently invocable unit of work.
type Task struct {
	Name string
	fn   Func
}

// New creates a task. Runs are logged with their duration and failures
// are wrapped in an *Error carrying the task name.
func New(name string, fn Func) Task {
	return Task{Name: name, fn: fn}
}

// Run executes the task.
func (t Task) Run(ctx context.Context) error {
	if t.fn == nil {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	logger := logging.FromContext(ctx).With(slog.String("task", t.Name))
	logger.Debug("starting")

	start := time.Now()
	err := t.fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		logger.Debug("failed", slog.Duration("elapsed", elapsed), slog.String("error", err.Error()))

		var te *Error
		if errors.As(err, &te) || errors.Is(err, context.Canceled) {
			return err
		}

		return &Error{Task: t.Name, Err: err}
	}

	logger.Info("finished", slog.Duration("elapsed", elapsed.Round(time.Millisecond)))

	return nil
}

// Error reports the failure of a named task.
type Error struct {
	Task string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Series returns a task that runs tasks in order and stops at the first
// failure.
func Series(name string, tasks ...Task) Task {
	return Task{Name: name, fn: func(ctx context.Context) error {
		for _, t := range tasks {
			if err := t.Run(ctx); err != nil {
				return err
			}
		}

		return nil
	}}
}

// Parallel returns a task that runs independent tasks concurrently. A
// failing member does not cancel its siblings; the task completes only
// after every member has returned and joins every failure.
func Parallel(name string, tasks ...Task) Task {
	return Task{Name: name, fn: func(ctx context.Context) error {
		var (
			g    errgroup.Group
			mu   sync.Mutex
			errs []error
		)

		for _, t := range tasks {
			t := t
			g.Go(func() error {
				if err := t.Run(ctx); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}

				return nil
			})
		}

		_ = g.Wait()

		return errors.Join(errs...)
	}}
}

// Supervise returns a task for long-running members such as a watcher and
// a server. When one member returns, the others are cancelled. A member
// stopped by that cancellation is not reported as a failure.
func Supervise(name string, tasks ...Task) Task {
	return Task{Name: name, fn: func(ctx context.Context) error {
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var (
			g    errgroup.Group
			mu   sync.Mutex
			errs []error
		)

		for _, t := range tasks {
			t := t
			g.Go(func() error {
				defer cancel()

				err := t.Run(sctx)
				if err != nil && !(errors.Is(err, context.Canceled) && ctx.Err() == nil) {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}

				return err
			})
		}

		_ = g.Wait()

		return errors.Join(errs...)
	}}
}

// Registry holds tasks by name.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: map[string]Task{}}
}

// Register adds t under its name. Registering a name twice is an error.
func (r *Registry) Register(t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Name == "" {
		return fmt.Errorf("task name must not be empty")
	}

	if _, exists := r.tasks[t.Name]; exists {
		return fmt.Errorf("task %q already registered", t.Name)
	}

	r.tasks[t.Name] = t

	return nil
}

// Lookup returns the task registered under name.
func (r *Registry) Lookup(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[name]

	return t, ok
}

// Names returns the registered task names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for n := range r.tasks {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
