package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/colorstring"

	"github.com/hupe1980/sitepipe/internal/fileset"
	"github.com/hupe1980/sitepipe/internal/logging"
)

// Rule binds a source glob to the operation that rebuilds it.
type Rule struct {
	// Name identifies the operation in status lines.
	Name string

	// Glob selects the files that trigger the rule, relative to the root.
	Glob string

	// Run rebuilds the outputs of the rule.
	Run func(ctx context.Context) error
}

// Options configures the watch behaviour.
type Options struct {
	// Root is the project directory relative globs are resolved against.
	Root string

	Rules []Rule

	// Debounce is the quiet period before a rule runs.
	Debounce time.Duration

	// NoColor disables coloured status lines.
	NoColor bool

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing status messages.
	Out io.Writer
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Root:     ".",
		Debounce: 100 * time.Millisecond,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// Watcher runs rules on file changes until closed.
type Watcher struct {
	opts    Options
	root    string
	fsw     *fsnotify.Watcher
	color   *colorstring.Colorize
	running []sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// New creates a watcher over the base directories of every rule glob.
// Bases that do not exist yet are skipped.
func New(opts Options) (*Watcher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if opts.Root == "" {
		opts.Root = "."
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", opts.Root, err)
	}

	for _, r := range opts.Rules {
		if r.Run == nil {
			return nil, fmt.Errorf("watch rule %q has no operation", r.Name)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		opts: opts,
		root: root,
		fsw:  fsw,
		color: &colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: opts.NoColor,
			Reset:   true,
		},
		running: make([]sync.Mutex, len(opts.Rules)),
	}

	for _, dir := range w.bases() {
		if err := addRecursive(fsw, dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				opts.Logger.Debug("skipping missing watch directory", slog.String("dir", dir))
				continue
			}

			_ = fsw.Close()

			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	return w, nil
}

// bases returns the distinct static directories of the rule globs.
func (w *Watcher) bases() []string {
	seen := map[string]bool{}

	var dirs []string

	for _, r := range w.opts.Rules {
		base, _ := fileset.Split(r.Glob)

		dir := filepath.FromSlash(base)
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(w.root, dir)
		}

		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	return dirs
}

// Run dispatches events to rules and blocks until ctx is cancelled or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	debouncers := make([]*Debouncer, len(w.opts.Rules))

	for i := range w.opts.Rules {
		i := i
		debouncers[i] = NewDebouncer(w.opts.Debounce, func(path string) {
			w.run(ctx, i, path)
		})
	}

	defer func() {
		for _, d := range debouncers {
			d.Stop()
		}
	}()

	names := make([]string, 0, len(w.opts.Rules))
	for _, r := range w.opts.Rules {
		names = append(names, r.Name)
	}

	fmt.Fprintf(w.opts.Out, "watching %s (debounce=%s, rules=%s)\n",
		w.root, w.opts.Debounce, strings.Join(names, ","))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event) {
				continue
			}

			// If a new directory was created, watch it too.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = addRecursive(w.fsw, event.Name)
				}
			}

			for i, r := range w.opts.Rules {
				if fileset.Match(w.root, r.Glob, event.Name) {
					debouncers[i].Trigger(event.Name)
				}
			}

		case watchErr, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			w.opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// run executes rule i and prints the status line. Runs of the same rule
// never overlap.
func (w *Watcher) run(ctx context.Context, i int, trigger string) {
	if ctx.Err() != nil {
		return
	}

	w.running[i].Lock()
	defer w.running[i].Unlock()

	r := w.opts.Rules[i]
	now := time.Now().Format("15:04:05")

	if rel, err := filepath.Rel(w.root, trigger); err == nil {
		trigger = filepath.ToSlash(rel)
	}

	if err := r.Run(logging.With(ctx, slog.String("trigger", trigger))); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}

		fmt.Fprintf(w.opts.Out, "%s %s %s (%s): %v\n", now, w.color.Color("[red]ERROR"), r.Name, trigger, err)
		w.opts.Logger.Error("rebuild failed",
			slog.String("task", r.Name), slog.String("trigger", trigger), slog.String("error", err.Error()))

		return
	}

	fmt.Fprintf(w.opts.Out, "%s %s %s (%s)\n", now, w.color.Color("[green]OK"), r.Name, trigger)
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fsw.Close()
	})

	return w.closeErr
}

// Run creates a watcher from opts and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	w, err := New(opts)
	if err != nil {
		return err
	}
	defer w.Close()

	return w.Run(ctx)
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories (e.g., .git).
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return watcher.Add(path)
		}

		return nil
	})
}

// isRelevant filters out editor noise and attribute-only events.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	// Only care about write, create, remove, rename.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	// Ignore editor temporary files and hidden files.
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
