// Package build implements the named asset operations and composes them
// into the development and production pipelines.
//
// Every operation reads its sources from the path table of the loaded
// configuration and writes below its destination directory. Heavy lifting
// is delegated: Dart Sass compiles stylesheets, esbuild prefixes CSS and
// bundles scripts, tdewolff/minify shrinks markup and SVG, and
// go-quantize reduces PNG palettes.
package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tdewolff/minify/v2"

	"github.com/hupe1980/sitepipe/internal/cache"
	"github.com/hupe1980/sitepipe/internal/config"
	"github.com/hupe1980/sitepipe/internal/fileset"
	"github.com/hupe1980/sitepipe/internal/include"
	"github.com/hupe1980/sitepipe/internal/metrics"
	"github.com/hupe1980/sitepipe/internal/output"
	"github.com/hupe1980/sitepipe/internal/sass"
	"github.com/hupe1980/sitepipe/internal/task"
	"github.com/hupe1980/sitepipe/internal/watch"
)

// Operation and pipeline names.
const (
	TaskClean      = "clean"
	TaskClearCache = "clearCache"
	TaskFonts      = "fonts"
	TaskImages     = "images"
	TaskCSS        = "css"
	TaskJS         = "js"
	TaskMinJS      = "minJs"
	TaskHTML       = "html"
	TaskMinHTML    = "minHtml"
	TaskBuild      = "build"
	TaskDefault    = "default"
	TaskBuildProd  = "buildProd"
)

// Notifier is told when an operation has written new output.
type Notifier interface {
	Reload(reason string)
}

// Options configures a Builder.
type Options struct {
	Config *config.Config

	// Styles compiles Sass sources. Required by the css operation only.
	Styles sass.Compiler

	// Cache stores optimized images. Defaults to cache.Nop.
	Cache cache.Store

	// Recorder observes operation durations and output counts.
	Recorder metrics.Recorder

	// Notifier, if set, is told to reload after each successful operation.
	Notifier Notifier

	// Writer persists outputs. Defaults to an output.FileWriter.
	Writer *output.FileWriter
}

// Builder runs the asset operations for one project.
type Builder struct {
	cfg      *config.Config
	styles   sass.Compiler
	cache    cache.Store
	rec      metrics.Recorder
	writer   *output.FileWriter
	pages    *include.Processor
	minifier *minify.M

	mu       sync.RWMutex
	notifier Notifier
}

// New creates a Builder.
func New(opts Options) (*Builder, error) {
	if opts.Config == nil {
		return nil, errors.New("build: config is required")
	}

	b := &Builder{
		cfg:      opts.Config,
		styles:   opts.Styles,
		cache:    opts.Cache,
		rec:      opts.Recorder,
		writer:   opts.Writer,
		pages:    include.New(opts.Config.HTML.IncludePrefix),
		minifier: newMinifier(),
		notifier: opts.Notifier,
	}

	if b.cache == nil {
		b.cache = cache.Nop{}
	}

	if b.rec == nil {
		b.rec = metrics.NoopRecorder{}
	}

	if b.writer == nil {
		b.writer = output.NewFileWriter()
	}

	return b, nil
}

// SetNotifier replaces the reload notifier. A nil notifier disables
// notifications.
func (b *Builder) SetNotifier(n Notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.notifier = n
}

func (b *Builder) notify(reason string) {
	b.mu.RLock()
	n := b.notifier
	b.mu.RUnlock()

	if n != nil {
		n.Reload(reason)
	}
}

// opFunc is the body of an operation; it returns the number of files written.
type opFunc func(ctx context.Context) (int, error)

// op wraps fn as a task that records metrics and notifies on success.
func (b *Builder) op(name string, fn opFunc) task.Task {
	return task.New(name, func(ctx context.Context) error {
		start := time.Now()
		n, err := fn(ctx)
		b.rec.ObserveTask(name, time.Since(start), err)

		if err != nil {
			return err
		}

		b.rec.ObserveFiles(name, n)
		b.notify(name)

		return nil
	})
}

// Clean removes the destination tree.
func (b *Builder) Clean() task.Task { return b.op(TaskClean, b.clean) }

// ClearCache empties the build cache and reports the number of entries
// removed when the store can count them.
func (b *Builder) ClearCache() task.Task {
	return b.op(TaskClearCache, func(ctx context.Context) (int, error) {
		var n int

		if c, ok := b.cache.(interface {
			Len(ctx context.Context) (int, error)
		}); ok {
			count, err := c.Len(ctx)
			if err != nil {
				return 0, fmt.Errorf("counting cache entries: %w", err)
			}

			n = count
		}

		if err := b.cache.Clear(ctx); err != nil {
			return 0, fmt.Errorf("clearing cache: %w", err)
		}

		return n, nil
	})
}

// Fonts copies font files verbatim.
func (b *Builder) Fonts() task.Task { return b.op(TaskFonts, b.fonts) }

// Images optimizes and copies images.
func (b *Builder) Images() task.Task { return b.op(TaskImages, b.images) }

// CSS compiles, prefixes and minifies stylesheets.
func (b *Builder) CSS() task.Task { return b.op(TaskCSS, b.css) }

// JS bundles the script entry point without minification.
func (b *Builder) JS() task.Task {
	return b.op(TaskJS, func(ctx context.Context) (int, error) { return b.scripts(ctx, false) })
}

// MinJS bundles, transpiles to ES2015 and minifies the script entry point.
func (b *Builder) MinJS() task.Task {
	return b.op(TaskMinJS, func(ctx context.Context) (int, error) { return b.scripts(ctx, true) })
}

// HTML expands include directives in pages.
func (b *Builder) HTML() task.Task {
	return b.op(TaskHTML, func(ctx context.Context) (int, error) { return b.html(ctx, false) })
}

// MinHTML expands include directives and minifies the result.
func (b *Builder) MinHTML() task.Task {
	return b.op(TaskMinHTML, func(ctx context.Context) (int, error) { return b.html(ctx, true) })
}

// Build is the development pipeline.
func (b *Builder) Build() task.Task { return b.pipeline(TaskBuild, false) }

// BuildProd is the production pipeline.
func (b *Builder) BuildProd() task.Task { return b.pipeline(TaskBuildProd, true) }

func (b *Builder) pipeline(name string, prod bool) task.Task {
	scripts, pages := b.JS(), b.HTML()
	if prod {
		scripts, pages = b.MinJS(), b.MinHTML()
	}

	return task.Series(name,
		b.Clean(),
		b.ClearCache(),
		task.Parallel(name+":assets", b.Fonts(), b.Images(), b.CSS(), scripts, pages),
	)
}

// Registry returns every operation and pipeline by name.
func (b *Builder) Registry() (*task.Registry, error) {
	return register(
		b.Clean(), b.ClearCache(), b.Fonts(), b.Images(), b.CSS(),
		b.JS(), b.MinJS(), b.HTML(), b.MinHTML(),
		b.Build(), b.pipeline(TaskDefault, false), b.BuildProd(),
	)
}

func register(tasks ...task.Task) (*task.Registry, error) {
	r := task.NewRegistry()

	for _, t := range tasks {
		if err := r.Register(t); err != nil {
			return nil, fmt.Errorf("registering operations: %w", err)
		}
	}

	return r, nil
}

// WatchRules maps source globs to the operation that rebuilds them. Under
// prod the minifying variants are used.
func (b *Builder) WatchRules(prod bool) []watch.Rule {
	p := b.cfg.Paths

	scripts, pages := b.JS(), b.HTML()
	if prod {
		scripts, pages = b.MinJS(), b.MinHTML()
	}

	rule := func(glob string, t task.Task) watch.Rule {
		return watch.Rule{Name: t.Name, Glob: glob, Run: t.Run}
	}

	return []watch.Rule{
		rule(p.Styles.Dev, b.CSS()),
		rule(p.HTML.Watch, pages),
		rule(p.Images.Dev, b.Images()),
		rule(p.Scripts.Dev, scripts),
		rule(p.Fonts.Dev, b.Fonts()),
	}
}

// expand resolves glob against the project root.
func (b *Builder) expand(glob string) ([]fileset.File, error) {
	root := b.cfg.Root
	if filepath.IsAbs(glob) {
		root = ""
	}

	return fileset.Expand(root, glob)
}
