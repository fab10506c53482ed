// Package sitepipe provides a public Go API for building static-site
// assets.
//
// This package exposes the sitepipe build pipelines as a library,
// allowing programmatic use without the CLI.
//
// Basic usage:
//
//	result, err := sitepipe.Build(ctx, "path/to/site")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Files)
//
// With options:
//
//	result, err := sitepipe.Build(ctx, "path/to/site",
//	    sitepipe.WithProduction(),
//	    sitepipe.WithColorScheme("dark"),
//	)
package sitepipe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hupe1980/sitepipe/internal/build"
	"github.com/hupe1980/sitepipe/internal/cache"
	"github.com/hupe1980/sitepipe/internal/config"
	"github.com/hupe1980/sitepipe/internal/logging"
	"github.com/hupe1980/sitepipe/internal/output"
	"github.com/hupe1980/sitepipe/internal/sass"
)

// Option configures a build.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	task        string
	production  bool
	dist        string
	sassBinary  string
	cachePath   string
	colorScheme string
	logger      *slog.Logger
}

// WithProduction runs the production pipeline (minified scripts and pages).
func WithProduction() Option {
	return func(o *options) { o.production = true }
}

// WithTask runs a single named operation ("css", "minJs", ...) instead of
// a pipeline.
func WithTask(name string) Option {
	return func(o *options) { o.task = name }
}

// WithDist overrides the output root. The per-category destinations keep
// their layout below it.
func WithDist(dir string) Option {
	return func(o *options) { o.dist = dir }
}

// WithSassBinary sets the Dart Sass executable.
func WithSassBinary(path string) Option {
	return func(o *options) { o.sassBinary = path }
}

// WithCachePath enables the image cache at path.
func WithCachePath(path string) Option {
	return func(o *options) { o.cachePath = path }
}

// WithColorScheme pre-renders page favicons for "light" or "dark".
func WithColorScheme(scheme string) Option {
	return func(o *options) { o.colorScheme = scheme }
}

// WithLogger sets the logger. Output is discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Result describes a finished build.
type Result struct {
	// Dist is the output root.
	Dist string

	// Files are the output files, slash-separated and relative to Dist.
	Files []string

	Duration time.Duration
}

// Build runs the default (or production) pipeline for the project at root
// using the conventional src/ and dist/ layout.
func Build(ctx context.Context, root string, opts ...Option) (*Result, error) {
	if root == "" {
		return nil, errors.New("project root must not be empty")
	}

	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	o := &options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	cfg := config.Default()
	cfg.Root = root
	cfg.Styles.SassBinary = o.sassBinary
	cfg.HTML.ColorScheme = o.colorScheme

	if o.dist != "" {
		rebase(&cfg.Paths, o.dist)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store cache.Store = cache.Nop{}

	if o.cachePath != "" {
		sqlite, err := cache.Open(o.cachePath)
		if err != nil {
			return nil, err
		}
		defer sqlite.Close()

		store = sqlite
	}

	compiler := sass.NewDartSass(cfg.Styles.SassBinary)
	defer compiler.Close()

	b, err := build.New(build.Options{
		Config: cfg,
		Styles: compiler,
		Cache:  store,
		Writer: output.NewFileWriter(output.WithLogger(o.logger)),
	})
	if err != nil {
		return nil, err
	}

	name := o.task
	if name == "" {
		name = build.TaskBuild
		if o.production {
			name = build.TaskBuildProd
		}
	}

	reg, err := b.Registry()
	if err != nil {
		return nil, err
	}

	t, ok := reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown task %q", name)
	}

	ctx = logging.NewContext(ctx, o.logger)
	start := time.Now()

	if err := t.Run(ctx); err != nil {
		return nil, err
	}

	dist := cfg.Resolve(cfg.Paths.Dist)

	files, err := listFiles(dist)
	if err != nil {
		return nil, err
	}

	return &Result{Dist: dist, Files: files, Duration: time.Since(start)}, nil
}

// rebase moves every destination from the default dist root to dir.
func rebase(p *config.Paths, dir string) {
	move := func(dst string) string {
		rel, err := filepath.Rel(p.Dist, dst)
		if err != nil {
			return dst
		}

		return filepath.ToSlash(filepath.Join(dir, rel)) + "/"
	}

	p.Scripts.Dist = move(p.Scripts.Dist)
	p.Styles.Dist = move(p.Styles.Dist)
	p.Fonts.Dist = move(p.Fonts.Dist)
	p.Images.Dist = move(p.Images.Dist)
	p.HTML.Dist = move(p.HTML.Dist)
	p.Dist = dir
}

func listFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return filepath.SkipAll
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		files = append(files, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	sort.Strings(files)

	return files, nil
}
