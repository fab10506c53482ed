// Package sass compiles Sass and SCSS stylesheets through the Dart Sass
// embedded protocol.
package sass

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"
)

// Syntax identifies the input dialect.
type Syntax string

// Supported syntaxes.
const (
	SyntaxSCSS Syntax = "scss"
	SyntaxSass Syntax = "sass"
	SyntaxCSS  Syntax = "css"
)

// ErrUnavailable is returned when no Dart Sass executable can be found.
var ErrUnavailable = errors.New("dart sass executable not found")

// SyntaxFor derives the syntax from a file name.
func SyntaxFor(name string) Syntax {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".sass":
		return SyntaxSass
	case ".css":
		return SyntaxCSS
	default:
		return SyntaxSCSS
	}
}

// Request is one stylesheet to compile.
type Request struct {
	// Source is the stylesheet text.
	Source string

	// Path is the source file, used for relative imports and messages.
	Path string

	Syntax Syntax

	// IncludePaths are additional load paths.
	IncludePaths []string
}

// Compiler turns a stylesheet into compressed CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) (string, error)
}

// DartSass is a Compiler backed by a long-running Dart Sass process.
// The process is started on first use and shared across compilations.
type DartSass struct {
	binary string

	once    sync.Once
	t       *godartsass.Transpiler
	initErr error
}

// NewDartSass creates a compiler using binary. An empty binary is looked up
// as "sass" on PATH when first needed.
func NewDartSass(binary string) *DartSass {
	return &DartSass{binary: binary}
}

func (d *DartSass) start() (*godartsass.Transpiler, error) {
	d.once.Do(func() {
		bin := d.binary
		if bin == "" {
			p, err := exec.LookPath("sass")
			if err != nil {
				d.initErr = fmt.Errorf("%w: install dart-sass or set styles.sass-binary", ErrUnavailable)
				return
			}

			bin = p
		}

		d.t, d.initErr = godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: bin,
		})
		if d.initErr != nil {
			d.initErr = fmt.Errorf("starting dart sass: %w", d.initErr)
		}
	})

	return d.t, d.initErr
}

// Compile implements Compiler.
func (d *DartSass) Compile(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t, err := d.start()
	if err != nil {
		return "", err
	}

	args := godartsass.Args{
		Source:       req.Source,
		OutputStyle:  godartsass.OutputStyleCompressed,
		SourceSyntax: sourceSyntax(req.Syntax),
		IncludePaths: includePaths(req),
	}

	if req.Path != "" {
		if abs, absErr := filepath.Abs(req.Path); absErr == nil {
			args.URL = "file://" + filepath.ToSlash(abs)
		}
	}

	res, err := t.Execute(args)
	if err != nil {
		return "", fmt.Errorf("compiling %s: %w", req.Path, err)
	}

	return res.CSS, nil
}

// Close stops the Dart Sass process.
func (d *DartSass) Close() error {
	if d.t == nil {
		return nil
	}

	return d.t.Close()
}

func sourceSyntax(s Syntax) godartsass.SourceSyntax {
	switch s {
	case SyntaxSass:
		return godartsass.SourceSyntaxSASS
	case SyntaxCSS:
		return godartsass.SourceSyntaxCSS
	default:
		return godartsass.SourceSyntaxSCSS
	}
}

// includePaths puts the source directory first so sibling partials resolve.
func includePaths(req Request) []string {
	paths := make([]string, 0, len(req.IncludePaths)+1)
	if req.Path != "" {
		paths = append(paths, filepath.Dir(req.Path))
	}

	return append(paths, req.IncludePaths...)
}

// IsPartial reports whether name is a Sass partial (leading underscore),
// which is only ever imported and never emitted on its own.
func IsPartial(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "_")
}
