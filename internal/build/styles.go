package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/hupe1980/sitepipe/internal/fileset"
	"github.com/hupe1980/sitepipe/internal/logging"
	"github.com/hupe1980/sitepipe/internal/sass"
)

// errNoCompiler is returned by css when the Builder has no Sass compiler.
var errNoCompiler = errors.New("no sass compiler configured")

func (b *Builder) css(ctx context.Context) (int, error) {
	files, err := b.expand(b.cfg.Paths.Styles.Dev)
	if err != nil {
		return 0, err
	}

	engines, err := parseTargets(b.cfg.Styles.Targets)
	if err != nil {
		return 0, err
	}

	includes := make([]string, 0, len(b.cfg.Styles.IncludePaths))
	for _, p := range b.cfg.Styles.IncludePaths {
		includes = append(includes, b.cfg.Resolve(p))
	}

	dist := b.cfg.Resolve(b.cfg.Paths.Styles.Dist)
	written := 0

	for _, f := range files {
		if sass.IsPartial(f.Rel) {
			continue
		}

		if b.styles == nil {
			return 0, errNoCompiler
		}

		src, err := os.ReadFile(f.Path)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", f.Rel, err)
		}

		compiled, err := b.styles.Compile(ctx, sass.Request{
			Source:       string(src),
			Path:         f.Path,
			Syntax:       sass.SyntaxFor(f.Rel),
			IncludePaths: includes,
		})
		if err != nil {
			return 0, fmt.Errorf("%s: %w", f.Rel, err)
		}

		out, err := prefixCSS(compiled, f.Rel, engines)
		if err != nil {
			return 0, err
		}

		if err := b.writer.Write(fileset.Dest(dist, f, fileset.WithSuffix(".min", ".css")), out); err != nil {
			return 0, err
		}

		written++
	}

	if written > 0 {
		main := b.cfg.Resolve(b.cfg.Paths.Styles.Main)
		if _, err := os.Stat(main); err != nil {
			logging.FromContext(ctx).Warn("main stylesheet not produced",
				slog.String("main", b.cfg.Paths.Styles.Main))
		}
	}

	return written, nil
}

// prefixCSS adds vendor prefixes for engines and minifies, dropping every
// comment including legal ones.
func prefixCSS(source, name string, engines []api.Engine) ([]byte, error) {
	res := api.Transform(source, api.TransformOptions{
		Loader:           api.LoaderCSS,
		Sourcefile:       name,
		Engines:          engines,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		LegalComments:    api.LegalCommentsNone,
		LogLevel:         api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return nil, messagesError(name, res.Errors)
	}

	return res.Code, nil
}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// parseTargets turns targets like "chrome87" into esbuild engines.
func parseTargets(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))

	for _, t := range targets {
		i := strings.IndexFunc(t, unicode.IsDigit)
		if i <= 0 {
			return nil, fmt.Errorf("invalid browser target %q", t)
		}

		name, ok := engineNames[strings.ToLower(t[:i])]
		if !ok {
			return nil, fmt.Errorf("unsupported browser %q in target %q", t[:i], t)
		}

		engines = append(engines, api.Engine{Name: name, Version: t[i:]})
	}

	return engines, nil
}

// messagesError joins esbuild diagnostics into one error.
func messagesError(name string, msgs []api.Message) error {
	lines := api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: api.ErrorMessage})

	return fmt.Errorf("%s: %s", name, strings.TrimSpace(strings.Join(lines, "")))
}
