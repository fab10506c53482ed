package build

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/sitepipe/internal/config"
	"github.com/hupe1980/sitepipe/internal/favicon"
	"github.com/hupe1980/sitepipe/internal/fileset"
	"github.com/hupe1980/sitepipe/internal/logging"
)

// html renders every page, preserving its layout below the glob base.
func (b *Builder) html(ctx context.Context, minify bool) (int, error) {
	files, err := b.expand(b.cfg.Paths.HTML.Dev)
	if err != nil {
		return 0, err
	}

	dist := b.cfg.Resolve(b.cfg.Paths.HTML.Dist)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		out, err := b.renderPage(ctx, f.Path, minify)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", f.Rel, err)
		}

		if err := b.writer.Write(fileset.Dest(dist, f, nil), out); err != nil {
			return 0, err
		}
	}

	return len(files), nil
}

func (b *Builder) renderPage(ctx context.Context, path string, minify bool) ([]byte, error) {
	src, err := os.ReadFile(path) //nolint:gosec // paths come from the path table
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}

	out, err := b.pages.Process(path, src)
	if err != nil {
		return nil, err
	}

	if scheme := b.cfg.HTML.ColorScheme; scheme != config.SchemeNone {
		if out, err = favicon.Prerender(out, scheme == config.SchemeDark,
			favicon.WithLogger(logging.FromContext(ctx))); err != nil {
			return nil, err
		}
	}

	if minify {
		if out, err = b.minifier.Bytes(mediaHTML, out); err != nil {
			return nil, fmt.Errorf("minifying html: %w", err)
		}
	}

	return out, nil
}
