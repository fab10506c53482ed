package build

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/hupe1980/sitepipe/internal/fileset"
)

// scripts bundles the entry point into <entry>.min.js. With minify the
// bundle is transpiled to ES2015 and minified.
func (b *Builder) scripts(ctx context.Context, minify bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	root, err := filepath.Abs(b.cfg.Root)
	if err != nil {
		return 0, fmt.Errorf("resolving project root: %w", err)
	}

	entry, err := filepath.Abs(b.cfg.Resolve(b.cfg.Paths.Scripts.Main))
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", b.cfg.Paths.Scripts.Main, err)
	}

	name := fileset.WithSuffix(".min", ".js")(path.Base(filepath.ToSlash(entry)))
	outfile, err := filepath.Abs(filepath.Join(b.cfg.Resolve(b.cfg.Paths.Scripts.Dist), name))
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", b.cfg.Paths.Scripts.Dist, err)
	}

	opts := api.BuildOptions{
		EntryPoints:   []string{entry},
		Outfile:       outfile,
		AbsWorkingDir: root,
		Bundle:        true,
		Write:         false,
		Format:        api.FormatIIFE,
		Platform:      api.PlatformBrowser,
		Target:        api.ESNext,
		LogLevel:      api.LogLevelSilent,
	}

	if minify {
		opts.Target = api.ES2015
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		opts.LegalComments = api.LegalCommentsNone
	}

	res := api.Build(opts)
	if len(res.Errors) > 0 {
		return 0, messagesError(b.cfg.Paths.Scripts.Main, res.Errors)
	}

	for _, f := range res.OutputFiles {
		if err := b.writer.Write(f.Path, f.Contents); err != nil {
			return 0, err
		}
	}

	return len(res.OutputFiles), nil
}
