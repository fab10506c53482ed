package build

import (
	"context"
	"fmt"

	"github.com/hupe1980/sitepipe/internal/fileset"
)

func (b *Builder) fonts(ctx context.Context) (int, error) {
	files, err := b.expand(b.cfg.Paths.Fonts.Dev)
	if err != nil {
		return 0, err
	}

	dist := b.cfg.Resolve(b.cfg.Paths.Fonts.Dist)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if err := b.writer.Copy(fileset.Dest(dist, f, nil), f.Path); err != nil {
			return 0, fmt.Errorf("%s: %w", f.Rel, err)
		}
	}

	return len(files), nil
}
