package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (b *Builder) clean(_ context.Context) (int, error) {
	dist, err := filepath.Abs(b.cfg.Resolve(b.cfg.Paths.Dist))
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", b.cfg.Paths.Dist, err)
	}

	root, err := filepath.Abs(b.cfg.Root)
	if err != nil {
		return 0, fmt.Errorf("resolving project root: %w", err)
	}

	src, err := filepath.Abs(b.cfg.Resolve(b.cfg.Paths.Src))
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", b.cfg.Paths.Src, err)
	}

	if dist == root || dist == filepath.Dir(dist) {
		return 0, fmt.Errorf("refusing to remove %s: it is the project root", dist)
	}

	if within(dist, src) {
		return 0, fmt.Errorf("refusing to remove %s: it contains the sources %s", dist, src)
	}

	if err := os.RemoveAll(dist); err != nil {
		return 0, fmt.Errorf("removing %s: %w", dist, err)
	}

	return 0, nil
}

// within reports whether p equals dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
