// Package scaffold writes a starter project: a config file, a page with a
// shared partial, a stylesheet, the favicon toggler script and its two
// icons.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/sitepipe/internal/output"
)

//go:embed all:template
var templateFS embed.FS

const templateRoot = "template"

// ErrExists is returned when files would be overwritten without force.
var ErrExists = errors.New("files already exist")

// Files returns the slash-separated paths of the starter project.
func Files() []string {
	var files []string

	_ = fs.WalkDir(templateFS, templateRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		files = append(files, strings.TrimPrefix(p, templateRoot+"/"))

		return nil
	})

	sort.Strings(files)

	return files
}

// Write copies the starter project into dir and returns the written paths.
// Existing files are only replaced when force is set.
func Write(dir string, force bool, w output.Writer) ([]string, error) {
	files := Files()

	if !force {
		var conflicts []string

		for _, f := range files {
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(f))); err == nil {
				conflicts = append(conflicts, f)
			}
		}

		if len(conflicts) > 0 {
			return nil, fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, strings.Join(conflicts, ", "))
		}
	}

	written := make([]string, 0, len(files))

	for _, f := range files {
		data, err := templateFS.ReadFile(path.Join(templateRoot, f))
		if err != nil {
			return written, fmt.Errorf("reading template %s: %w", f, err)
		}

		dst := filepath.Join(dir, filepath.FromSlash(f))
		if err := w.Write(dst, data); err != nil {
			return written, err
		}

		written = append(written, dst)
	}

	return written, nil
}
