// Package fileset expands source globs of the path table into files.
//
// Globs use doublestar syntax: "**" crosses directories and "{a,b}"
// selects alternatives. Each match keeps its path relative to the glob
// base (the longest wildcard-free directory prefix), so destination
// layouts mirror the source tree below the base.
package fileset

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// File is a single glob match.
type File struct {
	// Path is the absolute or root-joined path on disk.
	Path string

	// Rel is the slash-separated path relative to the glob base.
	Rel string
}

// Split separates a glob into its static base directory and the pattern
// relative to it. The base is "." when the glob starts with a wildcard.
func Split(glob string) (base, pattern string) {
	return doublestar.SplitPattern(filepath.ToSlash(glob))
}

// Expand resolves glob against root and returns the matching regular files
// in lexical order. A missing base directory yields no files.
func Expand(root, glob string) ([]File, error) {
	if !doublestar.ValidatePattern(filepath.ToSlash(glob)) {
		return nil, fmt.Errorf("invalid glob %q", glob)
	}

	base, pattern := Split(glob)
	baseDir := filepath.Join(root, filepath.FromSlash(base))

	info, err := os.Stat(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("stat %s: %w", baseDir, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("glob base %s is not a directory", baseDir)
	}

	matches, err := doublestar.Glob(os.DirFS(baseDir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding %q: %w", glob, err)
	}

	sort.Strings(matches)

	files := make([]File, 0, len(matches))
	for _, m := range matches {
		files = append(files, File{
			Path: filepath.Join(baseDir, filepath.FromSlash(m)),
			Rel:  m,
		})
	}

	return files, nil
}

// Match reports whether the file at abs matches glob. Relative globs are
// matched against the path of abs below root.
func Match(root, glob, abs string) bool {
	if filepath.IsAbs(glob) {
		ok, err := doublestar.PathMatch(filepath.FromSlash(glob), abs)
		return err == nil && ok
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}

	ok, err := doublestar.PathMatch(filepath.FromSlash(glob), rel)

	return err == nil && ok
}

// Dest maps a match onto destDir, optionally renaming it.
func Dest(destDir string, f File, rename func(string) string) string {
	rel := f.Rel
	if rename != nil {
		dir, name := path.Split(rel)
		rel = dir + rename(name)
	}

	return filepath.Join(destDir, filepath.FromSlash(rel))
}

// WithSuffix inserts suffix before the extension, optionally replacing the
// extension: WithSuffix(".min", ".css")("main.scss") == "main.min.css".
func WithSuffix(suffix, ext string) func(string) string {
	return func(name string) string {
		old := path.Ext(name)
		stem := name[:len(name)-len(old)]

		if ext == "" {
			return stem + suffix + old
		}

		return stem + suffix + ext
	}
}
