package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, rels ...string) {
	t.Helper()

	for _, rel := range rels {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	}
}

func rels(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Rel)
	}

	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		glob, base, pattern string
	}{
		{"src/scss/*.{scss,sass}", "src/scss", "*.{scss,sass}"},
		{"src/pages/**/*.html", "src/pages", "**/*.html"},
		{"src/images/*", "src/images", "*"},
		{"*.js", ".", "*.js"},
	}

	for _, tt := range tests {
		t.Run(tt.glob, func(t *testing.T) {
			base, pattern := Split(tt.glob)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.pattern, pattern)
		})
	}
}

func TestExpand_Braces(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/scss/main.scss", "src/scss/legacy.sass", "src/scss/notes.txt")

	files, err := Expand(root, "src/scss/*.{scss,sass}")
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy.sass", "main.scss"}, rels(files))
	assert.Equal(t, filepath.Join(root, "src", "scss", "main.scss"), files[1].Path)
}

func TestExpand_DoubleStarKeepsLayout(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/pages/index.html", "src/pages/blog/post.html", "src/pages/blog/draft.md")

	files, err := Expand(root, "src/pages/**/*.html")
	require.NoError(t, err)
	assert.Equal(t, []string{"blog/post.html", "index.html"}, rels(files))
}

func TestExpand_FilesOnly(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/images/logo.png", "src/images/icons/a.svg")

	files, err := Expand(root, "src/images/*")
	require.NoError(t, err)
	assert.Equal(t, []string{"logo.png"}, rels(files))
}

func TestExpand_MissingBase(t *testing.T) {
	files, err := Expand(t.TempDir(), "src/font/*.woff")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestExpand_InvalidGlob(t *testing.T) {
	_, err := Expand(t.TempDir(), "src/[a-")
	assert.ErrorContains(t, err, "invalid glob")
}

func TestMatch(t *testing.T) {
	root := "/project"

	assert.True(t, Match(root, "src/**/*.{html,njk}", filepath.Join(root, "src", "partials", "nav.njk")))
	assert.True(t, Match(root, "src/js/*.js", filepath.Join(root, "src", "js", "main.js")))
	assert.False(t, Match(root, "src/js/*.js", filepath.Join(root, "src", "js", "vendor", "x.js")))
	assert.False(t, Match(root, "src/scss/*.scss", filepath.Join(root, "dist", "css", "main.css")))
}

func TestDest(t *testing.T) {
	f := File{Rel: "blog/main.scss"}
	got := Dest("/out/css", f, WithSuffix(".min", ".css"))
	assert.Equal(t, filepath.Join("/out/css", "blog", "main.min.css"), got)

	assert.Equal(t, filepath.Join("/out", "blog", "main.scss"), Dest("/out", f, nil))
}

func TestWithSuffix_KeepsExtension(t *testing.T) {
	rename := WithSuffix(".min", "")
	assert.Equal(t, "main.min.js", rename("main.js"))
	assert.Equal(t, "site.min.css", rename("site.css"))
}
