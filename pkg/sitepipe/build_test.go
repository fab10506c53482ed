package sitepipe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sitepipe/internal/config"
)

func newSite(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	for rel, content := range map[string]string{
		"src/js/main.js":       "const greeting = 'hello';\nconsole.log(greeting);\n",
		"src/font/a.ttf":       "ttf",
		"src/pages/index.html": "<html>\n  <head><link rel=\"icon\" href=\"x.svg\"></head>\n  <body></body>\n</html>\n",
	} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	return root
}

func TestBuild_EmptyRoot(t *testing.T) {
	_, err := Build(context.Background(), "")
	assert.Error(t, err)
}

func TestBuild_MissingRoot(t *testing.T) {
	_, err := Build(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestBuild_Defaults(t *testing.T) {
	root := newSite(t)

	res, err := Build(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "dist"), res.Dist)
	assert.Equal(t, []string{"font/a.ttf", "index.html", "js/main.min.js"}, res.Files)
}

func TestBuild_ProductionSmaller(t *testing.T) {
	root := newSite(t)

	dev, err := Build(context.Background(), root)
	require.NoError(t, err)

	devJS, err := os.ReadFile(filepath.Join(dev.Dist, "js", "main.min.js"))
	require.NoError(t, err)

	prod, err := Build(context.Background(), root, WithProduction())
	require.NoError(t, err)

	prodJS, err := os.ReadFile(filepath.Join(prod.Dist, "js", "main.min.js"))
	require.NoError(t, err)

	assert.Less(t, len(prodJS), len(devJS))
}

func TestBuild_WithDistAndScheme(t *testing.T) {
	root := newSite(t)

	res, err := Build(context.Background(), root, WithDist("public"), WithColorScheme(config.SchemeLight))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "public"), res.Dist)

	page, err := os.ReadFile(filepath.Join(root, "public", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "/images/favicon-black.svg")
}

func TestBuild_SingleTask(t *testing.T) {
	root := newSite(t)

	res, err := Build(context.Background(), root, WithTask("fonts"), WithCachePath(filepath.Join(t.TempDir(), "c.db")))
	require.NoError(t, err)
	assert.Equal(t, []string{"font/a.ttf"}, res.Files)
}

func TestBuild_UnknownTask(t *testing.T) {
	_, err := Build(context.Background(), newSite(t), WithTask("deploy"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestBuild_InvalidScheme(t *testing.T) {
	_, err := Build(context.Background(), newSite(t), WithColorScheme("sepia"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid color scheme")
}

func TestBuild_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, newSite(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRebase(t *testing.T) {
	p := config.DefaultPaths()
	rebase(&p, "public")

	assert.Equal(t, "public", p.Dist)
	assert.Equal(t, "public/js/", p.Scripts.Dist)
	assert.Equal(t, "public/css/", p.Styles.Dist)
	assert.Equal(t, "public/", p.HTML.Dist)
}
