package cli

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sitepipe/internal/build"
	"github.com/hupe1980/sitepipe/internal/config"
	"github.com/hupe1980/sitepipe/internal/logging"
	"github.com/hupe1980/sitepipe/internal/server"
	"github.com/hupe1980/sitepipe/internal/task"
	"github.com/hupe1980/sitepipe/internal/watch"
)

// tokenStream reads reload tokens from the live-reload endpoint.
type tokenStream struct {
	tokens chan string
}

func subscribe(t *testing.T, url string) *tokenStream {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	s := &tokenStream{tokens: make(chan string, 16)}

	go func() {
		defer close(s.tokens)

		r := bufio.NewReader(resp.Body)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}

			if strings.HasPrefix(line, "data: ") {
				s.tokens <- strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}()

	return s
}

func (s *tokenStream) next(t *testing.T) string {
	t.Helper()

	select {
	case tok, ok := <-s.tokens:
		require.True(t, ok, "live-reload stream closed")
		return tok
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a reload token")
		return ""
	}
}

func TestDevelop_ProdRebuildReloadsClients(t *testing.T) {
	root, _ := newSite(t, nil)

	cfg := config.Default()
	cfg.Root = root

	ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), logging.Discard()))
	defer cancel()

	b, err := build.New(build.Options{Config: cfg})
	require.NoError(t, err)
	require.NoError(t, b.BuildProd().Run(ctx))

	jsOut := filepath.Join(root, "dist", "js", "main.min.js")
	pageOut := filepath.Join(root, "dist", "index.html")

	srv := server.New(server.Options{
		Host:   "127.0.0.1",
		Root:   cfg.Resolve(cfg.Paths.Dist),
		Logger: logging.Discard(),
	})
	b.SetNotifier(srv)

	w, err := watch.New(watch.Options{
		Root:     root,
		Rules:    b.WatchRules(true),
		Debounce: 100 * time.Millisecond,
		NoColor:  true,
		Logger:   logging.Discard(),
		Out:      io.Discard,
	})
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		done <- task.Supervise("watcher",
			task.New("watch", w.Run),
			task.New("serve", srv.Run),
		).Run(ctx)
	}()

	require.Eventually(t, func() bool { return srv.Addr() != "127.0.0.1:0" }, 2*time.Second, 10*time.Millisecond)

	stream := subscribe(t, "http://"+srv.Addr()+server.LiveReloadPath)
	baseline := stream.next(t)

	// Script change: minJs rewrites the bundle, then a new token is sent.
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "js", "main.js"), []byte(
		"import { n } from './n.js';\n\nfunction announceRebuild(countOfThings) {\n  return countOfThings * 2;\n}\n\nconsole.log('rebuilt', announceRebuild(n));\n",
	), 0o644))

	require.Eventually(t, func() bool {
		js, err := os.ReadFile(jsOut)
		return err == nil && strings.Contains(string(js), "rebuilt")
	}, 5*time.Second, 20*time.Millisecond)

	afterJS := stream.next(t)
	assert.NotEqual(t, baseline, afterJS)

	js, err := os.ReadFile(jsOut)
	require.NoError(t, err)
	assert.NotContains(t, string(js), "countOfThings", "identifiers are minified")

	// Partial change: minHtml rewrites the page that includes it.
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "partials", "p.html"), []byte("<p>changed</p>"), 0o644))

	require.Eventually(t, func() bool {
		page, err := os.ReadFile(pageOut)
		return err == nil && strings.Contains(string(page), "<p>changed</p>")
	}, 5*time.Second, 20*time.Millisecond)

	afterHTML := stream.next(t)
	assert.NotEqual(t, afterJS, afterHTML)

	page, err := os.ReadFile(pageOut)
	require.NoError(t, err)
	assert.NotContains(t, string(page), "\n  <body>", "markup is minified")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watcher and server did not stop")
	}
}
