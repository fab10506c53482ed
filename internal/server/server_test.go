package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sitepipe/internal/metrics"
)

func writeSite(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"),
		[]byte("<html><body><h1>Home</h1></body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "main.min.css"),
		[]byte("body{color:red}"), 0o644))

	return root
}

func get(t *testing.T, h http.Handler, target string) (*http.Response, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

func TestHandler_InjectsIntoIndex(t *testing.T) {
	s := New(Options{Root: writeSite(t)})

	resp, body := get(t, s.Handler(), "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<h1>Home</h1>")
	assert.Contains(t, body, `<script async src="/_sitepipe/livereload.js"></script></body>`)
	assert.Empty(t, resp.Header.Get("Content-Length"))
}

func TestHandler_AssetsUntouched(t *testing.T) {
	s := New(Options{Root: writeSite(t)})

	resp, body := get(t, s.Handler(), "/css/main.min.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body{color:red}", body)
}

func TestHandler_NotFound(t *testing.T) {
	s := New(Options{Root: writeSite(t)})

	resp, body := get(t, s.Handler(), "/missing.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, body, "livereload.js")
}

func TestHandler_CustomIndex(t *testing.T) {
	root := writeSite(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "home.html"),
		[]byte("<html><body>custom</body></html>"), 0o644))

	s := New(Options{Root: root, Index: "home.html"})

	_, body := get(t, s.Handler(), "/")
	assert.Contains(t, body, "custom")
	assert.Contains(t, body, "livereload.js")
}

func TestHandler_ClientScript(t *testing.T) {
	s := New(Options{Root: t.TempDir()})

	resp, body := get(t, s.Handler(), LiveReloadJS)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Contains(t, body, LiveReloadPath)
}

func TestHandler_Metrics(t *testing.T) {
	rec := metrics.NewPrometheusRecorder(nil)
	rec.ObserveTask("css", time.Millisecond, nil)
	s := New(Options{Root: t.TempDir(), Recorder: rec})

	resp, body := get(t, s.Handler(), MetricsPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "sitepipe_task_results_total")
}

func TestInjector_NoBodyTagAppends(t *testing.T) {
	h := injectLiveReload(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>fragment</p>"))
	}))

	_, body := get(t, h, "/fragment.html")
	assert.True(t, strings.HasPrefix(body, "<p>fragment</p><script"))
}

func TestInjector_NonHTMLContentType(t *testing.T) {
	h := injectLiveReload(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	_, body := get(t, h, "/")
	assert.Equal(t, `{"ok":true}`, body)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestServer_StartReloadShutdown(t *testing.T) {
	s := New(Options{Host: "127.0.0.1", Port: 0, Root: writeSite(t)})

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start is rejected")

	resp, err := http.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, string(body), "livereload.js")

	s.Reload("css")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := New(Options{Host: "127.0.0.1", Port: 0, Root: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return !strings.HasSuffix(s.Addr(), ":0") }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	s := New(Options{Root: t.TempDir()})
	assert.NoError(t, s.Shutdown(context.Background()))
}
