package livereload

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readEvent returns the next "data:" line from the stream.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()

	lines := make(chan string, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}

			if strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimSpace(strings.TrimPrefix(line, "data: "))
				return
			}
		}
	}()

	select {
	case l, ok := <-lines:
		require.True(t, ok, "stream closed")
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func connect(t *testing.T, url string) (*bufio.Reader, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	t.Cleanup(func() { _ = resp.Body.Close() })

	return bufio.NewReader(resp.Body), cancel
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BaselineThenBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	hub.Broadcast("initial")

	srv := httptest.NewServer(hub)
	defer srv.Close()

	r, cancel := connect(t, srv.URL)
	defer cancel()

	assert.Equal(t, `{"token":"initial"}`, readEvent(t, r))

	waitClients(t, hub, 1)
	hub.Broadcast("rebuild-1")
	assert.Equal(t, `{"token":"rebuild-1"}`, readEvent(t, r))
}

func TestHub_IgnoresRepeatedToken(t *testing.T) {
	hub := NewHub(nil, nil)
	hub.Broadcast("a")
	hub.Broadcast("a")
	hub.Broadcast("")

	srv := httptest.NewServer(hub)
	defer srv.Close()

	r, cancel := connect(t, srv.URL)
	defer cancel()

	assert.Equal(t, `{"token":"a"}`, readEvent(t, r))
}

func TestHub_DisconnectRemovesClient(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, cancel := connect(t, srv.URL)
	waitClients(t, hub, 1)

	cancel()
	waitClients(t, hub, 0)
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, cancel := connect(t, srv.URL)
	defer cancel()
	waitClients(t, hub, 1)

	hub.Shutdown()
	assert.Zero(t, hub.Clients())

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_LogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer

	hub := NewHub(nil, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	hub.Broadcast("rebuild")

	assert.Contains(t, buf.String(), "livereload broadcast")
	assert.Contains(t, buf.String(), "clients=0")
}

func TestScript(t *testing.T) {
	s := Script("/_sitepipe/livereload")
	assert.Contains(t, s, "new EventSource('/_sitepipe/livereload')")
	assert.NotContains(t, s, "__ENDPOINT__")
}
