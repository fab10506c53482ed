// Package livereload notifies open browser pages over Server-Sent Events
// after a rebuild. Pages load [Script], which connects to the hub endpoint
// and reloads when it receives a token different from the one it saw first.
package livereload

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/sitepipe/internal/logging"
	"github.com/hupe1980/sitepipe/internal/metrics"
)

// Hub manages SSE clients and broadcasts reload tokens to them.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*client
	recorder  metrics.Recorder
	closed    bool
	lastToken string
	heartbeat time.Duration
	logger    *slog.Logger
}

type client struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewHub creates a hub. A nil recorder disables metrics and a nil logger
// discards output.
func NewHub(rec metrics.Recorder, logger *slog.Logger) *Hub {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &Hub{
		clients:   map[int]*client{},
		recorder:  rec,
		heartbeat: 30 * time.Second,
		logger:    logger,
	}
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{ch: make(chan string, 8), done: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)

		return
	}

	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	current := h.lastToken
	count := len(h.clients)
	h.mu.Unlock()

	h.recorder.SetReloadClients(count)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		h.removeClient(c.id)
		return
	}

	if current != "" {
		writeEvent(bw, current)
	}

	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.removeClient(c.id)
			return
		case <-c.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				h.logger.Debug("livereload ping write", slog.String("error", err.Error()))
				continue
			}

			_ = bw.Flush()
			flusher.Flush()
		case token := <-c.ch:
			writeEvent(bw, token)
			_ = bw.Flush()
			flusher.Flush()
		}
	}
}

func writeEvent(bw *bufio.Writer, token string) {
	fmt.Fprintf(bw, "data: {\"token\":%q}\n\n", token)
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.recorder.SetReloadClients(count)
	}
}

// Broadcast sends token to every client. Clients whose buffers are full are
// dropped. Empty or repeated tokens are ignored.
func (h *Hub) Broadcast(token string) {
	h.mu.Lock()
	if h.closed || token == "" || token == h.lastToken {
		h.mu.Unlock()
		return
	}

	h.lastToken = token
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- token:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}

	h.recorder.IncReload()
	h.logger.Debug("livereload broadcast", slog.Int("clients", len(snapshot)), slog.Int("dropped", dropped))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown disconnects all clients and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}

	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()

	for _, c := range clients {
		close(c.done)
	}

	h.recorder.SetReloadClients(0)
}

// Script returns the client snippet connecting to endpoint.
func Script(endpoint string) string {
	return strings.ReplaceAll(scriptTemplate, "__ENDPOINT__", endpoint)
}

const scriptTemplate = `(() => {
  if (window.__SITEPIPE_LR__) return;
  window.__SITEPIPE_LR__ = true;
  function connect() {
    const es = new EventSource('__ENDPOINT__');
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.token; return; }
        if (p.token && p.token !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`
