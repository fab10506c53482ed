// Package server implements the development server: it serves the build
// output, injects the live-reload client into HTML pages, and exposes the
// live-reload stream and build metrics under a reserved path prefix.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/sitepipe/internal/livereload"
	"github.com/hupe1980/sitepipe/internal/metrics"
)

// Reserved endpoints.
const (
	Prefix          = "/_sitepipe/"
	LiveReloadPath  = Prefix + "livereload"
	LiveReloadJS    = Prefix + "livereload.js"
	MetricsPath     = Prefix + "metrics"
	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// Host and Port to listen on. Port 0 picks a free port.
	Host string
	Port int

	// Root is the directory served (the build destination).
	Root string

	// Index is the file served for directory requests.
	Index string

	// Recorder collects metrics. Nil gets a fresh Prometheus registry.
	Recorder *metrics.PrometheusRecorder

	Logger *slog.Logger
}

// Server is the development server. It is constructed explicitly and passed
// to the operations that need to trigger reloads.
type Server struct {
	opts     Options
	hub      *livereload.Hub
	recorder *metrics.PrometheusRecorder
	logger   *slog.Logger

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a server. It does not listen until Start.
func New(opts Options) *Server {
	if opts.Index == "" {
		opts.Index = "index.html"
	}

	if opts.Recorder == nil {
		opts.Recorder = metrics.NewPrometheusRecorder(nil)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Server{
		opts:     opts,
		hub:      livereload.NewHub(opts.Recorder, opts.Logger),
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle(LiveReloadPath, s.hub)
	mux.HandleFunc(LiveReloadJS, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		if _, err := w.Write([]byte(livereload.Script(LiveReloadPath))); err != nil {
			s.logger.Debug("writing livereload script", slog.String("error", err.Error()))
		}
	})
	mux.Handle(MetricsPath, s.recorder.Handler())
	mux.Handle("/", injectLiveReload(s.files()))

	return mux
}

// files serves the output directory, resolving directory requests to the
// configured index file.
func (s *Server) files() http.Handler {
	fileServer := http.FileServer(http.Dir(s.opts.Root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")

		if strings.HasSuffix(r.URL.Path, "/") && s.opts.Index != "index.html" {
			p := filepath.Join(s.opts.Root, filepath.FromSlash(path.Clean(r.URL.Path)), s.opts.Index)

			if f, err := os.Open(p); err == nil {
				defer f.Close()

				if st, statErr := f.Stat(); statErr == nil && !st.IsDir() {
					http.ServeContent(w, r, s.opts.Index, st.ModTime(), f)
					return
				}
			}
		}

		fileServer.ServeHTTP(w, r)
	})
}

// Start begins listening. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http != nil {
		return errors.New("server already started")
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.listener = ln
	s.done = make(chan struct{})
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Live-reload streams are long-lived; no write timeout.
		IdleTimeout: 300 * time.Second,
	}

	// Pages that connect receive this token as their baseline.
	s.hub.Broadcast(uuid.NewString())

	go func() {
		defer close(s.done)

		if serveErr := s.http.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("server stopped", slog.String("error", serveErr.Error()))
		}
	}()

	s.logger.Info("serving", slog.String("root", s.opts.Root), slog.String("url", "http://"+s.addrUnlocked()))

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addrUnlocked()
}

func (s *Server) addrUnlocked() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Reload tells every connected page to refresh.
func (s *Server) Reload(reason string) {
	s.logger.Debug("reload", slog.String("reason", reason))
	s.hub.Broadcast(uuid.NewString())
}

// Shutdown disconnects live-reload clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.http, s.done
	s.mu.Unlock()

	s.hub.Shutdown()

	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	<-done

	return nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.Shutdown(shutdownCtx)
}
