package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/hupe1980/sitepipe/internal/build"
	"github.com/hupe1980/sitepipe/internal/cache"
	"github.com/hupe1980/sitepipe/internal/config"
	"github.com/hupe1980/sitepipe/internal/logging"
	"github.com/hupe1980/sitepipe/internal/metrics"
	"github.com/hupe1980/sitepipe/internal/output"
	"github.com/hupe1980/sitepipe/internal/sass"
)

// session bundles the resources one invocation builds with.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	builder *build.Builder
	closers []io.Closer
}

// newSession wires a builder from the config and logger in ctx.
func newSession(ctx context.Context, rec metrics.Recorder) (*session, error) {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	s := &session{cfg: cfg, logger: logger}

	compiler := sass.NewDartSass(cfg.Styles.SassBinary)
	s.closers = append(s.closers, compiler)

	b, err := build.New(build.Options{
		Config:   cfg,
		Styles:   compiler,
		Cache:    s.openCache(),
		Recorder: rec,
		Writer:   output.NewFileWriter(output.WithLogger(logger)),
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	s.builder = b

	return s, nil
}

// openCache opens the image cache. A cache that cannot be opened only
// costs speed, so the build goes on without one.
func (s *session) openCache() cache.Store {
	path, err := s.cfg.CachePath()
	if err == nil {
		var store *cache.SQLiteStore

		if store, err = cache.Open(path); err == nil {
			s.closers = append(s.closers, store)
			return store
		}
	}

	s.logger.Warn("image cache disabled", slog.String("error", err.Error()))

	return cache.Nop{}
}

// Close releases the Sass process and the cache.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Debug("closing session resource", slog.String("error", err.Error()))
		}
	}
}
