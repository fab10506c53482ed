package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sitepipe/internal/build"
	"github.com/hupe1980/sitepipe/internal/config"
	"github.com/hupe1980/sitepipe/internal/logging"
	"github.com/hupe1980/sitepipe/internal/metrics"
	"github.com/hupe1980/sitepipe/internal/server"
	"github.com/hupe1980/sitepipe/internal/task"
	"github.com/hupe1980/sitepipe/internal/watch"
)

func newDevCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Build, then watch and serve with live reload",
		Long: `Dev runs the development build, then watches the sources and serves
the output directory. Each change re-runs the operation for its asset
category and reloads connected browsers. A failed rebuild is reported
and watching continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDevelop(cmd, false)
		},
	}

	registerServerFlags(cmd)
	registerWatchFlags(cmd)

	return cmd
}

func newProdCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prod",
		Short: "Production build, then watch and serve with live reload",
		Long: `Prod runs the production build (transpiled, minified scripts and
minified pages), then watches and serves like dev. Script and page
changes are rebuilt with the minifying operations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDevelop(cmd, true)
		},
	}

	registerServerFlags(cmd)
	registerWatchFlags(cmd)

	return cmd
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the output directory with live reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := newServer(ctx, metrics.NewPrometheusRecorder(nil))

			if err := task.New("serve", srv.Run).Run(ctx); err != nil {
				return &ExitError{Code: exitBuild, Err: err}
			}

			return nil
		},
	}

	registerServerFlags(cmd)

	return cmd
}

func newServer(ctx context.Context, rec *metrics.PrometheusRecorder) *server.Server {
	cfg := config.FromContext(ctx)

	return server.New(server.Options{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		Root:     cfg.Resolve(cfg.Paths.Dist),
		Index:    cfg.Server.Index,
		Recorder: rec,
		Logger:   logging.FromContext(ctx),
	})
}

// runDevelop builds once, then runs the watcher and the server until
// interrupted.
func runDevelop(cmd *cobra.Command, prod bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromContext(ctx)
	rec := metrics.NewPrometheusRecorder(nil)

	s, err := newSession(ctx, rec)
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}
	defer s.Close()

	pipeline := s.builder.Build()
	if prod {
		pipeline = s.builder.BuildProd()
	}

	if err := pipeline.Run(ctx); err != nil {
		return &ExitError{Code: exitBuild, Err: err}
	}

	srv := newServer(ctx, rec)
	s.builder.SetNotifier(srv)

	w, err := watch.New(watch.Options{
		Root:     cfg.Root,
		Rules:    s.builder.WatchRules(prod),
		Debounce: cfg.Watch.Debounce,
		NoColor:  cfg.NoColor,
		Logger:   s.logger,
		Out:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return &ExitError{Code: exitBuild, Err: err}
	}
	defer w.Close()

	watcher := task.Supervise("watcher",
		task.New("watch", w.Run),
		task.New("serve", srv.Run),
	)

	start := time.Now()
	err = watcher.Run(ctx)

	s.logger.Info("stopped", slog.Duration("uptime", time.Since(start).Round(time.Second)))

	if err != nil {
		return &ExitError{Code: exitBuild, Err: err}
	}

	return nil
}

var _ build.Notifier = (*server.Server)(nil)
