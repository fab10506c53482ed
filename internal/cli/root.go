// Package cli implements the cobra command tree for sitepipe.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sitepipe/internal/build"
	"github.com/hupe1980/sitepipe/internal/config"
	"github.com/hupe1980/sitepipe/internal/logging"
)

// Exit codes.
const (
	exitBuild = 1
	exitUsage = 2
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		slog.Error(err.Error())

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}

		return exitBuild
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached. Without a subcommand it runs the default build.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "sitepipe",
		Short: "Build and serve static-site assets",
		Long: `sitepipe builds the assets of a static site from src/ into dist/.

It compiles Sass, prefixes and minifies CSS, bundles scripts, optimizes
images, copies fonts, and expands @@include directives in HTML pages.
The dev and prod commands build once, then watch the sources and serve
dist/ with live reload.

Running sitepipe without a command performs the default build.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: exitUsage, Err: err}
			}

			logger := logging.SetupWithWriter(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("root", cfg.Root),
				slog.String("configFile", cfg.ConfigFile),
			)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOperation(cmd, build.TaskDefault)
		},
	}

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .sitepipe.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")
	pf.StringP("root", "C", ".", "project directory")
	pf.String("cache-path", "", "image cache database (default: user cache dir)")
	pf.String("sass", "", "Dart Sass executable (default: sass on PATH)")
	pf.String("scheme", "", "pre-render the favicon for this color scheme: light, dark")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: exitUsage, Err: err}
	})

	cmd.AddCommand(newOperationCommands()...)
	cmd.AddCommand(
		newDevCommand(),
		newProdCommand(),
		newServeCommand(),
		newInitCommand(),
		newPathsCommand(),
		newVersionCommand(),
		newCompletionCommand(),
	)

	return cmd
}
