package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sitepipe/internal/config"
	"github.com/hupe1980/sitepipe/internal/output"
	"github.com/hupe1980/sitepipe/internal/scaffold"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter project",
		Long: `Init writes a starter project into the project directory: a config
file, a page with a shared head partial, a stylesheet, and a script
that switches the favicon with the system colour scheme.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())

			written, err := scaffold.Write(cfg.Root, force, output.NewFileWriter())
			if err != nil {
				code := exitBuild
				if errors.Is(err, scaffold.ErrExists) {
					code = exitUsage
				}

				return &ExitError{Code: code, Err: err}
			}

			out := cmd.OutOrStdout()
			for _, p := range written {
				if rel, relErr := filepath.Rel(cfg.Root, p); relErr == nil {
					p = rel
				}

				fmt.Fprintf(out, "created %s\n", filepath.ToSlash(p))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")

	return cmd
}
