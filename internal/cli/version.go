package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sitepipe/internal/version"
)

func newVersionCommand() *cobra.Command {
	var (
		asJSON bool
		short  bool
	)

	cmd := &cobra.Command{
		Use:               "version",
		Short:             "Print build information",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetInfo()
			out := cmd.OutOrStdout()

			switch {
			case asJSON && short:
				return &ExitError{Code: exitUsage, Err: errors.New("--json and --short are mutually exclusive")}
			case short:
				_, err := fmt.Fprintln(out, info.Version)
				return err
			case asJSON:
				j, err := info.JSON()
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(out, j)

				return err
			default:
				_, err := fmt.Fprintln(out, info.String())
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print build information as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")

	return cmd
}
