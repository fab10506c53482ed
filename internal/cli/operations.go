package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sitepipe/internal/build"
	"github.com/hupe1980/sitepipe/internal/metrics"
)

// operation describes a command that runs one registered task.
type operation struct {
	use     string
	task    string
	aliases []string
	short   string
}

var operations = []operation{
	{use: "build", task: build.TaskBuild, aliases: []string{build.TaskDefault}, short: "Run the development build"},
	{use: "build-prod", task: build.TaskBuildProd, aliases: []string{build.TaskBuildProd}, short: "Run the production build"},
	{use: "clean", task: build.TaskClean, short: "Remove the build output directory"},
	{use: "clear-cache", task: build.TaskClearCache, aliases: []string{build.TaskClearCache}, short: "Delete every entry of the image cache"},
	{use: "fonts", task: build.TaskFonts, short: "Copy fonts"},
	{use: "images", task: build.TaskImages, short: "Optimize and copy images"},
	{use: "css", task: build.TaskCSS, short: "Compile, prefix and minify stylesheets"},
	{use: "js", task: build.TaskJS, short: "Bundle scripts"},
	{use: "min-js", task: build.TaskMinJS, aliases: []string{build.TaskMinJS}, short: "Bundle, transpile and minify scripts"},
	{use: "html", task: build.TaskHTML, short: "Expand include directives in pages"},
	{use: "min-html", task: build.TaskMinHTML, aliases: []string{build.TaskMinHTML}, short: "Expand include directives and minify pages"},
}

func newOperationCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(operations))

	for _, op := range operations {
		op := op
		cmds = append(cmds, &cobra.Command{
			Use:     op.use,
			Aliases: op.aliases,
			Short:   op.short,
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOperation(cmd, op.task)
			},
		})
	}

	return cmds
}

// runOperation runs the named task once. Failures exit with code 1.
func runOperation(cmd *cobra.Command, name string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx, metrics.NoopRecorder{})
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}
	defer s.Close()

	reg, err := s.builder.Registry()
	if err != nil {
		return &ExitError{Code: exitBuild, Err: err}
	}

	t, ok := reg.Lookup(name)
	if !ok {
		return &ExitError{Code: exitUsage, Err: fmt.Errorf("unknown task %q", name)}
	}

	if err := t.Run(ctx); err != nil {
		return &ExitError{Code: exitBuild, Err: err}
	}

	return nil
}
