package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/sitepipe/internal/config"
)

// registerServerFlags adds the dev server flags to a cobra command.
func registerServerFlags(cmd *cobra.Command) {
	d := config.Default()

	f := cmd.Flags()
	f.String("host", d.Server.Host, "dev server host")
	f.IntP("port", "p", d.Server.Port, "dev server port (0 picks a free port)")
}

// registerWatchFlags adds the watcher flags to a cobra command.
func registerWatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Duration("debounce", config.Default().Watch.Debounce, "quiet period before a rebuild")
}
