// sitepipe builds, watches and serves the assets of a static site.
package main

import (
	"os"

	"github.com/hupe1980/sitepipe/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
