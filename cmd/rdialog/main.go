// Command rdialog compiles, validates, runs and serves reactive dialogs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rdialog/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
