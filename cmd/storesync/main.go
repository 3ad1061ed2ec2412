// Command storesync runs the client state reconciliation engine, its
// in-memory remote twin and the scenario harness.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/storesync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
