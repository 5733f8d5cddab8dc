// Command tablesync serves and drives the incremental table sync protocol.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tablesync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
