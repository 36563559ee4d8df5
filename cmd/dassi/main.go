// Command dassi runs the peer-to-peer lending program against a local
// journaled database.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dassi/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
