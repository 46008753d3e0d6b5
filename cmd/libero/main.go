// Command libero records volleyball match events and reports on them.
package main

import (
	"fmt"
	"os"

	"github.com/okian/libero/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
