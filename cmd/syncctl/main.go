// Command syncctl is a headless qsync client: it keeps a local session in sync
// with a server and prints what it sees.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
