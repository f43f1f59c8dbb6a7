// wscmdtest is a small internal harness for transcript tests.
//
// It provisions a disposable bench directory under
// `/tmp/wasatch-transcripts/bench-<id>`, seeds a deterministic
// `wasatch-shell.toml` so simulated readings are stable, then runs an
// arbitrary command inside the bench and returns the command's exit code.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	tool, err := newToolFromExecutable()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(tool.runCLI(context.Background(), os.Args[1:]))
}
