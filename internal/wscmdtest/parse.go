// Argument parsing for the `wscmdtest` harness.
//
// Supported flags:
//   - `--no-config` (leave the bench without a settings file)
//   - `--keep` (preserve the bench dir for debugging)
//   - `-h/--help`
package main

import (
	"errors"
	"flag"
	"io"
)

type options struct {
	noConfig  bool
	keepBench bool
	help      bool
}

func parseArgs(args []string) (options, []string, error) {
	var opts options

	fs := flag.NewFlagSet("wscmdtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&opts.noConfig, "no-config", false, "")
	fs.BoolVar(&opts.keepBench, "keep", false, "")

	fs.BoolVar(&opts.help, "help", false, "")
	fs.BoolVar(&opts.help, "h", false, "")

	if err := fs.Parse(args); err != nil {
		return options{}, nil, err
	}
	if opts.help {
		return opts, nil, nil
	}

	cmd := fs.Args()
	if len(cmd) == 0 {
		return options{}, nil, errors.New("wscmdtest: missing command")
	}
	return opts, cmd, nil
}
