// Package main provides the governor CLI entrypoint.
//
// Usage:
//
//	governor run --suite-path <dir> --run-id <id> [options]
//	governor verify <envelope-path>
//	governor inspect <envelope-path> [--tui]
//	governor replay <envelope-path> [--no-cache]
//	governor version
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/governor/cli/cmd"
	"github.com/justapithecus/governor/types"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "governor",
		Usage:          "Autonomous execution governance harness",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.VerifyCommand(),
			cmd.InspectCommand(),
			cmd.ReplayCommand(),
			cmd.VersionCommand("", commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler exits with the code carried by a cli.Exit() error after
// printing its message; any other error is printed as "Error: ..." and
// exits 1. Every command in this module passes code 1 to cli.Exit, so a
// verification failure and an unexpected error exit with the same code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
