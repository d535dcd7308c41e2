// Package main provides the pulse CLI entrypoint.
//
// Usage:
//
//	pulse <command> [options]
//
// Exit codes:
//   - 0: snapshot produced (failed views are part of the output)
//   - 1: --strict and at least one view failed
//   - 2: fatal: bad flags or config, unknown view, no snapshot
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pulse/cli/cmd"
	"github.com/justapithecus/pulse/runtime"
	"github.com/justapithecus/pulse/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "pulse",
		Usage:          "Fetch your status views concurrently into one dashboard",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ShowCommand(),
			cmd.RefreshCommand(),
			cmd.WatchCommand(),
			cmd.ViewsCommand(),
			cmd.HistoryCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(runtime.ExitCodeFatal)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	msg, code := exitMessage(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitMessage returns what to print and the code to exit with.
// cli.Exit("", N) carries no message worth printing.
func exitMessage(err error) (string, int) {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return msg, code
	}

	// Flag parsing and other framework errors.
	return fmt.Sprintf("Error: %v", err), runtime.ExitCodeFatal
}
