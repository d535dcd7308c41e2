// Package cmd provides CLI commands for the pulse binary.
package cmd

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Shared flags.
var (
	// ConfigFlag points at the YAML config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file (default $PULSE_CONFIG, then <config dir>/pulse/config.yaml)",
	}

	// VerboseFlag lowers the log level to debug.
	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Log per-view progress to stderr",
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml (default table on a terminal, json otherwise)",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}
)

// Selection and run flags.
var (
	OnlyFlag = &cli.StringSliceFlag{
		Name:  "only",
		Usage: "Fetch only these views (comma separated)",
	}
	ExceptFlag = &cli.StringSliceFlag{
		Name:  "except",
		Usage: "Fetch every view except these (comma separated)",
	}
	AllFlag = &cli.BoolFlag{
		Name:  "all",
		Usage: "Fetch every registered view, including disabled ones",
	}
	TimeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Per-view timeout (default from config, else 10s)",
	}
	StrictFlag = &cli.BoolFlag{
		Name:  "strict",
		Usage: "Exit 1 when any view failed",
	}
	ArchiveFlag = &cli.BoolFlag{
		Name:  "archive",
		Usage: "Write the snapshot to the configured archive",
	}
	NotifyFlag = &cli.BoolFlag{
		Name:  "notify",
		Usage: "Publish a snapshot_completed event to the configured notifiers",
	}
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Open the interactive dashboard",
	}
	IntervalFlag = &cli.DurationFlag{
		Name:  "interval",
		Usage: "Re-run the aggregation on this interval",
	}
)

// DefaultWatchInterval is the watch loop period when --interval is unset.
const DefaultWatchInterval = time.Minute

// ReadOnlyFlags returns the output flags shared by every command.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
	}
}

// RunFlags returns the flags shared by commands that run an aggregation.
func RunFlags() []cli.Flag {
	return append([]cli.Flag{
		ConfigFlag,
		VerboseFlag,
		OnlyFlag,
		ExceptFlag,
		AllFlag,
		TimeoutFlag,
		StrictFlag,
		ArchiveFlag,
		NotifyFlag,
	}, ReadOnlyFlags()...)
}
