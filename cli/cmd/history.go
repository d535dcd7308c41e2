package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pulse/archive"
	"github.com/justapithecus/pulse/runtime"
	"github.com/justapithecus/pulse/types"
)

// HistoryCommand returns the history command.
// It reads the latest archived run back from the configured archive.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show the latest archived run",
		Flags: append([]cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "view",
				Usage: "Only show this view from the latest run that contains it",
			},
		}, ReadOnlyFlags()...),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	r, err := newRenderer(c)
	if err != nil {
		return fatal(err)
	}

	reg, cfg, err := loadRegistry(c.String("config"))
	if err != nil {
		return fatal(err)
	}

	view := types.ViewID(c.String("view"))
	if view != "" {
		if _, err := reg.Entry(view); err != nil {
			return fatal(err)
		}
	}

	a, err := archive.Open(c.Context, cfg.Archive.Config)
	if err != nil {
		return fatal(err)
	}

	snap, err := a.Latest(c.Context, view)
	if errors.Is(err, archive.ErrNoRunsFound) {
		return cli.Exit(err.Error(), runtime.ExitCodeDegraded)
	}
	if err != nil {
		return fatal(err)
	}
	return r.Render(snap)
}
