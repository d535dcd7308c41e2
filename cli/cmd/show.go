package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pulse/cli/tui"
	"github.com/justapithecus/pulse/iox"
	"github.com/justapithecus/pulse/types"
)

// ShowCommand returns the show command.
// It runs one aggregation and renders the snapshot.
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:   "show",
		Usage:  "Fetch the selected views once and render the dashboard",
		Flags:  append(RunFlags(), TUIFlag, IntervalFlag),
		Action: showAction(false),
	}
}

// RefreshCommand returns the refresh command.
// Same as show, but cached view data is bypassed and overwritten.
func RefreshCommand() *cli.Command {
	return &cli.Command{
		Name:   "refresh",
		Usage:  "Like show, but bypass and repopulate the cache",
		Flags:  append(RunFlags(), TUIFlag, IntervalFlag),
		Action: showAction(true),
	}
}

func showAction(refresh bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := newRenderer(c)
		if err != nil {
			return fatal(err)
		}

		ctx, cancel := signalContext(c.Context)
		defer cancel()

		opts := dashboardOptionsFrom(c)
		opts.Refresh = refresh
		d, err := newDashboard(ctx, opts)
		if err != nil {
			return fatal(err)
		}
		defer iox.DiscardClose(d)

		if c.Bool("tui") {
			snap, err := tui.Run(ctx, d.Run, c.Duration("interval"))
			if err != nil && ctx.Err() == nil {
				return fatal(err)
			}
			return quitExit(d, snap)
		}

		// A cancelled run still returns a snapshot with the outstanding
		// views timed out, and it is rendered like any other.
		snap, err := d.Run(ctx)
		if err != nil {
			return fatal(err)
		}
		if err := r.Render(snap); err != nil {
			return fatal(err)
		}
		return exitWith(d.ExitCode(snap))
	}
}

// quitExit maps the dashboard's last snapshot to an exit error. Quitting
// before the first snapshot arrives is an ordinary exit.
func quitExit(d *dashboard, snap *types.Snapshot) error {
	if snap == nil {
		return nil
	}
	return exitWith(d.ExitCode(snap))
}
