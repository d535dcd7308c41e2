package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pulse/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	SchemaVersion string `json:"schema_version"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := newRenderer(c)
		if err != nil {
			return fatal(err)
		}
		return r.Render(VersionResponse{
			Version:       types.Version,
			Commit:        commit,
			SchemaVersion: types.SchemaVersion,
		})
	}
}
