package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pulse/cli/config"
	"github.com/justapithecus/pulse/integration"
	"github.com/justapithecus/pulse/registry"
)

// ViewRow is one line of the views listing.
type ViewRow struct {
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Service    string `json:"service" yaml:"service"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Configured bool   `json:"configured" yaml:"configured"`
}

// ViewsCommand returns the views command. It reads config only and never
// contacts an upstream.
func ViewsCommand() *cli.Command {
	return &cli.Command{
		Name:   "views",
		Usage:  "List registered views",
		Flags:  append([]cli.Flag{ConfigFlag}, ReadOnlyFlags()...),
		Action: viewsAction,
	}
}

func viewsAction(c *cli.Context) error {
	r, err := newRenderer(c)
	if err != nil {
		return fatal(err)
	}
	reg, _, err := loadRegistry(c.String("config"))
	if err != nil {
		return fatal(err)
	}
	return r.Render(viewRows(reg))
}

// loadRegistry builds an uncached registry from the resolved config.
func loadRegistry(configPath string) (*registry.Registry, *config.Config, error) {
	cfg, _, err := config.LoadResolved(configPath)
	if err != nil {
		return nil, nil, err
	}
	reg, err := integration.NewRegistry(cfg.Config, integration.CatalogOptions{
		Disabled: cfg.Views.DisabledIDs(),
	})
	if err != nil {
		return nil, nil, err
	}
	return reg, cfg, nil
}

func viewRows(reg *registry.Registry) []ViewRow {
	entries := reg.Entries()
	rows := make([]ViewRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ViewRow{
			ID:         string(e.ID),
			Title:      e.Title,
			Service:    e.Service,
			Enabled:    e.Enabled,
			Configured: e.Configured,
		})
	}
	return rows
}
