package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pulse/cli/render"
	"github.com/justapithecus/pulse/runtime"
)

// newRenderer creates a renderer for the app's writer. Output that is not
// the process stdout defaults to JSON without color.
func newRenderer(c *cli.Context) (*render.Renderer, error) {
	format, noColor := c.String("format"), c.Bool("no-color")
	if f, ok := c.App.Writer.(*os.File); ok && f == os.Stdout {
		return render.NewRenderer(format, noColor)
	}
	parsed, err := render.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if parsed == "" {
		parsed = render.FormatJSON
	}
	return render.NewRendererWithWriter(parsed, true, c.App.Writer), nil
}

// exitWith returns nil for a zero code and a silent cli.Exit otherwise.
func exitWith(code int) error {
	if code == runtime.ExitCodeOK {
		return nil
	}
	return cli.Exit("", code)
}
